package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/command"
	"github.com/unclebandit/campaign-dispatcher/internal/dispatcher"
	"github.com/unclebandit/campaign-dispatcher/internal/httpapi"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/store/memory"
)

type noopTrigger struct{}

func (noopTrigger) TriggerDispatch(ctx context.Context, campaignID int64) error { return nil }

type fakeScanner struct {
	results []dispatcher.CampaignResult
	err     error
}

func (f *fakeScanner) Run(ctx context.Context, onlyCampaignID *int64) ([]dispatcher.CampaignResult, error) {
	return f.results, f.err
}

func newAPI(t *testing.T, scanner httpapi.Scanner) (*httpapi.API, *memory.Store) {
	t.Helper()
	st := memory.New()
	return &httpapi.API{
		Store:      st,
		Commands:   command.New(st, noopTrigger{}),
		Dispatcher: scanner,
		Log:        zerolog.Nop(),
	}, st
}

func TestCreateCampaign_Success(t *testing.T) {
	api, st := newAPI(t, &fakeScanner{})
	router := httpapi.NewRouter(api)
	st.PutRecipient(model.Recipient{ID: 1, Name: "Amara", Phone: "+1555", MessageBody: "hi"})

	body := map[string]any{
		"owner_id":      int64(1),
		"name":          "Launch",
		"channel":       "sms",
		"base_template": "hi {{name}}",
		"scheduled_at":  time.Now().UTC(),
		"config": map[string]any{
			"minIntervalSeconds": 30, "maxIntervalSeconds": 40, "businessHoursStrategy": "ignore",
		},
		"recipients": []map[string]any{{"ID": 1, "Name": "Amara", "Phone": "+1555", "MessageBody": "hi"}},
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/campaigns", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var res map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, true, res["success"])
	assert.NotNil(t, res["campaign"])
}

func TestCreateCampaign_RejectsInvalidPolicy(t *testing.T) {
	api, _ := newAPI(t, &fakeScanner{})
	router := httpapi.NewRouter(api)

	body := map[string]any{
		"owner_id": int64(1), "name": "Bad", "channel": "sms",
		"config": map[string]any{"minIntervalSeconds": 1, "maxIntervalSeconds": 2},
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/campaigns", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
}

func TestPauseCampaign(t *testing.T) {
	api, st := newAPI(t, &fakeScanner{})
	router := httpapi.NewRouter(api)

	c := &model.Campaign{OwnerID: 1, Name: "x", Status: model.CampaignActive, ScheduledAt: time.Now()}
	require.NoError(t, st.CreateCampaign(context.Background(), c, nil))

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/pause", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	status, err := st.GetStatus(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignPaused, status)
}

func TestGetCampaign_NotFound(t *testing.T) {
	api, _ := newAPI(t, &fakeScanner{})
	router := httpapi.NewRouter(api)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestDispatch_AlwaysReturns200(t *testing.T) {
	api, _ := newAPI(t, &fakeScanner{err: assert.AnError})
	router := httpapi.NewRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, false, res["success"])
}

func TestDispatch_ReturnsResults(t *testing.T) {
	api, _ := newAPI(t, &fakeScanner{results: []dispatcher.CampaignResult{
		{ID: 1, MessagesSent: 3, Status: dispatcher.StatusFinished},
	}})
	router := httpapi.NewRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var res map[string]any
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&res))
	assert.Equal(t, true, res["success"])
	results, ok := res["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
}
