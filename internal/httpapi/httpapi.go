// Package httpapi is the chi-routed HTTP surface: operator commands
// (§4.6) and the scheduler-trigger endpoint (§6), following the
// teacher's controller/handler split but collapsed into one package
// since this domain's surface is narrower than the teacher's.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/command"
	"github.com/unclebandit/campaign-dispatcher/internal/dispatcher"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/store"
)

// campaignView adds operator-facing, human-readable renderings of a
// campaign's timestamps and counters on top of the raw model, the way
// an operator dashboard would rather read "3 of 120 sent" than just
// the bare integers.
type campaignView struct {
	*model.Campaign
	ScheduledAtHuman string `json:"scheduledAtHuman"`
	ProgressHuman    string `json:"progressHuman"`
}

func toCampaignView(c *model.Campaign) campaignView {
	return campaignView{
		Campaign:         c,
		ScheduledAtHuman: humanize.Time(c.ScheduledAt),
		ProgressHuman:    fmt.Sprintf("%s of %s sent", humanize.Comma(int64(c.SentMessages)), humanize.Comma(int64(c.TotalMessages))),
	}
}

// Scanner is the narrow dispatcher surface the trigger handler needs.
type Scanner interface {
	Run(ctx context.Context, onlyCampaignID *int64) ([]dispatcher.CampaignResult, error)
}

type API struct {
	Store      store.Store
	Commands   *command.Service
	Dispatcher Scanner
	Log        zerolog.Logger
}

func NewRouter(api *API) *chi.Mux {
	r := chi.NewRouter()

	r.Post("/campaigns", api.createCampaign)
	r.Get("/campaigns/{id}", api.getCampaign)
	r.Post("/campaigns/{id}/pause", api.pauseCampaign)
	r.Post("/campaigns/{id}/resume", api.resumeCampaign)
	r.Post("/campaigns/{id}/cancel", api.cancelCampaign)
	r.Post("/messages/{id}/retry", api.retryMessage)
	r.Post("/dispatch", api.dispatch)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

type createCampaignRequest struct {
	OwnerID      int64              `json:"owner_id"`
	Name         string             `json:"name"`
	Channel      string             `json:"channel"`
	BaseTemplate string             `json:"base_template"`
	ScheduledAt  time.Time          `json:"scheduled_at"`
	Config       map[string]any     `json:"config"`
	Recipients   []model.Recipient  `json:"recipients"`
}

func (a *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	var body createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid body"})
		return
	}

	cfg, err := model.FromRawConfig(body.Config)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "error": err.Error()})
		return
	}

	c, result, err := a.Commands.Create(r.Context(), command.CreateRequest{
		OwnerID: body.OwnerID, Name: body.Name, Channel: body.Channel,
		BaseTemplate: body.BaseTemplate, ScheduledAt: body.ScheduledAt,
		Config: cfg, Recipients: body.Recipients,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if result != nil && result.Conflict {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":         false,
			"error":           "admission conflict",
			"existing_id":     result.ExistingID,
			"existing_name":   result.ExistingName,
			"suggested_start": result.SuggestedStart,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "campaign": toCampaignView(c)})
}

func (a *API) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid campaign id"})
		return
	}
	c, err := a.Store.GetCampaign(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "campaign": toCampaignView(c)})
}

func (a *API) pauseCampaign(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, a.Commands.Pause)
}

func (a *API) resumeCampaign(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, a.Commands.Resume)
}

func (a *API) cancelCampaign(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, a.Commands.Cancel)
}

func (a *API) runCommand(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) error) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid campaign id"})
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) retryMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid message id"})
		return
	}
	if err := a.Commands.RetryMessage(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type dispatchRequest struct {
	CampaignID *string `json:"campaign_id"`
}

// dispatch is the scheduler-trigger endpoint (§6): it always returns
// HTTP 200, even on internal error, so an external trigger never
// mistakes a transient failure for "retry immediately" and storms the
// endpoint.
func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	var onlyID *int64
	if body.CampaignID != nil {
		id, err := strconv.ParseInt(*body.CampaignID, 10, 64)
		if err == nil {
			onlyID = &id
		}
	}

	results, err := a.Dispatcher.Run(r.Context(), onlyID)
	if err != nil {
		a.Log.Error().Err(err).Msg("dispatch run failed")
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "results": []dispatcher.CampaignResult{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}
