package sender_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/sender"
)

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sender.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada", req.Name)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	s := sender.New(srv.URL, nil)
	err := s.Send(context.Background(), sender.Request{Name: "Ada", Phone: "+100", Message: "hi"})
	assert.NoError(t, err)
}

func TestSend_NonSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "carrier rejected"})
	}))
	defer srv.Close()

	s := sender.New(srv.URL, nil)
	err := s.Send(context.Background(), sender.Request{Name: "Ada", Phone: "+100", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier rejected")
}

func TestSend_NonTwoxx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := sender.New(srv.URL, nil)
	err := s.Send(context.Background(), sender.Request{Name: "Ada", Phone: "+100", Message: "hi"})
	require.Error(t, err)
}
