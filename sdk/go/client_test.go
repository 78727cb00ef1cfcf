package timeclocksdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "tc_secret", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alpha", body["project_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"s1","user_id":"u1","status":"ACTIVE","start_time":"2025-01-20T09:00:00Z","total_duration":0,"total_break_time":0,"project_id":"alpha"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tc_secret")
	s, err := c.StartSession(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "ACTIVE", s.Status)
	require.NotNil(t, s.ProjectID)
	assert.Equal(t, "alpha", *s.ProjectID)
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"conflict","message":"user already has an active session"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.StartSession(context.Background(), "")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "conflict", apiErr.Code)
	assert.Equal(t, "user already has an active session", apiErr.Message)
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "41", r.URL.Query().Get("cursor"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[{"id":40,"type":"task.rate","entity_kind":"task","payload":{}}],"next_cursor":""}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.BearerToken = "tok"
	page, err := c.EventsPage(context.Background(), 2, "41")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "task.rate", page.Items[0].Type)
	assert.Empty(t, page.NextCursor)
}
