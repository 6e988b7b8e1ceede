package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	wsCalled := false
	srv := NewServer(":0", func(w http.ResponseWriter, r *http.Request) { wsCalled = true }, "instance-42")

	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, wsCalled, "health requests must not hit the websocket handler")

	var body struct {
		Service   string            `json:"service"`
		ServerID  string            `json:"server_id"`
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "qwen-omni-proxy", body.Service)
	assert.Equal(t, "instance-42", body.ServerID)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, PathWebSocket, body.Endpoints["websocket"])
	assert.Equal(t, PathHealth, body.Endpoints["health"])
}

func TestRootPathRoutesToWebSocketHandler(t *testing.T) {
	wsCalled := false
	srv := NewServer(":0", func(w http.ResponseWriter, r *http.Request) { wsCalled = true }, "instance-42")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.True(t, wsCalled)
}
