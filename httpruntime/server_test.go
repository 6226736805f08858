package httpruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, _ string, obs any) (any, error) {
	return map[string]any{"echo": obs}, nil
}

func TestServeObserveCompleteResponse(t *testing.T) {
	cfg := ServerConfig{Backpressure: DefaultConfig()}
	srv := NewServer(cfg, nil)
	srv.RegisterAgent("echo", echoHandler{})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(ObservationRequest{Observation: "hi"})
	resp, err := http.Post(ts.URL+"/agents/echo/observe", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "hi", decoded["echo"])
}

func TestServeObserveUnknownAgent(t *testing.T) {
	cfg := ServerConfig{Backpressure: DefaultConfig()}
	srv := NewServer(cfg, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(ObservationRequest{Observation: "hi"})
	resp, err := http.Post(ts.URL+"/agents/missing/observe", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(ServerConfig{Backpressure: DefaultConfig()}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
