package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchBody struct {
	EventType     string  `json:"event_type"`
	ClientPayload Request `json:"client_payload"`
}

func TestGitHubDispatch(t *testing.T) {
	var received []dispatchBody
	var authHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/guardian/renderer/dispatches", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		var body dispatchBody
		json.NewDecoder(r.Body).Decode(&body)
		received = append(received, body)
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d, err := NewGitHubDispatcher(helpers.GithubDispatchConfig{
		Token:   "secret-token",
		Owner:   "guardian",
		Repo:    "renderer",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), Request{Uuid: "r-1", Code: "print(1)", SceneName: "Scene", Quality: "low"})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "render-manim", received[0].EventType)
	assert.Equal(t, Request{Uuid: "r-1", Code: "print(1)", SceneName: "Scene", Quality: "low"}, received[0].ClientPayload)
	assert.Equal(t, "Bearer secret-token", authHeader)
}

func TestGitHubDispatchRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	defer server.Close()

	d, err := NewGitHubDispatcher(helpers.GithubDispatchConfig{Token: "t", Owner: "o", Repo: "r", BaseURL: server.URL + "/"})
	require.NoError(t, err)
	assert.Error(t, d.Dispatch(context.Background(), Request{Uuid: "r-1"}))
}

func TestGitHubDispatcherNeedsSettings(t *testing.T) {
	_, err := NewGitHubDispatcher(helpers.GithubDispatchConfig{Token: "t"})
	assert.Error(t, err)
	_, err = NewGitHubDispatcher(helpers.GithubDispatchConfig{Owner: "o", Repo: "r"})
	assert.Error(t, err)
}

func TestUnknownDispatchMode(t *testing.T) {
	_, err := NewDispatcherFromConfig(helpers.DispatchConfig{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}
