package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/renderservice/dispatch"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "webhook-secret"

type recordingDispatcher struct {
	mutex    sync.Mutex
	requests []dispatch.Request
	err      error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req dispatch.Request) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.requests = append(d.requests, req)
	return d.err
}

func setupService(t *testing.T, dispatcher dispatch.Dispatcher) (*httptest.Server, *renderjobs.Store) {
	store, err := renderjobs.Open(helpers.StoreConfig{Path: t.TempDir()})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewRenderEndpoints(store, dispatcher, testSecret, helpers.ResultConfig{
		PollInterval:   10 * time.Millisecond,
		DefaultTimeout: 2 * time.Second,
		MaxTimeout:     3 * time.Second,
	}).WireUp(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server, store
}

func postJson(t *testing.T, url string, body interface{}) *http.Response {
	content, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(content))
	require.NoError(t, err)
	return resp
}

func postWebhook(t *testing.T, url string, payload interface{}, signature func([]byte) string) *http.Response {
	content, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, url+"/webhook/render-complete", bytes.NewReader(content))
	req.Header.Set("Content-Type", "application/json")
	if signature != nil {
		req.Header.Set(helpers.SignatureHeader, signature(content))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func signWith(secret string) func([]byte) string {
	return func(body []byte) string {
		return helpers.SignPayload([]byte(secret), body)
	}
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestTriggerRendering(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	server, store := setupService(t, dispatcher)
	renderId := uuid.New()

	resp := postJson(t, server.URL+"/trigger-rendering", models.RenderTriggerRequest{
		Uuid:      renderId.String(),
		Code:      "class GeneratedScene(Scene): pass",
		SceneName: "GeneratedScene",
	})
	var response models.RenderTriggerResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, response.Success)
	assert.Equal(t, models.JOB_PROCESSING, response.Status)

	require.Len(t, dispatcher.requests, 1)
	assert.Equal(t, DefaultQuality, dispatcher.requests[0].Quality)
	assert.Equal(t, "GeneratedScene", dispatcher.requests[0].SceneName)

	job, err := store.Get(renderId.String())
	require.NoError(t, err)
	assert.Equal(t, models.JOB_PROCESSING, job.Status)
}

func TestTriggerRejectsDuplicate(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	server, _ := setupService(t, dispatcher)
	req := models.RenderTriggerRequest{Uuid: uuid.New().String(), Code: "code", SceneName: "Scene", Quality: "low"}

	first := postJson(t, server.URL+"/trigger-rendering", req)
	first.Body.Close()
	require.Equal(t, 200, first.StatusCode)

	second := postJson(t, server.URL+"/trigger-rendering", req)
	var response models.RenderTriggerResponse
	decode(t, second, &response)
	assert.Equal(t, 409, second.StatusCode)
	assert.False(t, response.Success)
	assert.Equal(t, models.JOB_PROCESSING, response.Status)
	assert.Len(t, dispatcher.requests, 1, "a duplicate must not be dispatched")
}

func TestTriggerDispatchFailure(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{err: errors.New("github said no")})
	renderId := uuid.New().String()

	resp := postJson(t, server.URL+"/trigger-rendering", models.RenderTriggerRequest{Uuid: renderId, Code: "code", SceneName: "Scene"})
	var response models.RenderTriggerResponse
	decode(t, resp, &response)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, models.JOB_FAILED, response.Status)
	assert.Contains(t, response.Message, "github said no")

	job, err := store.Get(renderId)
	require.NoError(t, err)
	assert.Equal(t, models.JOB_FAILED, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestTriggerBadRequests(t *testing.T) {
	server, _ := setupService(t, &recordingDispatcher{})

	for _, body := range []interface{}{
		map[string]string{"code": "code", "scene_name": "Scene"},
		map[string]string{"uuid": "not-a-uuid", "code": "code", "scene_name": "Scene"},
		map[string]string{"uuid": uuid.New().String(), "code": "code", "scene_name": "Scene", "quality": "ultra"},
		map[string]string{"uuid": uuid.New().String(), "scene_name": "Scene"},
	} {
		resp := postJson(t, server.URL+"/trigger-rendering", body)
		resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode, "body %v", body)
	}

	resp, err := http.Get(server.URL + "/trigger-rendering")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 405, resp.StatusCode)
}

func TestWebhookCompletesRender(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId}))

	resp := postWebhook(t, server.URL, models.RenderWebhookPayload{
		Uuid:     renderId,
		Status:   models.JOB_COMPLETED,
		VideoUrl: "https://cdn/v.mp4",
		PublicId: "renders/v",
	}, signWith(testSecret))
	var response models.RenderWebhookResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, response.Success)

	job, _ := store.Get(renderId)
	assert.Equal(t, models.JOB_COMPLETED, job.Status)
	assert.Equal(t, "https://cdn/v.mp4", job.VideoUrl)
	assert.NotNil(t, job.CompletedAt)

	//a second report does not change anything
	resp = postWebhook(t, server.URL, models.RenderWebhookPayload{Uuid: renderId, Status: models.JOB_FAILED, Error: "late"}, signWith(testSecret))
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, response.Success)
	job, _ = store.Get(renderId)
	assert.Equal(t, models.JOB_COMPLETED, job.Status)
}

func TestWebhookSignatureEnforced(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId}))
	payload := models.RenderWebhookPayload{Uuid: renderId, Status: models.JOB_COMPLETED, VideoUrl: "https://evil/v.mp4"}

	for name, signer := range map[string]func([]byte) string{
		"missing":      nil,
		"wrong secret": signWith("not-the-secret"),
		"garbage":      func([]byte) string { return "sha256=zzzz" },
		"tampered": func(body []byte) string {
			return helpers.SignPayload([]byte(testSecret), append(body, ' '))
		},
	} {
		resp := postWebhook(t, server.URL, payload, signer)
		resp.Body.Close()
		assert.Equal(t, 403, resp.StatusCode, name)
	}

	job, _ := store.Get(renderId)
	assert.Equal(t, models.JOB_PENDING, job.Status)
	assert.Empty(t, job.VideoUrl)
}

func TestWebhookCompletedNeedsVideoUrl(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId}))

	resp := postWebhook(t, server.URL, models.RenderWebhookPayload{Uuid: renderId, Status: models.JOB_COMPLETED, PublicId: "renders/v"}, signWith(testSecret))
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)

	job, _ := store.Get(renderId)
	assert.Equal(t, models.JOB_PENDING, job.Status)
	assert.Nil(t, job.CompletedAt)

	//a failure report does not need a url
	resp = postWebhook(t, server.URL, models.RenderWebhookPayload{Uuid: renderId, Status: models.JOB_FAILED, Error: "manim crashed"}, signWith(testSecret))
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	job, _ = store.Get(renderId)
	assert.Equal(t, models.JOB_FAILED, job.Status)
}

func TestWebhookUnknownRender(t *testing.T) {
	server, _ := setupService(t, &recordingDispatcher{})

	resp := postWebhook(t, server.URL, models.RenderWebhookPayload{Uuid: uuid.New().String(), Status: models.JOB_FAILED, Error: "x"}, signWith(testSecret))
	var response models.RenderWebhookResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, response.Success)
}

func TestRenderResultWaitsForWebhook(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		store.Complete(renderId, renderjobs.Outcome{Status: models.JOB_COMPLETED, VideoUrl: "https://cdn/v.mp4", PublicId: "renders/v"})
	}()

	resp, err := http.Get(server.URL + "/render-result/" + renderId + "?wait=true&timeout=2")
	require.NoError(t, err)
	var response models.RenderResultResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, response.Success)
	assert.Equal(t, models.JOB_COMPLETED, response.Status)
	assert.Equal(t, "renders/v", response.PublicId)
}

func TestRenderResultTimeout(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId}))

	started := time.Now()
	resp, err := http.Get(server.URL + "/render-result/" + renderId + "?wait=true&timeout=1")
	require.NoError(t, err)
	var response models.RenderResultResponse
	decode(t, resp, &response)
	assert.Equal(t, 408, resp.StatusCode)
	assert.True(t, response.TimedOut)
	assert.Equal(t, models.JOB_PENDING, response.Status)
	assert.GreaterOrEqual(t, time.Since(started), time.Second)
}

func TestRenderResultWithoutWait(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	pending := uuid.New().String()
	failed := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: pending}))
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: failed}))
	_, err := store.Complete(failed, renderjobs.Outcome{Status: models.JOB_FAILED, Error: "LaTeX missing"})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/render-result/" + pending)
	require.NoError(t, err)
	var response models.RenderResultResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, response.Success)
	assert.Equal(t, models.JOB_PENDING, response.Status)

	resp, err = http.Get(server.URL + "/render-result/" + failed)
	require.NoError(t, err)
	decode(t, resp, &response)
	assert.Equal(t, models.JOB_FAILED, response.Status)
	assert.Equal(t, "LaTeX missing", response.Error)

	resp, err = http.Get(server.URL + "/render-result/" + uuid.New().String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestStatusListAndDelete(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	renderId := uuid.New().String()
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: renderId, Code: "secret code", SceneName: "Scene"}))

	resp, err := http.Get(server.URL + "/render-status/" + renderId)
	require.NoError(t, err)
	var job renderjobs.RenderJob
	decode(t, resp, &job)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, renderId, job.Uuid)
	assert.Equal(t, "Scene", job.SceneName)

	resp, err = http.Get(server.URL + "/jobs")
	require.NoError(t, err)
	var list ListResponse
	decode(t, resp, &list)
	assert.Equal(t, 1, list.Total)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/job/"+renderId, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = http.Get(server.URL + "/render-status/" + renderId)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHealthcheck(t *testing.T) {
	server, store := setupService(t, &recordingDispatcher{})
	require.NoError(t, store.Insert(&renderjobs.RenderJob{Uuid: uuid.New().String()}))

	resp, err := http.Get(server.URL + "/healthcheck")
	require.NoError(t, err)
	var response HealthcheckResponse
	decode(t, resp, &response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, response.Pending)
}
