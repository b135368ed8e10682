package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

/**
GET /render-result/{uuid}?wait=bool&timeout=secs. With wait set the request is held until the render
finishes or the timeout passes, which gives a 408.
*/
type ResultHandler struct {
	store          *renderjobs.Store
	pollInterval   time.Duration
	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

func resultResponseFor(job *renderjobs.RenderJob) models.RenderResultResponse {
	response := models.RenderResultResponse{Uuid: job.Uuid, Status: job.Status}
	switch job.Status {
	case models.JOB_COMPLETED:
		response.Success = true
		response.VideoUrl = job.VideoUrl
		response.PublicId = job.PublicId
	case models.JOB_FAILED:
		response.Error = job.Error
	}
	return response
}

/**
works out how long to hold the request for. Bad values fall back to the default; anything over the
maximum is clamped.
*/
func (h ResultHandler) waitTime(r *http.Request) (bool, time.Duration) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		return false, 0
	}
	timeout := h.defaultTimeout
	if secs, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if h.maxTimeout > 0 && timeout > h.maxTimeout {
		timeout = h.maxTimeout
	}
	return true, timeout
}

func (h ResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}
	parsedId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}
	renderId := parsedId.String()

	job, err := h.store.Get(renderId)
	if err != nil {
		writeLookupError(w, renderId, err)
		return
	}

	wait, timeout := h.waitTime(r)
	if !wait || job.Status.IsTerminal() {
		helpers.WriteJsonContent(resultResponseFor(job), w, 200)
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("render_id", renderId).Msg("Caller went away while waiting for render")
			return
		case <-deadline.C:
			response := resultResponseFor(job)
			response.TimedOut = true
			helpers.WriteJsonContent(response, w, 408)
			return
		case <-ticker.C:
			latest, getErr := h.store.Get(renderId)
			if getErr != nil {
				writeLookupError(w, renderId, getErr)
				return
			}
			job = latest
			if job.Status.IsTerminal() {
				helpers.WriteJsonContent(resultResponseFor(job), w, 200)
				return
			}
		}
	}
}
