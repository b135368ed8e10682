package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/status"
	"github.com/phuslu/log"
)

const (
	EVENT_RESULT  = "result"
	EVENT_TIMEOUT = "timeout"
)

/**
GET /events/{uuid}: server-sent events. Emits exactly one event, `result` or `timeout`, then closes.
*/
type EventsHandler struct {
	waiter *status.Waiter
}

func (h EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}

	jobId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "streaming not supported"}, w, 500)
		return
	}

	if _, err := h.waiter.Snapshot(*jobId); err != nil {
		if err == models.ErrNotFound {
			helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "not_found", Detail: "job not found"}, w, 404)
		} else {
			helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not read job"}, w, 500)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(200)
	flusher.Flush()

	result, err := h.waiter.WaitForTerminal(r.Context(), *jobId)
	if err == models.ErrNotFound {
		//expired since the snapshot; the stream is already open so it still gets its one event
		result, err = status.VanishedResult(*jobId), nil
	}
	if err != nil {
		if r.Context().Err() == nil {
			log.Error().Str("uuid", jobId.String()).Msgf("Could not wait for job: %s", err)
		}
		return
	}

	eventName := EVENT_RESULT
	if result.TimedOut {
		eventName = EVENT_TIMEOUT
	}
	payload, _ := json.Marshal(resultResponseFor(*jobId, result.Record, result.TimedOut))
	if _, writeErr := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, payload); writeErr != nil {
		log.Warn().Str("uuid", jobId.String()).Msgf("Could not send event: %s", writeErr)
		return
	}
	flusher.Flush()
}
