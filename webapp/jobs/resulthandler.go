package jobs

import (
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/status"
	"github.com/phuslu/log"
)

/**
GET /result/{uuid}: waits for the job to finish. A wait that runs out gets a 408 with timed_out set.
*/
type ResultHandler struct {
	waiter *status.Waiter
}

func (h ResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}

	jobId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	result, err := h.waiter.WaitForTerminal(r.Context(), *jobId)
	switch {
	case err == models.ErrNotFound:
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "not_found", Detail: "job not found"}, w, 404)
	case err != nil && r.Context().Err() != nil:
		log.Debug().Str("uuid", jobId.String()).Msg("Client went away during long poll")
	case err != nil:
		log.Error().Str("uuid", jobId.String()).Msgf("Could not wait for job: %s", err)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not read job"}, w, 500)
	case result.TimedOut:
		helpers.WriteJsonContent(resultResponseFor(*jobId, result.Record, true), w, 408)
	default:
		helpers.WriteJsonContent(resultResponseFor(*jobId, result.Record, false), w, 200)
	}
}
