package jobs

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/phuslu/log"
)

/**
Submitter is the part of the job runner the API needs
*/
type Submitter interface {
	Submit(jobId uuid.UUID, query string) (*models.JobRecord, error)
}

type RunJobHandler struct {
	runner Submitter
}

func (h RunJobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "POST") {
		return
	}

	var rq RunRequest
	if errResponse := helpers.ReadValidatedJsonBody(r.Body, &rq); errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	jobId, parseErr := uuid.Parse(rq.Uuid)
	if parseErr != nil {
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "malformed UUID"}, w, 400)
		return
	}

	record, submitErr := h.runner.Submit(jobId, rq.Query)
	if submitErr != nil {
		log.Error().Str("uuid", jobId.String()).Msgf("Could not submit job: %s", submitErr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "could not start job"}, w, 503)
		return
	}

	helpers.WriteJsonContent(RunResponse{Uuid: jobId.String(), Status: record.Status}, w, 200)
}
