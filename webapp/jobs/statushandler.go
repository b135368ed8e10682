package jobs

import (
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/status"
	"github.com/phuslu/log"
)

/**
GET /status/{uuid}: the record as it stands
*/
type StatusHandler struct {
	waiter *status.Waiter
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}

	jobId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	record, err := h.waiter.Snapshot(*jobId)
	switch err {
	case nil:
		helpers.WriteJsonContent(record.ToResponse(), w, 200)
	case models.ErrNotFound:
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "not_found", Detail: "job not found"}, w, 404)
	default:
		log.Error().Str("uuid", jobId.String()).Msgf("Could not read job record: %s", err)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not read job"}, w, 500)
	}
}
