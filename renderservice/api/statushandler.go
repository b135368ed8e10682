package api

import (
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

func writeLookupError(w http.ResponseWriter, renderId string, err error) {
	if err == renderjobs.ErrNotFound {
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "not_found", Detail: "render not found"}, w, 404)
		return
	}
	log.Error().Str("render_id", renderId).Msgf("Could not read render: %s", err)
	helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not read render"}, w, 500)
}

/**
GET /render-status/{uuid}
*/
type StatusHandler struct {
	store *renderjobs.Store
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}
	renderId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	job, err := h.store.Get(renderId.String())
	if err != nil {
		writeLookupError(w, renderId.String(), err)
		return
	}
	helpers.WriteJsonContent(job, w, 200)
}
