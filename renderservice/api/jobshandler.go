package api

import (
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

type ListResponse struct {
	Total int                    `json:"total"`
	Jobs  []renderjobs.RenderJob `json:"jobs"`
}

/**
GET /jobs, for operators
*/
type ListHandler struct {
	store *renderjobs.Store
}

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}
	jobs, err := h.store.List()
	if err != nil {
		log.Error().Msgf("Could not list renders: %s", err)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not list renders"}, w, 500)
		return
	}
	helpers.WriteJsonContent(ListResponse{Total: len(jobs), Jobs: jobs}, w, 200)
}

/**
DELETE /job/{uuid}
*/
type DeleteHandler struct {
	store *renderjobs.Store
}

func (h DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "DELETE") {
		return
	}
	renderId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	if err := h.store.Delete(renderId.String()); err != nil {
		writeLookupError(w, renderId.String(), err)
		return
	}
	log.Info().Str("render_id", renderId.String()).Msg("Render deleted")
	helpers.WriteJsonContent(models.RenderWebhookResponse{Success: true, Message: "render deleted", Uuid: renderId.String()}, w, 200)
}

type HealthcheckResponse struct {
	Status     string `json:"status"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
}

type HealthcheckHandler struct {
	store *renderjobs.Store
}

func (h HealthcheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pending, pendingErr := h.store.CountByStatus(models.JOB_PENDING)
	processing, processingErr := h.store.CountByStatus(models.JOB_PROCESSING)
	if pendingErr != nil || processingErr != nil {
		log.Error().Msgf("HEALTHCHECK FAILED: could not read render store: %v %v", pendingErr, processingErr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "could not read render store"}, w, 500)
		return
	}
	helpers.WriteJsonContent(HealthcheckResponse{Status: "ok", Pending: pending, Processing: processing}, w, 200)
}
