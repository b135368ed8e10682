package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/renderservice/dispatch"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

const DefaultQuality = "high"
const dispatchTimeout = 30 * time.Second

/**
POST /trigger-rendering: records the render and hands it to CI. A uuid we already know is refused with a 409
so that a retried trigger can never start a second render.
*/
type TriggerHandler struct {
	store      *renderjobs.Store
	dispatcher dispatch.Dispatcher
}

func (h TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "POST") {
		return
	}

	var req models.RenderTriggerRequest
	if errResponse := helpers.ReadValidatedJsonBody(r.Body, &req); errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}
	renderId, parseErr := uuid.Parse(req.Uuid)
	if parseErr != nil {
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "malformed UUID"}, w, 400)
		return
	}
	if req.Quality == "" {
		req.Quality = DefaultQuality
	}

	job := &renderjobs.RenderJob{
		Uuid:      renderId.String(),
		Code:      req.Code,
		SceneName: req.SceneName,
		Quality:   req.Quality,
	}
	insertErr := h.store.Insert(job)
	if insertErr == renderjobs.ErrDuplicate {
		response := models.RenderTriggerResponse{Success: false, Uuid: job.Uuid, Message: "a render with this uuid already exists"}
		if existing, getErr := h.store.Get(job.Uuid); getErr == nil {
			response.Status = existing.Status
		}
		log.Warn().Str("render_id", job.Uuid).Msg("Refusing duplicate render trigger")
		helpers.WriteJsonContent(response, w, 409)
		return
	} else if insertErr != nil {
		log.Error().Str("render_id", job.Uuid).Msgf("Could not record render: %s", insertErr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not record render"}, w, 500)
		return
	}

	//not tied to the request, a caller that gives up must not leave a half-dispatched render behind
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	dispatchErr := h.dispatcher.Dispatch(ctx, dispatch.Request{
		Uuid:      job.Uuid,
		Code:      job.Code,
		SceneName: job.SceneName,
		Quality:   job.Quality,
	})
	if dispatchErr != nil {
		message := "could not dispatch render: " + dispatchErr.Error()
		if _, markErr := h.store.MarkFailed(job.Uuid, message); markErr != nil && markErr != renderjobs.ErrAlreadyTerminal {
			log.Error().Str("render_id", job.Uuid).Msgf("Could not record dispatch failure: %s", markErr)
		}
		helpers.WriteJsonContent(models.RenderTriggerResponse{
			Success: false,
			Uuid:    job.Uuid,
			Status:  models.JOB_FAILED,
			Message: message,
		}, w, 502)
		return
	}

	updated, markErr := h.store.MarkProcessing(job.Uuid)
	if markErr != nil && markErr != renderjobs.ErrAlreadyTerminal {
		log.Error().Str("render_id", job.Uuid).Msgf("Render dispatched but could not be marked processing: %s", markErr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not update render"}, w, 500)
		return
	}
	helpers.WriteJsonContent(models.RenderTriggerResponse{
		Success: true,
		Uuid:    job.Uuid,
		Status:  updated.Status,
		Message: "rendering started",
	}, w, 200)
}
