package api

import (
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/google/go-github/v57/github"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

const maxWebhookBody = 1 << 20

/**
POST /webhook/render-complete: CI reports the end of a render. The body must carry a valid
X-Hub-Signature-256 made with the shared secret; anything else is refused with a 403 before the body is
even parsed.
*/
type WebhookHandler struct {
	store  *renderjobs.Store
	secret []byte
}

func (h WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "POST") {
		return
	}

	body, readErr := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if readErr != nil {
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "error", Detail: "could not read request body"}, w, 400)
		return
	}

	signature := r.Header.Get(helpers.SignatureHeader)
	if signature == "" || len(h.secret) == 0 {
		log.Warn().Msgf("Refusing unsigned render webhook from %s", r.RemoteAddr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "forbidden", Detail: "missing signature"}, w, 403)
		return
	}
	if sigErr := github.ValidateSignature(signature, body, h.secret); sigErr != nil {
		log.Warn().Msgf("Refusing render webhook from %s: %s", r.RemoteAddr, sigErr)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "forbidden", Detail: "invalid signature"}, w, 403)
		return
	}

	var payload models.RenderWebhookPayload
	if errResponse := helpers.ReadValidatedJsonBody(bytes.NewReader(body), &payload); errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
		return
	}

	job, err := h.store.Complete(payload.Uuid, renderjobs.Outcome{
		Status:      payload.Status,
		VideoUrl:    payload.VideoUrl,
		PublicId:    payload.PublicId,
		Error:       payload.Error,
		CompletedAt: payload.CompletedAt,
	})
	switch err {
	case nil:
		log.Info().Str("render_id", job.Uuid).Msgf("Render finished with status %s", job.Status)
		helpers.WriteJsonContent(models.RenderWebhookResponse{Success: true, Message: "webhook processed", Uuid: job.Uuid}, w, 200)
	case renderjobs.ErrNotFound:
		log.Warn().Str("render_id", payload.Uuid).Msg("Received webhook for unknown render")
		helpers.WriteJsonContent(models.RenderWebhookResponse{Success: false, Message: "unknown uuid", Uuid: payload.Uuid}, w, 200)
	case renderjobs.ErrAlreadyTerminal:
		log.Warn().Str("render_id", payload.Uuid).Msgf("Ignoring webhook for render that already finished as %s", job.Status)
		helpers.WriteJsonContent(models.RenderWebhookResponse{Success: false, Message: "render already finished", Uuid: payload.Uuid}, w, 200)
	default:
		log.Error().Str("render_id", payload.Uuid).Msgf("Could not record render outcome: %s", err)
		helpers.WriteJsonContent(helpers.GenericErrorResponse{Status: "db_error", Detail: "could not record render outcome"}, w, 500)
	}
}
