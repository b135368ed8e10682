package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/status"
	"github.com/phuslu/log"
)

/**
the single message sent over the websocket
*/
type PushMessage struct {
	Event string `json:"event"`
	ResultResponse
}

/**
GET /ws/{uuid}: same as the SSE channel, over a websocket
*/
type WebsocketHandler struct {
	waiter   *status.Waiter
	upgrader websocket.Upgrader
}

func newWebsocketHandler(waiter *status.Waiter) WebsocketHandler {
	return WebsocketHandler{
		waiter: waiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobId, errResponse := helpers.GetJobIdFromPath(r)
	if errResponse != nil {
		helpers.WriteJsonContent(errResponse, w, 400)
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

	conn, upgradeErr := h.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		log.Warn().Str("uuid", jobId.String()).Msgf("Websocket upgrade failed: %s", upgradeErr)
		return
	}
	defer conn.Close()

	//the client never sends anything we care about; a read error means it has gone
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	result, err := h.waiter.WaitForTerminal(ctx, *jobId)
	if err == models.ErrNotFound {
		result, err = status.VanishedResult(*jobId), nil
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Str("uuid", jobId.String()).Msgf("Could not wait for job: %s", err)
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "could not read job"))
		}
		return
	}

	eventName := EVENT_RESULT
	if result.TimedOut {
		eventName = EVENT_TIMEOUT
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if writeErr := conn.WriteJSON(PushMessage{Event: eventName, ResultResponse: resultResponseFor(*jobId, result.Record, result.TimedOut)}); writeErr != nil {
		log.Warn().Str("uuid", jobId.String()).Msgf("Could not send websocket message: %s", writeErr)
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
