package jobs

import (
	"net/http"

	"github.com/guardian/enginimate/webapp/status"
)

type JobsEndpoints struct {
	RunHandler       RunJobHandler
	StatusHandler    StatusHandler
	ResultHandler    ResultHandler
	EventsHandler    EventsHandler
	WebsocketHandler WebsocketHandler
}

func NewJobsEndpoints(runner Submitter, waiter *status.Waiter) JobsEndpoints {
	return JobsEndpoints{
		RunHandler:       RunJobHandler{runner: runner},
		StatusHandler:    StatusHandler{waiter: waiter},
		ResultHandler:    ResultHandler{waiter: waiter},
		EventsHandler:    EventsHandler{waiter: waiter},
		WebsocketHandler: newWebsocketHandler(waiter),
	}
}

func (e JobsEndpoints) WireUp(mux *http.ServeMux) {
	mux.Handle("/run", e.RunHandler)
	mux.Handle("/status/{uuid}", e.StatusHandler)
	mux.Handle("/result/{uuid}", e.ResultHandler)
	mux.Handle("/events/{uuid}", e.EventsHandler)
	mux.Handle("GET /ws/{uuid}", e.WebsocketHandler)
}
