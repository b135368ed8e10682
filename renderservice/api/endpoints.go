package api

import (
	"net/http"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/renderservice/dispatch"
	"github.com/guardian/enginimate/renderservice/renderjobs"
)

type RenderEndpoints struct {
	TriggerHandler     TriggerHandler
	StatusHandler      StatusHandler
	ResultHandler      ResultHandler
	WebhookHandler     WebhookHandler
	ListHandler        ListHandler
	DeleteHandler      DeleteHandler
	HealthcheckHandler HealthcheckHandler
}

func NewRenderEndpoints(store *renderjobs.Store, dispatcher dispatch.Dispatcher, webhookSecret string, result helpers.ResultConfig) RenderEndpoints {
	if result.PollInterval <= 0 {
		result.PollInterval = 3 * time.Second
	}
	if result.DefaultTimeout <= 0 {
		result.DefaultTimeout = 300 * time.Second
	}
	return RenderEndpoints{
		TriggerHandler: TriggerHandler{store: store, dispatcher: dispatcher},
		StatusHandler:  StatusHandler{store: store},
		ResultHandler: ResultHandler{
			store:          store,
			pollInterval:   result.PollInterval,
			defaultTimeout: result.DefaultTimeout,
			maxTimeout:     result.MaxTimeout,
		},
		WebhookHandler:     WebhookHandler{store: store, secret: []byte(webhookSecret)},
		ListHandler:        ListHandler{store: store},
		DeleteHandler:      DeleteHandler{store: store},
		HealthcheckHandler: HealthcheckHandler{store: store},
	}
}

func (e RenderEndpoints) WireUp(mux *http.ServeMux) {
	mux.Handle("/trigger-rendering", e.TriggerHandler)
	mux.Handle("/render-status/{uuid}", e.StatusHandler)
	mux.Handle("/render-result/{uuid}", e.ResultHandler)
	mux.Handle("/webhook/render-complete", e.WebhookHandler)
	mux.Handle("/job/{uuid}", e.DeleteHandler)
	mux.Handle("/jobs", e.ListHandler)
	mux.Handle("/healthcheck", e.HealthcheckHandler)
}
