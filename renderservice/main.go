package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/renderservice/api"
	"github.com/guardian/enginimate/renderservice/dispatch"
	"github.com/guardian/enginimate/renderservice/reaper"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
)

func main() {
	configFile := flag.String("config", "config/renderservice.yaml", "path to the render service configuration")
	flag.Parse()

	config, configReadErr := helpers.ReadRenderServiceConfig(*configFile)
	if configReadErr != nil {
		log.Fatal().Msgf("No configuration, can't continue")
	}
	helpers.SetupLogging(config.Server.LogLevel, config.Server.Console)

	if config.Webhook.Secret == "" {
		log.Fatal().Msgf("No webhook secret configured, renders could never report back. Set WEBHOOK_SECRET.")
	}

	store, storeErr := renderjobs.Open(config.Store)
	if storeErr != nil {
		log.Fatal().Msgf("Could not open render store: %s", storeErr)
	}
	defer store.Close()

	dispatcher, dispatchErr := dispatch.NewDispatcherFromConfig(config.Dispatch)
	if dispatchErr != nil {
		log.Fatal().Msgf("Could not set up render dispatch: %s", dispatchErr)
	}

	var cleaner reaper.RunnerCleaner
	if k8s, isK8s := dispatcher.(*dispatch.KubernetesDispatcher); isK8s {
		cleaner = k8s
	}
	renderReaper, reaperErr := reaper.NewReaper(store, config.Reaper, cleaner)
	if reaperErr != nil {
		log.Fatal().Msgf("Could not set up reaper: %s", reaperErr)
	}
	if startErr := renderReaper.Start(); startErr != nil {
		log.Fatal().Msgf("Could not start reaper: %s", startErr)
	}

	mux := http.NewServeMux()
	mux.Handle("/default", http.NotFoundHandler())
	api.NewRenderEndpoints(store, dispatcher, config.Webhook.Secret, config.Result).WireUp(mux)

	server := &http.Server{Addr: config.Server.Listen, Handler: mux}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		log.Info().Msg("Shutting down")

		//long-polling callers get at most this long to finish
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("HTTP server did not shut down cleanly: %s", err)
		}
		renderReaper.Stop()
	}()

	log.Info().Msgf("Starting render service on %s", config.Server.Listen)
	startServerErr := server.ListenAndServe()
	if startServerErr != nil && startServerErr != http.ErrServerClosed {
		log.Fatal().Msgf("%s", startServerErr)
	}
	<-shutdownDone
}
