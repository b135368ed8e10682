package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v7"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/agents"
	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/jobrunner"
	"github.com/guardian/enginimate/webapp/jobs"
	"github.com/guardian/enginimate/webapp/persistence"
	"github.com/guardian/enginimate/webapp/renderclient"
	"github.com/guardian/enginimate/webapp/sandbox"
	"github.com/guardian/enginimate/webapp/status"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/phuslu/log"
)

type MyHttpApp struct {
	healthcheck HealthcheckHandler
	jobs        jobs.JobsEndpoints
}

func SetupRedis(config *helpers.Config) (*redis.Client, error) {
	log.Info().Msgf("Connecting to Redis on %s", config.Redis.Address)
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Address,
		Password: config.Redis.Password,
		DB:       config.Redis.DBNum,
	})

	_, err := client.Ping().Result()
	if err != nil {
		log.Error().Msgf("Could not contact Redis: %s", err)
		return nil, err
	}
	log.Info().Msg("Done.")
	return client, nil
}

func main() {
	var app MyHttpApp
	configFile := flag.String("config", "config/serverconfig.yaml", "path to the server configuration")
	flag.Parse()

	/*
		read in config and establish connection to persistence layer
	*/
	config, configReadErr := helpers.ReadConfig(*configFile)
	if configReadErr != nil {
		log.Fatal().Msgf("No configuration, can't continue")
	}
	helpers.SetupLogging(config.Server.LogLevel, config.Server.Console)

	redisClient, redisErr := SetupRedis(config)
	if redisErr != nil {
		log.Fatal().Msgf("Could not connect to redis")
	}

	ctx := context.Background()
	inferenceClient, inferenceErr := inference.NewClientFromConfig(ctx, config.Inference)
	if inferenceErr != nil {
		log.Fatal().Msgf("Could not set up inference: %s", inferenceErr)
	}

	persister, persistErr := persistence.NewPersisterFromConfig(ctx, config.Persistence)
	if persistErr != nil {
		log.Fatal().Msgf("Could not set up persistence: %s", persistErr)
	}
	defer persister.Close()

	steps := agents.NewPipeline(config, agents.Collaborators{
		Inference: inferenceClient,
		Schemas:   inference.MustCompileSchemas(),
		Sandbox:   sandbox.NewHTTPChecker(config.Sandbox.BaseURL, config.Sandbox.PollInterval, config.Sandbox.Timeout),
		Render:    renderclient.NewHTTPDispatcher(config.Render),
		Persister: persister,
	})
	engine, engineErr := workflow.NewEngine(steps, config.Workflow.MaxTransitions)
	if engineErr != nil {
		log.Fatal().Msgf("Could not build workflow: %s", engineErr)
	}

	store := models.NewJobStore(redisClient, config.Jobs.TTL)
	runner := jobrunner.NewJobRunner(store, engine, config.Jobs.QueueBuffer, config.Jobs.ErrorMaxLen)
	waiter := status.NewWaiter(store, config.Status.PollInterval, config.Status.LongPollTimeout)

	app.healthcheck.redisClient = redisClient
	app.jobs = jobs.NewJobsEndpoints(runner, waiter)

	mux := http.NewServeMux()
	mux.Handle("/default", http.NotFoundHandler())
	mux.Handle("/healthcheck", app.healthcheck)
	app.jobs.WireUp(mux)
	jobrunner.NewJobRunnerEndpoints(runner).WireUp(mux)

	server := &http.Server{Addr: config.Server.Listen, Handler: mux}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Jobs.DrainTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("HTTP server did not shut down cleanly: %s", err)
		}
		if err := runner.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("%s", err)
		}
	}()

	log.Info().Msgf("Starting server on %s", config.Server.Listen)
	startServerErr := server.ListenAndServe()
	if startServerErr != nil && startServerErr != http.ErrServerClosed {
		log.Fatal().Msgf("%s", startServerErr)
	}
	<-shutdownDone
}
