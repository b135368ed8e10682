package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/models"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/phuslu/log"
	"golang.org/x/text/unicode/norm"
)

var ErrShuttingDown = errors.New("job runner is shutting down")

const shutdownMessage = "the service shut down before the job could start"

const DefaultErrorMaxLen = 500

/**
WorkflowRunner drives one job from start to finish. *workflow.Engine is the real one.
*/
type WorkflowRunner interface {
	Run(ctx context.Context, initial workflow.State) workflow.State
}

type runRequest struct {
	jobId uuid.UUID
	runId string
	query string
	ctx   context.Context
}

type activeRun struct {
	runId  string
	cancel context.CancelFunc
}

type JobRunner struct {
	store         *models.JobStore
	engine        WorkflowRunner
	queue         chan runRequest
	errorMaxLen   int
	baseCtx       context.Context
	baseCancel    context.CancelFunc
	shutdownChan  chan struct{}
	processorDone chan struct{}
	shutdownOnce  sync.Once

	mutex   sync.Mutex
	closed  bool
	running map[uuid.UUID]*activeRun
	wg      sync.WaitGroup
}

/**
create a new JobRunner and start its queue processor
*/
func NewJobRunner(store *models.JobStore, engine WorkflowRunner, channelBuffer int, errorMaxLen int) *JobRunner {
	if errorMaxLen <= 0 {
		errorMaxLen = DefaultErrorMaxLen
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())

	runner := &JobRunner{
		store:         store,
		engine:        engine,
		queue:         make(chan runRequest, channelBuffer),
		errorMaxLen:   errorMaxLen,
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
		shutdownChan:  make(chan struct{}),
		processorDone: make(chan struct{}),
		running:       make(map[uuid.UUID]*activeRun),
	}
	go runner.requestProcessor()
	return runner
}

func normaliseQuery(query string) string {
	return norm.NFC.String(strings.TrimSpace(query))
}

/**
Submit (re)starts the job with the given uuid. Any run already in progress for it is cancelled and the record
is replaced with a fresh PENDING one owned by the new run. Returns as soon as the run is queued.
*/
func (j *JobRunner) Submit(jobId uuid.UUID, query string) (*models.JobRecord, error) {
	select {
	case <-j.shutdownChan:
		return nil, ErrShuttingDown
	default:
	}

	query = normaliseQuery(query)
	runId := uuid.New().String()
	runCtx, cancel := context.WithCancel(j.baseCtx)

	//held until the request is queued, so that Shutdown cannot drain the queue in between
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.closed {
		cancel()
		return nil, ErrShuttingDown
	}

	record, createErr := j.store.Create(jobId, query, runId)
	if createErr != nil {
		cancel()
		log.Error().Str("uuid", jobId.String()).Msgf("Could not create job record: %s", createErr)
		return nil, createErr
	}
	//the record now belongs to the new run
	if previous, haveRun := j.running[jobId]; haveRun {
		log.Info().Str("uuid", jobId.String()).Str("run_id", previous.runId).Msg("Job resubmitted, cancelling the previous run")
		previous.cancel()
	}
	j.running[jobId] = &activeRun{runId: runId, cancel: cancel}

	rq := runRequest{jobId: jobId, runId: runId, query: query, ctx: runCtx}
	select {
	case j.queue <- rq:
		log.Info().Str("uuid", jobId.String()).Str("run_id", runId).Msg("Job queued")
		return record, nil
	case <-j.shutdownChan:
		cancel()
		delete(j.running, jobId)
		j.writeFailure(rq, shutdownMessage)
		return nil, ErrShuttingDown
	}
}

/**
number of runs that have been submitted and not yet finished
*/
func (j *JobRunner) ActiveRuns() int {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return len(j.running)
}

func (j *JobRunner) QueueDepth() int {
	return len(j.queue)
}

/**
forgets the run, if it is still the current one for the job, and releases its context
*/
func (j *JobRunner) release(jobId uuid.UUID, runId string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if current, haveRun := j.running[jobId]; haveRun && current.runId == runId {
		current.cancel()
		delete(j.running, jobId)
	}
}

/**
goroutine that takes queued requests and starts a worker for each
*/
func (j *JobRunner) requestProcessor() {
	log.Info().Msg("Started requestProcessor routine")
	defer close(j.processorDone)
	for {
		select {
		case rq := <-j.queue:
			j.wg.Add(1)
			go j.runJob(rq)
		case <-j.shutdownChan:
			log.Info().Msg("requestProcessor shutting down")
			return
		}
	}
}

func (j *JobRunner) runJob(rq runRequest) {
	defer j.wg.Done()
	defer j.release(rq.jobId, rq.runId)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("uuid", rq.jobId.String()).Msgf("Job worker panicked: %v", r)
			j.writeFailure(rq, "internal error while running the job")
		}
	}()

	if err := j.store.MarkProcessing(rq.jobId, rq.runId); err != nil {
		switch err {
		case models.ErrSuperseded, models.ErrNotFound, models.ErrTerminal:
			log.Info().Str("uuid", rq.jobId.String()).Str("run_id", rq.runId).Msgf("Not starting run: %s", err)
		default:
			log.Error().Str("uuid", rq.jobId.String()).Msgf("Could not mark job as processing: %s", err)
			j.writeFailure(rq, "could not start the job")
		}
		return
	}

	final := j.engine.Run(rq.ctx, workflow.NewState(rq.jobId, rq.runId, rq.query))

	if final.Failed() {
		j.writeFailure(rq, final.ErrorMessage)
		return
	}

	switch err := j.store.MarkCompleted(rq.jobId, rq.runId, final.Url); err {
	case nil:
		log.Info().Str("uuid", rq.jobId.String()).Str("run_id", rq.runId).Msgf("Job completed, video at %s", final.Url)
	case models.ErrSuperseded, models.ErrNotFound:
		log.Info().Str("uuid", rq.jobId.String()).Str("run_id", rq.runId).Msgf("Job finished but its record has moved on: %s", err)
	default:
		log.Error().Str("uuid", rq.jobId.String()).Msgf("Could not record job completion: %s", err)
	}
}

func (j *JobRunner) writeFailure(rq runRequest, message string) {
	summary := SummarizeError(message, j.errorMaxLen)
	switch err := j.store.MarkFailed(rq.jobId, rq.runId, summary); err {
	case nil:
		log.Warn().Str("uuid", rq.jobId.String()).Str("run_id", rq.runId).Msgf("Job failed: %s", summary)
	case models.ErrSuperseded, models.ErrNotFound, models.ErrTerminal:
		log.Info().Str("uuid", rq.jobId.String()).Str("run_id", rq.runId).Msgf("Not recording failure: %s", err)
	default:
		log.Error().Str("uuid", rq.jobId.String()).Msgf("Could not record job failure: %s", err)
	}
}

/**
SummarizeError reduces an error message to something fit for a client: the first non-empty line,
cut down to maxLen characters
*/
func SummarizeError(message string, maxLen int) string {
	summary := ""
	for _, line := range strings.Split(message, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			summary = trimmed
			break
		}
	}
	if summary == "" {
		summary = "job failed"
	}
	if maxLen > 3 && utf8.RuneCountInString(summary) > maxLen {
		runes := []rune(summary)
		summary = string(runes[:maxLen-3]) + "..."
	}
	return summary
}

/**
Shutdown stops taking work, cancels every run in progress and waits for the workers to write their
outcome, or for ctx to expire. Requests still queued are failed.
*/
func (j *JobRunner) Shutdown(ctx context.Context) error {
	j.shutdownOnce.Do(func() {
		close(j.shutdownChan)
		j.baseCancel()
	})
	<-j.processorDone

	//after this no Submit can reach the queue, so the drain below sees everything
	j.mutex.Lock()
	j.closed = true
	j.mutex.Unlock()

drain:
	for {
		select {
		case rq := <-j.queue:
			j.writeFailure(rq, shutdownMessage)
			j.release(rq.jobId, rq.runId)
		default:
			break drain
		}
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All job workers finished")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job workers still running at shutdown: %w", ctx.Err())
	}
}
