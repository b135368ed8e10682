package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/models"
	"github.com/phuslu/log"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 45 * time.Minute
)

const vanishedMessage = "job not found"

/**
RecordSource is the part of the job store that status delivery reads from
*/
type RecordSource interface {
	Get(jobId uuid.UUID) (*models.JobRecord, error)
}

/**
WaitResult is the outcome of a bounded wait. TimedOut is set when the deadline passed with the job still
running; Record then holds the last snapshot seen.
*/
type WaitResult struct {
	Record   *models.JobRecord
	TimedOut bool
}

/**
Waiter serves job status, either as an immediate snapshot or by waiting for the job to finish
*/
type Waiter struct {
	source   RecordSource
	interval time.Duration
	timeout  time.Duration
}

func NewWaiter(source RecordSource, interval time.Duration, timeout time.Duration) *Waiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Waiter{source: source, interval: interval, timeout: timeout}
}

/**
VanishedResult is what a wait reports for a job whose record went away after the caller first saw it
*/
func VanishedResult(jobId uuid.UUID) *WaitResult {
	return &WaitResult{Record: &models.JobRecord{
		Uuid:   jobId,
		Status: models.JOB_FAILED,
		Error:  vanishedMessage,
	}}
}

/**
the current record, or models.ErrNotFound
*/
func (w *Waiter) Snapshot(jobId uuid.UUID) (*models.JobRecord, error) {
	return w.source.Get(jobId)
}

/**
WaitForTerminal polls until the job is terminal, the wait times out or ctx is cancelled.
A job unknown at the start gives models.ErrNotFound. A job that disappears part way through is reported
as a failed record with the error "job not found".
*/
func (w *Waiter) WaitForTerminal(ctx context.Context, jobId uuid.UUID) (*WaitResult, error) {
	record, err := w.source.Get(jobId)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return &WaitResult{Record: record}, nil
	}

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("uuid", jobId.String()).Msgf("Wait abandoned: %s", ctx.Err())
			return nil, ctx.Err()
		case <-deadline.C:
			log.Info().Str("uuid", jobId.String()).Msgf("Wait timed out after %s with job %s", w.timeout, record.Status)
			return &WaitResult{Record: record, TimedOut: true}, nil
		case <-ticker.C:
			latest, getErr := w.source.Get(jobId)
			switch getErr {
			case nil:
				record = latest
				if record.Status.IsTerminal() {
					return &WaitResult{Record: record}, nil
				}
			case models.ErrNotFound:
				log.Warn().Str("uuid", jobId.String()).Msg("Job record vanished while waiting")
				return VanishedResult(jobId), nil
			default:
				log.Warn().Str("uuid", jobId.String()).Msgf("Could not read job while waiting, will try again: %s", getErr)
			}
		}
	}
}
