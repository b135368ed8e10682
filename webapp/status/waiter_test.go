package status

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *models.JobStore {
	s, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	t.Cleanup(s.Close)
	return models.NewJobStore(redis.NewClient(&redis.Options{Addr: s.Addr()}), time.Hour)
}

func TestWaitUnknownJob(t *testing.T) {
	waiter := NewWaiter(newTestStore(t), 10*time.Millisecond, time.Second)
	_, err := waiter.WaitForTerminal(context.Background(), uuid.New())
	assert.Equal(t, models.ErrNotFound, err)
}

func TestWaitAlreadyTerminal(t *testing.T) {
	store := newTestStore(t)
	jobId := uuid.New()
	_, err := store.Create(jobId, "q", "run")
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(jobId, "run", "could not start"))

	result, err := NewWaiter(store, time.Hour, time.Hour).WaitForTerminal(context.Background(), jobId)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, models.JOB_FAILED, result.Record.Status)
}

func TestWaitSeesCompletion(t *testing.T) {
	store := newTestStore(t)
	jobId := uuid.New()
	_, err := store.Create(jobId, "q", "run")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		store.MarkProcessing(jobId, "run")
		store.MarkCompleted(jobId, "run", "https://cdn/v.mp4")
	}()

	result, err := NewWaiter(store, 10*time.Millisecond, 2*time.Second).WaitForTerminal(context.Background(), jobId)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, models.JOB_COMPLETED, result.Record.Status)
	assert.Equal(t, "https://cdn/v.mp4", result.Record.Url)
}

/**
a wait that runs out reports the live status with TimedOut set, which is not a failed job
*/
func TestWaitTimesOut(t *testing.T) {
	store := newTestStore(t)
	jobId := uuid.New()
	_, err := store.Create(jobId, "q", "run")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(jobId, "run"))

	result, err := NewWaiter(store, 10*time.Millisecond, 60*time.Millisecond).WaitForTerminal(context.Background(), jobId)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, models.JOB_PROCESSING, result.Record.Status)
}

func TestWaitJobVanishes(t *testing.T) {
	store := newTestStore(t)
	jobId := uuid.New()
	_, err := store.Create(jobId, "q", "run")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		store.Delete(jobId)
	}()

	result, err := NewWaiter(store, 10*time.Millisecond, 2*time.Second).WaitForTerminal(context.Background(), jobId)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, models.JOB_FAILED, result.Record.Status)
	assert.Equal(t, "job not found", result.Record.Error)
}

func TestWaitAbandoned(t *testing.T) {
	store := newTestStore(t)
	jobId := uuid.New()
	_, err := store.Create(jobId, "q", "run")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err = NewWaiter(store, 10*time.Millisecond, time.Hour).WaitForTerminal(ctx, jobId)
	assert.Equal(t, context.DeadlineExceeded, err)
}
