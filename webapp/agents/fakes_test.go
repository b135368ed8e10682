package agents

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/persistence"
	"github.com/guardian/enginimate/webapp/renderclient"
	"github.com/guardian/enginimate/webapp/sandbox"
)

var fastRetry = RetryPolicy{
	Attempts:          3,
	InitialBackoff:    time.Millisecond,
	MaxBackoff:        2 * time.Millisecond,
	BackoffMultiplier: 2,
}

/**
replies are keyed by system prompt and consumed in order; the last one repeats
*/
type scriptedInference struct {
	mu      sync.Mutex
	replies map[string][]string
	calls   map[string]int
	err     error
}

func newScriptedInference() *scriptedInference {
	return &scriptedInference{replies: map[string][]string{}, calls: map[string]int{}}
}

func (s *scriptedInference) script(system string, replies ...string) {
	s.replies[system] = replies
}

func (s *scriptedInference) callsFor(system string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[system]
}

func (s *scriptedInference) Complete(ctx context.Context, req inference.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.System] += 1
	if s.err != nil {
		return "", s.err
	}
	queue := s.replies[req.System]
	if len(queue) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.replies[req.System] = queue[1:]
	}
	return reply, nil
}

type scriptedChecker struct {
	results []sandbox.Result
	err     error
	codes   []string
}

func (c *scriptedChecker) Check(ctx context.Context, jobId string, code string) (sandbox.Result, error) {
	c.codes = append(c.codes, code)
	if c.err != nil {
		return sandbox.Result{}, c.err
	}
	if len(c.results) == 0 {
		return sandbox.Result{}, nil
	}
	r := c.results[0]
	if len(c.results) > 1 {
		c.results = c.results[1:]
	}
	return r, nil
}

type fakeDispatcher struct {
	result    *renderclient.Result
	err       error
	renderIds []uuid.UUID
	codes     []string
}

func (d *fakeDispatcher) Render(ctx context.Context, renderId uuid.UUID, code string, sceneName string) (*renderclient.Result, error) {
	d.renderIds = append(d.renderIds, renderId)
	d.codes = append(d.codes, code)
	return d.result, d.err
}

type memoryPersister struct {
	saved []persistence.Record
	err   error
}

func (p *memoryPersister) Save(ctx context.Context, record persistence.Record) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, record)
	return nil
}

func (p *memoryPersister) Close() error {
	return nil
}
