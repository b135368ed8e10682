package agents

import (
	"context"
	"time"

	"github.com/guardian/enginimate/webapp/persistence"
	"github.com/guardian/enginimate/webapp/workflow"
)

/**
Saver records the finished result through a Persister
*/
type Saver struct {
	persister persistence.Persister
	retry     RetryPolicy
}

func NewSaver(persister persistence.Persister, retry RetryPolicy) *Saver {
	return &Saver{persister: persister, retry: retry}
}

func (s *Saver) Apply(ctx context.Context, state workflow.State) workflow.State {
	record := persistence.Record{
		Uuid:      state.Uuid,
		Query:     state.Query,
		Code:      state.CodeGenerated,
		Url:       state.Url,
		PublicId:  state.PublicId,
		CreatedAt: time.Now(),
	}

	err := s.retry.Do(ctx, "persist", state.Uuid.String(), func(ctx context.Context) error {
		return s.persister.Save(ctx, record)
	})
	if err != nil {
		state.ErrorMessage = err.Error()
	}
	return state
}
