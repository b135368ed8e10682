package agents

import (
	"context"

	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/phuslu/log"
)

type planReply struct {
	Steps []workflow.PlanStep `json:"steps"`
}

/**
Planner turns the scene description into an ordered list of steps
*/
type Planner struct {
	client      inference.Client
	schemas     *inference.Schemas
	retry       RetryPolicy
	maxSteps    int
	temperature float64
}

func NewPlanner(client inference.Client, schemas *inference.Schemas, retry RetryPolicy, maxSteps int, temperature float64) *Planner {
	return &Planner{client: client, schemas: schemas, retry: retry, maxSteps: maxSteps, temperature: temperature}
}

func (p *Planner) Apply(ctx context.Context, state workflow.State) workflow.State {
	var reply planReply
	err := p.retry.Do(ctx, "plan", state.Uuid.String(), func(ctx context.Context) error {
		reply = planReply{}
		return inference.CompleteJSON(ctx, p.client, inference.Request{
			System:      planSystemPrompt,
			Prompt:      state.Query,
			Temperature: p.temperature,
		}, p.schemas.Plan, &reply)
	})
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}

	if len(reply.Steps) == 0 {
		state.ErrorMessage = "planner returned an empty plan"
		return state
	}
	if p.maxSteps > 0 && len(reply.Steps) > p.maxSteps {
		log.Info().Str("uuid", state.Uuid.String()).Msgf("Plan has %d steps, keeping the first %d", len(reply.Steps), p.maxSteps)
	}
	state.SetPlan(reply.Steps, p.maxSteps)
	log.Info().Str("uuid", state.Uuid.String()).Msgf("Planned %d steps", len(state.Steps))
	return state
}
