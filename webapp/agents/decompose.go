package agents

import (
	"context"
	"fmt"

	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/phuslu/log"
)

/**
Retriever looks up reference documentation for a query. It is optional.
*/
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

/**
Decomposer picks the next unfinished plan step and rewrites it into focused prompts
*/
type Decomposer struct {
	client      inference.Client
	schemas     *inference.Schemas
	retriever   Retriever
	retry       RetryPolicy
	temperature float64
}

func NewDecomposer(client inference.Client, schemas *inference.Schemas, retriever Retriever, retry RetryPolicy, temperature float64) *Decomposer {
	return &Decomposer{client: client, schemas: schemas, retriever: retriever, retry: retry, temperature: temperature}
}

func (d *Decomposer) Apply(ctx context.Context, state workflow.State) workflow.State {
	step := state.CurrentStep()
	if step == nil {
		state.ErrorMessage = fmt.Sprintf("no plan step left to work on (%d of %d completed)", state.CompletedSteps, len(state.Steps))
		return state
	}
	state.CurrentStepDescription = step.Description
	state.EvalAttempts = 0

	var prompts workflow.DecomposedPrompts
	err := d.retry.Do(ctx, "decompose", state.Uuid.String(), func(ctx context.Context) error {
		prompts = workflow.DecomposedPrompts{}
		return inference.CompleteJSON(ctx, d.client, inference.Request{
			System:      decomposeSystemPrompt,
			Prompt:      step.Description,
			Temperature: d.temperature,
		}, d.schemas.Prompts, &prompts)
	})
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}
	state.Prompts = prompts

	if d.retriever != nil {
		query := prompts.DocumentationPrompt
		if query == "" {
			query = prompts.CodePrompt
		}
		docs, retrieveErr := d.retriever.Retrieve(ctx, query)
		if retrieveErr != nil {
			log.Warn().Str("uuid", state.Uuid.String()).Msgf("Could not retrieve docs, carrying on without them: %s", retrieveErr)
		} else {
			state.FormattedDocs = docs
		}
	}

	log.Debug().Str("uuid", state.Uuid.String()).Msgf("Working on step %d/%d: %s", state.CompletedSteps+1, len(state.Steps), step.Description)
	return state
}
