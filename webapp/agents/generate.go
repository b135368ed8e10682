package agents

import (
	"context"
	"strings"

	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/workflow"
)

/**
Generator writes the code for the current phase on top of what has been generated so far
*/
type Generator struct {
	client      inference.Client
	retry       RetryPolicy
	sceneName   string
	temperature float64
	maxTokens   int
}

func NewGenerator(client inference.Client, retry RetryPolicy, sceneName string, temperature float64, maxTokens int) *Generator {
	return &Generator{client: client, retry: retry, sceneName: sceneName, temperature: temperature, maxTokens: maxTokens}
}

func (g *Generator) Apply(ctx context.Context, state workflow.State) workflow.State {
	prompt := promptSections(
		"Scene description", state.Query,
		"Current phase", state.CurrentStepDescription,
		"What to implement", state.Prompts.CodePrompt,
		"Code generated so far", state.CodeGenerated,
		"Documentation", state.FormattedDocs,
		"Execution error", state.ExecutionError,
		"Feedback", state.Feedback,
	)

	var reply string
	err := g.retry.Do(ctx, "generate", state.Uuid.String(), func(ctx context.Context) error {
		var completeErr error
		reply, completeErr = g.client.Complete(ctx, inference.Request{
			System:      generateSystemPrompt(g.sceneName),
			Prompt:      prompt,
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		})
		if completeErr == nil && strings.TrimSpace(reply) == "" {
			return inference.ErrEmptyResponse
		}
		return completeErr
	})
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}

	state.CodeGenerated = reply
	return state
}
