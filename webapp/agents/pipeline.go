package agents

import (
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/persistence"
	"github.com/guardian/enginimate/webapp/renderclient"
	"github.com/guardian/enginimate/webapp/sandbox"
	"github.com/guardian/enginimate/webapp/workflow"
)

/**
the external services the pipeline steps talk to. Retriever may be nil.
*/
type Collaborators struct {
	Inference inference.Client
	Schemas   *inference.Schemas
	Sandbox   sandbox.Checker
	Retriever Retriever
	Render    renderclient.Dispatcher
	Persister persistence.Persister
}

/**
NewPipeline builds one step per workflow state, ready for workflow.NewEngine
*/
func NewPipeline(config *helpers.Config, c Collaborators) map[workflow.StateName]workflow.Step {
	retry := NewRetryPolicy(config.Agents)
	temperature := config.Inference.Temperature

	return map[workflow.StateName]workflow.Step{
		workflow.STATE_REASONING: NewPlanner(c.Inference, c.Schemas, retry, config.Workflow.MaxSteps, temperature),
		workflow.STATE_DECOMPOSE: NewDecomposer(c.Inference, c.Schemas, c.Retriever, retry, temperature),
		workflow.STATE_GENERATE:  NewGenerator(c.Inference, retry, config.Render.SceneName, temperature, config.Inference.MaxTokens),
		workflow.STATE_EVALUATE:  NewEvaluator(c.Inference, c.Schemas, c.Sandbox, retry, config.Agents.EvaluationRounds, temperature),
		workflow.STATE_RENDER:    NewRenderer(c.Render, config.Render.SceneName),
		workflow.STATE_PERSIST:   NewSaver(c.Persister, retry),
	}
}
