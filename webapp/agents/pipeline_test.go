package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/webapp/renderclient"
	"github.com/guardian/enginimate/webapp/sandbox"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *helpers.Config {
	config := helpers.DefaultConfig()
	config.Agents.InitialBackoff = fastRetry.InitialBackoff
	config.Agents.MaxBackoff = fastRetry.MaxBackoff
	return &config
}

/**
a two step plan where the first attempt at step one fails in the sandbox
*/
func TestPipelineEndToEnd(t *testing.T) {
	config := testConfig()
	client := newScriptedInference()
	client.script(planSystemPrompt, planJSON(2))
	client.script(decomposeSystemPrompt, `{"code_prompt": "do the thing"}`)
	client.script(generateSystemPrompt(config.Render.SceneName), "```python\nv1\n```", "```python\nv2\n```", "```python\nv3\n```")
	client.script(evaluateSystemPrompt, `{"evaluation": "continue"}`)

	checker := &scriptedChecker{results: []sandbox.Result{{Defect: "SyntaxError"}, {}}}
	dispatcher := &fakeDispatcher{result: &renderclient.Result{Url: "https://cdn/final.mp4", PublicId: "renders/final"}}
	persister := &memoryPersister{}

	steps := NewPipeline(config, Collaborators{
		Inference: client,
		Schemas:   schemas,
		Sandbox:   checker,
		Render:    dispatcher,
		Persister: persister,
	})
	engine, err := workflow.NewEngine(steps, config.Workflow.MaxTransitions)
	require.NoError(t, err)

	var visited []workflow.StateName
	engine.OnTransition(func(from workflow.StateName, to workflow.StateName, outcome workflow.Outcome, state *workflow.State) {
		visited = append(visited, to)
	})

	final := engine.Run(context.Background(), workflow.NewState(uuid.New(), "run-1", "a square becomes a circle"))
	require.False(t, final.Failed(), final.ErrorMessage)

	assert.Equal(t, []workflow.StateName{
		workflow.STATE_DECOMPOSE,
		workflow.STATE_GENERATE,
		workflow.STATE_EVALUATE,
		workflow.STATE_GENERATE,
		workflow.STATE_EVALUATE,
		workflow.STATE_DECOMPOSE,
		workflow.STATE_GENERATE,
		workflow.STATE_EVALUATE,
		workflow.STATE_RENDER,
		workflow.STATE_PERSIST,
		workflow.STATE_END,
	}, visited)

	assert.Equal(t, []string{"v1", "v2", "v3"}, checker.codes)
	assert.Equal(t, 2, final.CompletedSteps)
	assert.Equal(t, "https://cdn/final.mp4", final.Url)
	assert.Equal(t, []string{"v3"}, dispatcher.codes)
	require.Len(t, persister.saved, 1)
	assert.Equal(t, "v3", persister.saved[0].Code)
}

func TestPipelineStopsOnPlanFailure(t *testing.T) {
	config := testConfig()
	client := newScriptedInference()
	client.script(planSystemPrompt, `{"steps": []}`)
	dispatcher := &fakeDispatcher{}
	persister := &memoryPersister{}

	engine, err := workflow.NewEngine(NewPipeline(config, Collaborators{
		Inference: client,
		Schemas:   schemas,
		Sandbox:   &scriptedChecker{},
		Render:    dispatcher,
		Persister: persister,
	}), config.Workflow.MaxTransitions)
	require.NoError(t, err)

	final := engine.Run(context.Background(), workflow.NewState(uuid.New(), "run-1", "query"))
	assert.True(t, final.Failed())
	assert.Equal(t, 1, final.Transitions)
	assert.Empty(t, dispatcher.renderIds)
	assert.Empty(t, persister.saved)
}
