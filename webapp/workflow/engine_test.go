package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepRecorder struct {
	visited []StateName
}

func (r *stepRecorder) step(name StateName, body func(state State) State) Step {
	return StepFunc(func(ctx context.Context, state State) State {
		r.visited = append(r.visited, name)
		if body == nil {
			return state
		}
		return body(state)
	})
}

/**
builds a full set of steps that succeed, with a two-step plan and an evaluator that follows `decisions` in order
*/
func happySteps(rec *stepRecorder, decisions []EvaluatorDecision) map[StateName]Step {
	evalCount := 0
	return map[StateName]Step{
		STATE_REASONING: rec.step(STATE_REASONING, func(s State) State {
			s.SetPlan([]PlanStep{{1, "draw a circle"}, {2, "move it"}}, DefaultMaxSteps)
			return s
		}),
		STATE_DECOMPOSE: rec.step(STATE_DECOMPOSE, func(s State) State {
			s.CurrentStepDescription = s.CurrentStep().Description
			return s
		}),
		STATE_GENERATE: rec.step(STATE_GENERATE, func(s State) State {
			s.CodeGenerated = "code for " + s.CurrentStepDescription
			return s
		}),
		STATE_EVALUATE: rec.step(STATE_EVALUATE, func(s State) State {
			d := decisions[evalCount]
			evalCount += 1
			s.EvaluatorNext = d
			if d == EVAL_NEXT_STEP {
				s.CompletedSteps += 1
			} else if d == EVAL_CONTINUE {
				s.CompletedSteps = len(s.Steps)
			}
			return s
		}),
		STATE_RENDER: rec.step(STATE_RENDER, func(s State) State {
			s.Url = "https://cdn/video.mp4"
			return s
		}),
		STATE_PERSIST: rec.step(STATE_PERSIST, nil),
	}
}

func TestEngineRoutesEvaluatorDecisions(t *testing.T) {
	rec := &stepRecorder{}
	engine, err := NewEngine(happySteps(rec, []EvaluatorDecision{EVAL_RETRY, EVAL_NEXT_STEP, EVAL_CONTINUE}), 0)
	require.NoError(t, err)

	final := engine.Run(context.Background(), NewState(uuid.New(), "run-1", "a circle that moves"))

	assert.Equal(t, "", final.ErrorMessage)
	assert.Equal(t, []StateName{
		STATE_REASONING, STATE_DECOMPOSE, STATE_GENERATE, STATE_EVALUATE,
		STATE_GENERATE, STATE_EVALUATE,
		STATE_DECOMPOSE, STATE_GENERATE, STATE_EVALUATE,
		STATE_RENDER, STATE_PERSIST,
	}, rec.visited)
	assert.Equal(t, 2, final.CompletedSteps)
	assert.Equal(t, "https://cdn/video.mp4", final.Url)
	assert.Equal(t, "code for move it", final.CodeGenerated)
	assert.Equal(t, len(rec.visited), final.Transitions)
}

/**
once a step sets an error message nothing else should run
*/
func TestEngineStickyError(t *testing.T) {
	rec := &stepRecorder{}
	steps := happySteps(rec, []EvaluatorDecision{EVAL_CONTINUE})
	steps[STATE_GENERATE] = rec.step(STATE_GENERATE, func(s State) State {
		s.ErrorMessage = "inference unavailable"
		return s
	})

	engine, err := NewEngine(steps, 0)
	require.NoError(t, err)

	final := engine.Run(context.Background(), NewState(uuid.New(), "run-1", "q"))
	assert.Equal(t, "inference unavailable", final.ErrorMessage)
	assert.Equal(t, []StateName{STATE_REASONING, STATE_DECOMPOSE, STATE_GENERATE}, rec.visited)
}

func TestEngineErrorOnEntry(t *testing.T) {
	rec := &stepRecorder{}
	engine, _ := NewEngine(happySteps(rec, nil), 0)

	initial := NewState(uuid.New(), "run-1", "q")
	initial.ErrorMessage = "already broken"
	final := engine.Run(context.Background(), initial)

	assert.Equal(t, "already broken", final.ErrorMessage)
	assert.Empty(t, rec.visited)
}

func TestEngineTransitionBudget(t *testing.T) {
	rec := &stepRecorder{}
	steps := happySteps(rec, nil)
	steps[STATE_EVALUATE] = rec.step(STATE_EVALUATE, func(s State) State {
		s.EvaluatorNext = EVAL_RETRY
		return s
	})

	engine, _ := NewEngine(steps, 10)
	final := engine.Run(context.Background(), NewState(uuid.New(), "run-1", "q"))

	assert.True(t, strings.Contains(final.ErrorMessage, "exceeded 10 transitions"), final.ErrorMessage)
	assert.Equal(t, 10, len(rec.visited))
}

func TestEngineRecoversPanic(t *testing.T) {
	rec := &stepRecorder{}
	steps := happySteps(rec, []EvaluatorDecision{EVAL_CONTINUE})
	steps[STATE_RENDER] = StepFunc(func(ctx context.Context, s State) State {
		panic("render exploded")
	})

	engine, _ := NewEngine(steps, 0)
	final := engine.Run(context.Background(), NewState(uuid.New(), "run-1", "q"))

	assert.Equal(t, "internal error in render step", final.ErrorMessage)
	assert.NotContains(t, rec.visited, STATE_PERSIST)
}

func TestEngineUnknownDecision(t *testing.T) {
	rec := &stepRecorder{}
	engine, _ := NewEngine(happySteps(rec, []EvaluatorDecision{"maybe"}), 0)
	final := engine.Run(context.Background(), NewState(uuid.New(), "run-1", "q"))

	assert.Equal(t, "evaluator gave unknown decision 'maybe'", final.ErrorMessage)
	assert.NotContains(t, rec.visited, STATE_RENDER)
}

func TestEngineCancelled(t *testing.T) {
	rec := &stepRecorder{}
	engine, _ := NewEngine(happySteps(rec, nil), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	final := engine.Run(ctx, NewState(uuid.New(), "run-1", "q"))

	assert.True(t, strings.HasPrefix(final.ErrorMessage, "run cancelled"), final.ErrorMessage)
	assert.Empty(t, rec.visited)
}

func TestEngineObserver(t *testing.T) {
	rec := &stepRecorder{}
	engine, _ := NewEngine(happySteps(rec, []EvaluatorDecision{EVAL_NEXT_STEP, EVAL_CONTINUE}), 0)

	var outcomes []string
	engine.OnTransition(func(from StateName, to StateName, outcome Outcome, state *State) {
		outcomes = append(outcomes, string(from)+">"+string(to))
	})
	engine.Run(context.Background(), NewState(uuid.New(), "run-1", "q"))

	assert.Contains(t, outcomes, "evaluate>decompose")
	assert.Equal(t, "persist>END", outcomes[len(outcomes)-1])
}

func TestNewEngineRequiresAllSteps(t *testing.T) {
	steps := happySteps(&stepRecorder{}, nil)
	delete(steps, STATE_PERSIST)

	_, err := NewEngine(steps, 0)
	assert.Error(t, err)
}

func TestNextStateTable(t *testing.T) {
	next, ok := NextState(STATE_EVALUATE, JumpTo(STATE_DECOMPOSE))
	assert.True(t, ok)
	assert.Equal(t, STATE_DECOMPOSE, next)

	_, ok = NextState(STATE_EVALUATE, JumpTo(STATE_RENDER))
	assert.False(t, ok, "jumps are only defined back to decompose")

	_, ok = NextState(STATE_GENERATE, Retry())
	assert.False(t, ok, "only evaluate has a retry edge")
}

func TestSetPlanCapsSteps(t *testing.T) {
	var plan []PlanStep
	for i := 1; i <= 20; i++ {
		plan = append(plan, PlanStep{StepId: i, Description: "step"})
	}

	s := NewState(uuid.New(), "run-1", "q")
	s.SetPlan(plan, DefaultMaxSteps)

	assert.Len(t, s.Steps, 15)
	assert.Equal(t, 1, s.Steps[0].StepId)
	assert.Equal(t, 15, s.Steps[14].StepId)
}
