package workflow

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/jinzhu/copier"
	"github.com/phuslu/log"
)

type StateName string

const (
	STATE_REASONING StateName = "reasoning"
	STATE_DECOMPOSE StateName = "decompose"
	STATE_GENERATE  StateName = "generate"
	STATE_EVALUATE  StateName = "evaluate"
	STATE_RENDER    StateName = "render"
	STATE_PERSIST   StateName = "persist"
	STATE_END       StateName = "END"
)

const DefaultMaxTransitions = 150

/**
Step is one node of the pipeline. It must report failure through State.ErrorMessage rather than panicking.
*/
type Step interface {
	Apply(ctx context.Context, state State) State
}

type StepFunc func(ctx context.Context, state State) State

func (f StepFunc) Apply(ctx context.Context, state State) State {
	return f(ctx, state)
}

/**
Router turns the state a step returned into an Outcome
*/
type Router func(state State) Outcome

type transitionKey struct {
	from   StateName
	kind   OutcomeKind
	target StateName
}

var transitionTable = map[transitionKey]StateName{
	{STATE_REASONING, OUTCOME_ADVANCE, ""}:          STATE_DECOMPOSE,
	{STATE_DECOMPOSE, OUTCOME_ADVANCE, ""}:          STATE_GENERATE,
	{STATE_GENERATE, OUTCOME_ADVANCE, ""}:           STATE_EVALUATE,
	{STATE_EVALUATE, OUTCOME_ADVANCE, ""}:           STATE_RENDER,
	{STATE_EVALUATE, OUTCOME_RETRY, ""}:             STATE_GENERATE,
	{STATE_EVALUATE, OUTCOME_JUMP, STATE_DECOMPOSE}: STATE_DECOMPOSE,
	{STATE_RENDER, OUTCOME_ADVANCE, ""}:             STATE_PERSIST,
	{STATE_PERSIST, OUTCOME_ADVANCE, ""}:            STATE_END,

	{STATE_REASONING, OUTCOME_FAIL, ""}: STATE_END,
	{STATE_DECOMPOSE, OUTCOME_FAIL, ""}: STATE_END,
	{STATE_GENERATE, OUTCOME_FAIL, ""}:  STATE_END,
	{STATE_EVALUATE, OUTCOME_FAIL, ""}:  STATE_END,
	{STATE_RENDER, OUTCOME_FAIL, ""}:    STATE_END,
	{STATE_PERSIST, OUTCOME_FAIL, ""}:   STATE_END,
}

/**
NextState looks up where the machine goes from `from` given outcome. ok is false when the pair has no entry,
which is a wiring defect rather than a job failure.
*/
func NextState(from StateName, outcome Outcome) (StateName, bool) {
	key := transitionKey{from: from, kind: outcome.Kind}
	if outcome.Kind == OUTCOME_JUMP {
		key.target = outcome.Target
	}
	next, ok := transitionTable[key]
	return next, ok
}

/**
RouteOnError is the router for every state apart from evaluate
*/
func RouteOnError(state State) Outcome {
	if state.Failed() {
		return Fail(state.ErrorMessage)
	}
	return Advance()
}

func RouteEvaluator(state State) Outcome {
	if state.Failed() {
		return Fail(state.ErrorMessage)
	}
	switch state.EvaluatorNext {
	case EVAL_RETRY:
		return Retry()
	case EVAL_NEXT_STEP:
		return JumpTo(STATE_DECOMPOSE)
	case EVAL_CONTINUE:
		return Advance()
	default:
		return Fail(fmt.Sprintf("evaluator gave unknown decision '%s'", state.EvaluatorNext))
	}
}

type TransitionObserver func(from StateName, to StateName, outcome Outcome, state *State)

type Engine struct {
	steps          map[StateName]Step
	routers        map[StateName]Router
	maxTransitions int
	observer       TransitionObserver
}

var pipelineStates = []StateName{STATE_REASONING, STATE_DECOMPOSE, STATE_GENERATE, STATE_EVALUATE, STATE_RENDER, STATE_PERSIST}

func NewEngine(steps map[StateName]Step, maxTransitions int) (*Engine, error) {
	for _, name := range pipelineStates {
		if steps[name] == nil {
			return nil, fmt.Errorf("no step registered for state %s", name)
		}
	}
	if maxTransitions <= 0 {
		maxTransitions = DefaultMaxTransitions
	}

	routers := make(map[StateName]Router, len(pipelineStates))
	for _, name := range pipelineStates {
		routers[name] = RouteOnError
	}
	routers[STATE_EVALUATE] = RouteEvaluator

	return &Engine{
		steps:          steps,
		routers:        routers,
		maxTransitions: maxTransitions,
	}, nil
}

/**
sets a callback that is invoked after every transition, before the next step runs
*/
func (e *Engine) OnTransition(observer TransitionObserver) {
	e.observer = observer
}

/**
runs a single step on a deep copy of the state, turning a panic into an error message
*/
func (e *Engine) applyStep(ctx context.Context, name StateName, state State) (result State) {
	var input State
	if copyErr := copier.CopyWithOption(&input, &state, copier.Option{DeepCopy: true}); copyErr != nil {
		log.Warn().Str("uuid", state.Uuid.String()).Msgf("Could not copy state for %s, passing original: %s", name, copyErr)
		input = state
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("uuid", state.Uuid.String()).Str("state", string(name)).Msgf("Step panicked: %v", r)
			log.Debug().Msgf("State at panic: %s", spew.Sdump(state))
			result = state
			result.ErrorMessage = fmt.Sprintf("internal error in %s step", name)
		}
	}()

	return e.steps[name].Apply(ctx, input)
}

/**
Run drives the state machine from reasoning until END and returns the final state. A run that fails, is
cancelled or exceeds the transition budget comes back with ErrorMessage set.
*/
func (e *Engine) Run(ctx context.Context, initial State) State {
	current := STATE_REASONING
	state := initial
	log.Info().Str("uuid", state.Uuid.String()).Str("run_id", state.RunId).Msgf("Workflow starting")

	for current != STATE_END {
		if state.Failed() {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			state.ErrorMessage = fmt.Sprintf("run cancelled: %s", ctxErr)
			break
		}
		if state.Transitions >= e.maxTransitions {
			state.ErrorMessage = fmt.Sprintf("workflow exceeded %d transitions without finishing", e.maxTransitions)
			break
		}

		state = e.applyStep(ctx, current, state)
		state.Transitions += 1

		outcome := e.routers[current](state)
		next, ok := NextState(current, outcome)
		if !ok {
			log.Error().Str("uuid", state.Uuid.String()).Msgf("No transition from %s on %s", current, outcome)
			state.ErrorMessage = fmt.Sprintf("no transition from %s on %s", current, outcome)
			break
		}
		if outcome.Kind == OUTCOME_FAIL && state.ErrorMessage == "" {
			state.ErrorMessage = outcome.Message
		}

		log.Debug().Str("uuid", state.Uuid.String()).Msgf("%s -> %s (%s)", current, next, outcome)
		if e.observer != nil {
			e.observer(current, next, outcome, &state)
		}
		current = next
	}

	if state.Failed() {
		log.Warn().Str("uuid", state.Uuid.String()).Str("run_id", state.RunId).Msgf("Workflow ended in error after %d transitions: %s", state.Transitions, state.ErrorMessage)
	} else {
		log.Info().Str("uuid", state.Uuid.String()).Str("run_id", state.RunId).Msgf("Workflow finished after %d transitions", state.Transitions)
	}
	return state
}
