package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/guardian/enginimate/webapp/inference"
	"github.com/guardian/enginimate/webapp/sandbox"
	"github.com/guardian/enginimate/webapp/workflow"
	"github.com/phuslu/log"
)

const defectFeedbackPrefix = "Rectify the error raised when running the code: "

type evaluationReply struct {
	Evaluation string `json:"evaluation"`
	Feedback   string `json:"feedback"`
}

/**
Evaluator checks generated code in two phases: a sandbox run, and if that is clean a semantic review.
It decides whether to retry generation, move to the next plan step, or go on to rendering.
*/
type Evaluator struct {
	client      inference.Client
	schemas     *inference.Schemas
	checker     sandbox.Checker
	retry       RetryPolicy
	maxRounds   int
	temperature float64
}

func NewEvaluator(client inference.Client, schemas *inference.Schemas, checker sandbox.Checker, retry RetryPolicy, maxRounds int, temperature float64) *Evaluator {
	return &Evaluator{client: client, schemas: schemas, checker: checker, retry: retry, maxRounds: maxRounds, temperature: temperature}
}

func firstLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		return trimmed[:idx]
	}
	return trimmed
}

func (e *Evaluator) Apply(ctx context.Context, state workflow.State) workflow.State {
	state.EvaluatorNext = ""

	code, extractErr := ExtractCode(state.CodeGenerated)
	if extractErr != nil {
		var defect *CodeDefect
		if errors.As(extractErr, &defect) {
			log.Info().Str("uuid", state.Uuid.String()).Msgf("Generated reply is unusable: %s", defect.Message)
			state.Feedback = defect.Message
			state.EvaluatorNext = workflow.EVAL_RETRY
			return state
		}
		state.ErrorMessage = extractErr.Error()
		return state
	}
	state.CodeGenerated = code

	var result sandbox.Result
	err := e.retry.Do(ctx, "sandbox", state.Uuid.String(), func(ctx context.Context) error {
		var checkErr error
		result, checkErr = e.checker.Check(ctx, state.Uuid.String(), code)
		return checkErr
	})
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}

	if !result.Clean() {
		log.Info().Str("uuid", state.Uuid.String()).Msgf("Code failed in the sandbox: %s", firstLine(result.Defect))
		state.ExecutionError = result.Defect
		state.Feedback = defectFeedbackPrefix + firstLine(result.Defect)
		state.EvaluatorNext = workflow.EVAL_RETRY
		return state
	}
	state.ExecutionError = ""

	var reply evaluationReply
	err = e.retry.Do(ctx, "evaluate", state.Uuid.String(), func(ctx context.Context) error {
		reply = evaluationReply{}
		return inference.CompleteJSON(ctx, e.client, inference.Request{
			System: evaluateSystemPrompt,
			Prompt: promptSections(
				"Scene description", state.Query,
				"Current phase", state.CurrentStepDescription,
				"Code generated so far", code,
			),
			Temperature: e.temperature,
		}, e.schemas.Evaluation, &reply)
	})
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}

	if reply.Evaluation == string(workflow.EVAL_RETRY) {
		if e.maxRounds <= 0 || state.EvalAttempts < e.maxRounds {
			state.EvalAttempts += 1
			state.Feedback = reply.Feedback
			state.EvaluatorNext = workflow.EVAL_RETRY
			log.Info().Str("uuid", state.Uuid.String()).Msgf("Review asked for changes (round %d): %s", state.EvalAttempts, reply.Feedback)
			return state
		}
		log.Info().Str("uuid", state.Uuid.String()).Msgf("Review still unhappy after %d rounds, accepting the code", state.EvalAttempts)
	}

	state.Feedback = ""
	if state.CompletedSteps+1 >= len(state.Steps) {
		state.CompletedSteps = len(state.Steps)
		state.EvaluatorNext = workflow.EVAL_CONTINUE
	} else {
		state.CompletedSteps += 1
		state.EvaluatorNext = workflow.EVAL_NEXT_STEP
	}
	log.Info().Str("uuid", state.Uuid.String()).Msgf("Step accepted, %d of %d complete", state.CompletedSteps, len(state.Steps))
	return state
}
