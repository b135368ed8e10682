package workflow

import "github.com/google/uuid"

const DefaultMaxSteps = 15

type EvaluatorDecision string

const (
	EVAL_RETRY     EvaluatorDecision = "retry"
	EVAL_NEXT_STEP EvaluatorDecision = "next_step"
	EVAL_CONTINUE  EvaluatorDecision = "continue"
)

type PlanStep struct {
	StepId      int    `json:"step_id"`
	Description string `json:"description"`
}

type DecomposedPrompts struct {
	CodePrompt          string `json:"code_prompt"`
	DocumentationPrompt string `json:"documentation_prompt"`
	SummaryPrompt       string `json:"summary_prompt"`
}

/**
State is everything one run of the pipeline knows. Each step receives a copy and returns the
updated version.
*/
type State struct {
	Uuid  uuid.UUID
	RunId string
	Query string

	Steps                  []PlanStep
	CompletedSteps         int
	CurrentStepDescription string
	Prompts                DecomposedPrompts
	FormattedDocs          string

	CodeGenerated  string
	ExecutionError string
	Feedback       string
	EvaluatorNext  EvaluatorDecision
	EvalAttempts   int

	RenderId string
	Url      string
	PublicId string

	ErrorMessage string
	Transitions  int
}

func NewState(jobId uuid.UUID, runId string, query string) State {
	return State{
		Uuid:  jobId,
		RunId: runId,
		Query: query,
	}
}

func (s *State) Failed() bool {
	return s.ErrorMessage != ""
}

/**
CurrentStep returns the plan step being worked on, or nil once all have been completed
*/
func (s *State) CurrentStep() *PlanStep {
	if s.CompletedSteps < 0 || s.CompletedSteps >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.CompletedSteps]
}

/**
SetPlan replaces the plan, keeping at most maxSteps entries in their original order
*/
func (s *State) SetPlan(steps []PlanStep, maxSteps int) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	s.Steps = append([]PlanStep{}, steps...)
	s.CompletedSteps = 0
}
