package agents

import "fmt"

/**
StepError means a step's collaborator kept failing after every retry. It ends the run.
*/
type StepError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed after %d attempts: %s", e.Step, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

/**
CodeDefect is a problem with the generated code itself. It sends the run back to generation.
*/
type CodeDefect struct {
	Message string
}

func (e *CodeDefect) Error() string {
	return e.Message
}
