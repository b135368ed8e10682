package workflow

import "fmt"

type OutcomeKind int

const (
	OUTCOME_ADVANCE OutcomeKind = iota
	OUTCOME_RETRY
	OUTCOME_JUMP
	OUTCOME_FAIL
)

func (k OutcomeKind) String() string {
	switch k {
	case OUTCOME_ADVANCE:
		return "advance"
	case OUTCOME_RETRY:
		return "retry"
	case OUTCOME_JUMP:
		return "jump"
	case OUTCOME_FAIL:
		return "fail"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

/**
Outcome is what a router makes of a step's result. Target is only meaningful for OUTCOME_JUMP,
Message only for OUTCOME_FAIL.
*/
type Outcome struct {
	Kind    OutcomeKind
	Target  StateName
	Message string
}

func Advance() Outcome {
	return Outcome{Kind: OUTCOME_ADVANCE}
}

func Retry() Outcome {
	return Outcome{Kind: OUTCOME_RETRY}
}

func JumpTo(target StateName) Outcome {
	return Outcome{Kind: OUTCOME_JUMP, Target: target}
}

func Fail(message string) Outcome {
	return Outcome{Kind: OUTCOME_FAIL, Message: message}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OUTCOME_JUMP:
		return fmt.Sprintf("jump(%s)", o.Target)
	case OUTCOME_FAIL:
		return fmt.Sprintf("fail(%s)", o.Message)
	default:
		return o.Kind.String()
	}
}
