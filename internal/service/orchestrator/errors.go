package orchestrator

import (
	"errors"
	"fmt"

	"ai-voice-agent-orchestrator/internal/service/lifecycle"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
	"ai-voice-agent-orchestrator/internal/service/specialist"
)

// FailureReply is what the caller hears when a turn fails.
const FailureReply = "I'm sorry, I'm having a little trouble right now. Could you say that again?"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Kind classifies a failed operation.
type Kind string

const (
	KindCompletion  Kind = "completion"
	KindScheduling  Kind = "scheduling"
	KindPersistence Kind = "persistence"
	KindValidation  Kind = "validation"
)

// TurnError reports a failed operation. The session state is unchanged.
type TurnError struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

func invalid(err error) *TurnError {
	return &TurnError{Kind: KindValidation, Err: err}
}

func persistence(err error) *TurnError {
	return &TurnError{Kind: KindPersistence, Err: err}
}

// external classifies an error from routing or a specialist. Anything not
// attributable to scheduling or to the request itself is treated as a
// completion failure.
func external(err error) *TurnError {
	switch {
	case errors.Is(err, scheduling.ErrUnavailable):
		return &TurnError{Kind: KindScheduling, Retryable: true, Err: err}
	case errors.Is(err, specialist.ErrWrongPhase),
		errors.Is(err, specialist.ErrUnknown),
		errors.Is(err, specialist.ErrNotOwned),
		errors.Is(err, lifecycle.ErrSessionEnded):
		return &TurnError{Kind: KindValidation, Err: err}
	default:
		// Completion errors, timeouts and cancellations are all retried.
		return &TurnError{Kind: KindCompletion, Retryable: true, Err: err}
	}
}

// KindOf returns the kind of a TurnError in err's chain, or "".
func KindOf(err error) Kind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
