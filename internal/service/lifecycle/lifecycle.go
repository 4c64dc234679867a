// Package lifecycle provides turn ID generation and the session phase
// state machine.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
)

// Phase represents the lifecycle phase of a session.
type Phase int

const (
	// PhaseNew - Consent not yet collected.
	PhaseNew Phase = iota
	// PhaseActive - Consent collected, conversation in progress.
	PhaseActive
	// PhaseEnded - Terminal. Only the compliance logger may still write.
	PhaseEnded
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "NEW"
	case PhaseActive:
		return "ACTIVE"
	case PhaseEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// IsTerminal returns true for PhaseEnded.
func (p Phase) IsTerminal() bool {
	return p == PhaseEnded
}

// Errors for invalid transitions.
var (
	ErrSessionEnded = errors.New("session has ended")
	ErrNotStarted   = errors.New("session has not started")
)

// PhaseOf derives the phase from the session flags.
//
// Transitions:
//
//	NEW → ACTIVE → ENDED
//	 │               ▲
//	 └───── End() ───┘
//
// A caller may hang up before consent, so NEW may go straight to ENDED.
func PhaseOf(s *models.SessionState) Phase {
	switch {
	case s.Ended:
		return PhaseEnded
	case s.Started:
		return PhaseActive
	default:
		return PhaseNew
	}
}

// Start moves a NEW session to ACTIVE.
func Start(s *models.SessionState) error {
	switch PhaseOf(s) {
	case PhaseNew:
		s.Started = true
		return nil
	case PhaseActive:
		return nil
	default:
		return ErrSessionEnded
	}
}

// End marks the session ended and stamps the call metadata. Idempotent.
// Returns false if the session was already ended.
func End(s *models.SessionState, now time.Time) bool {
	if s.Ended {
		return false
	}
	s.Ended = true
	end := now
	s.Metadata.EndTime = &end
	if !s.Metadata.StartTime.IsZero() {
		s.Metadata.DurationSeconds = int(now.Sub(s.Metadata.StartTime).Seconds())
	}
	return true
}

// CheckMutation returns ErrSessionEnded if sp may no longer write owned fields.
func CheckMutation(s *models.SessionState, sp models.Specialist) error {
	if s.Ended && sp != models.SpecialistComplianceLogger {
		return ErrSessionEnded
	}
	return nil
}

// RequireActive returns an error unless the session is ACTIVE.
func RequireActive(s *models.SessionState) error {
	switch PhaseOf(s) {
	case PhaseNew:
		return ErrNotStarted
	case PhaseEnded:
		return ErrSessionEnded
	}
	return nil
}
