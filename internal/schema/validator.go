// Package schema validates session state loaded from untrusted storage.
package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"ai-voice-agent-orchestrator/internal/models"
)

// ErrInvalidState is wrapped by every validation failure.
var ErrInvalidState = errors.New("invalid session state")

// ValidateSession checks the shape of s. All problems are reported together.
func ValidateSession(s *models.SessionState) error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}

	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Version != models.StateVersion {
		fail("unsupported version %d", s.Version)
	}
	if s.SessionID == "" {
		fail("missing session id")
	}
	if s.PhoneNumber == "" {
		fail("missing phone number")
	}
	if !s.CurrentSpecialist.Valid() {
		fail("unknown current specialist %q", s.CurrentSpecialist)
	}

	for i, t := range s.Transcript {
		if !t.Role.Valid() {
			fail("transcript[%d]: unknown role %q", i, t.Role)
		}
		if t.Specialist != "" && !t.Specialist.Valid() {
			fail("transcript[%d]: unknown specialist %q", i, t.Specialist)
		}
	}

	q := s.Qualification
	if !q.Budget.Valid() {
		fail("unknown budget %q", q.Budget)
	}
	if !q.Authority.Valid() {
		fail("unknown authority %q", q.Authority)
	}
	if !q.Need.Valid() {
		fail("unknown need %q", q.Need)
	}
	if !q.Timeline.Valid() {
		fail("unknown timeline %q", q.Timeline)
	}

	for i, o := range s.Objections {
		if !o.Type.Valid() {
			fail("objections[%d]: unknown type %q", i, o.Type)
		}
		if !o.Outcome.Valid() {
			fail("objections[%d]: unknown outcome %q", i, o.Outcome)
		}
	}

	sent := s.Sentiment
	if !sent.Label.Valid() {
		fail("unknown sentiment label %q", sent.Label)
	}
	if !inRange(sent.Score, -1, 1) {
		fail("sentiment score %v out of range", sent.Score)
	}
	if !inRange(sent.Confidence, 0, 1) {
		fail("sentiment confidence %v out of range", sent.Confidence)
	}
	for i, e := range sent.History {
		if !e.Label.Valid() || !inRange(e.Score, -1, 1) || !inRange(e.Confidence, 0, 1) {
			fail("sentiment history[%d] malformed", i)
		}
	}

	if s.Guardrails.OffTopicCount < 0 || s.Guardrails.RepetitionCount < 0 {
		fail("negative guardrail counter")
	}

	a := s.Appointment
	if a.EventType != "" && !a.EventType.Valid() {
		fail("unknown event type %q", a.EventType)
	}
	if a.ExternalEventID != "" && !a.Booked {
		fail("external event without booking")
	}

	if s.LeadGrade != "" && !s.LeadGrade.Valid() {
		fail("unknown lead grade %q", s.LeadGrade)
	}
	if s.SentimentTrend != "" && !s.SentimentTrend.Valid() {
		fail("unknown sentiment trend %q", s.SentimentTrend)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidState, strings.Join(problems, "; "))
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
