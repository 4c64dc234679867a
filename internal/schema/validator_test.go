package schema

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
)

func validState() *models.SessionState {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	s := models.NewSessionState("call-1", "+15550100", now)
	s.AppendTurn(models.Turn{ID: "call-1-turn-1", Role: models.RoleCaller, Text: "hi", At: now})
	s.Sentiment.Update(models.SentimentPositive, 0.5, 0.3, now)
	s.Objections = append(s.Objections, models.NewObjection(models.ObjectionPrice, "too expensive", "I hear you", now))
	return s
}

func TestValidateSession_Valid(t *testing.T) {
	if err := ValidateSession(validState()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Force-ended before consent is allowed.
	s := validState()
	s.Ended = true
	if err := ValidateSession(s); err != nil {
		t.Errorf("ended without start should be valid: %v", err)
	}
}

func TestValidateSession_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *models.SessionState)
		want   string
	}{
		{"version", func(s *models.SessionState) { s.Version = 99 }, "unsupported version"},
		{"session id", func(s *models.SessionState) { s.SessionID = "" }, "missing session id"},
		{"phone", func(s *models.SessionState) { s.PhoneNumber = "" }, "missing phone number"},
		{"specialist", func(s *models.SessionState) { s.CurrentSpecialist = "closer" }, "unknown current specialist"},
		{"role", func(s *models.SessionState) { s.Transcript[0].Role = "bot" }, "unknown role"},
		{"budget", func(s *models.SessionState) { s.Qualification.Budget = "maybe" }, "unknown budget"},
		{"timeline", func(s *models.SessionState) { s.Qualification.Timeline = "soon" }, "unknown timeline"},
		{"objection type", func(s *models.SessionState) { s.Objections[0].Type = "weather" }, "unknown type"},
		{"objection outcome", func(s *models.SessionState) { s.Objections[0].Outcome = "won" }, "unknown outcome"},
		{"label", func(s *models.SessionState) { s.Sentiment.Label = "angry" }, "unknown sentiment label"},
		{"score", func(s *models.SessionState) { s.Sentiment.Score = 1.5 }, "score"},
		{"nan confidence", func(s *models.SessionState) { s.Sentiment.Confidence = math.NaN() }, "confidence"},
		{"history", func(s *models.SessionState) { s.Sentiment.History[0].Score = -3 }, "history[0]"},
		{"counter", func(s *models.SessionState) { s.Guardrails.RepetitionCount = -1 }, "negative guardrail"},
		{"event without booking", func(s *models.SessionState) { s.Appointment.ExternalEventID = "x" }, "external event"},
		{"grade", func(s *models.SessionState) { s.LeadGrade = "D" }, "unknown lead grade"},
		{"trend", func(s *models.SessionState) { s.SentimentTrend = "sideways" }, "unknown sentiment trend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validState()
			tt.mutate(s)
			err := ValidateSession(s)
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateSession_Nil(t *testing.T) {
	if err := ValidateSession(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}
