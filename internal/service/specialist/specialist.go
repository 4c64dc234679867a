// Package specialist implements the turn handlers a session is routed to.
// Each handler reads a snapshot of the session and returns a partial update
// limited to the fields it owns.
package specialist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/completion"
	"ai-voice-agent-orchestrator/internal/service/guardrail"
	"ai-voice-agent-orchestrator/internal/service/lifecycle"
)

// Errors returned by Apply and the handlers.
var (
	ErrNotOwned   = errors.New("update touches fields not owned by specialist")
	ErrWrongPhase = errors.New("specialist cannot act in the current session phase")
	ErrUnknown    = errors.New("unknown specialist")
)

// Input is what a handler sees for one turn. State must be treated as
// read-only; it already contains the caller's utterance and the updated
// sentiment.
type Input struct {
	State     *models.SessionState
	Utterance string
	Now       time.Time
}

// Closing carries the end-of-call results computed by the compliance logger.
type Closing struct {
	LeadGrade      models.LeadGrade
	Reason         string
	Summary        string
	NextSteps      string
	SentimentTrend models.Trend
}

// Update is a partial state change. Nil fields are left untouched.
type Update struct {
	Specialist     models.Specialist
	Reply          string
	Guardrails     *models.GuardrailState
	GuardrailFlags []string

	Qualification *models.Qualification
	Company       *models.CompanyProfile
	Objection     *models.ObjectionRecord
	Appointment   *models.Appointment

	Consent *models.Consent
	Start   bool
	Closing *Closing
}

// Handler is one specialist behavior.
type Handler interface {
	Name() models.Specialist
	Handle(ctx context.Context, in Input) (Update, error)
}

// Deps are the collaborators shared by the model-backed handlers.
type Deps struct {
	Completer    completion.Completer
	Guardrails   *guardrail.Monitor
	ContextTurns int
}

func (d Deps) generate(ctx context.Context, prompt string, s *models.SessionState) (string, guardrail.Result, error) {
	reply, err := d.Completer.Complete(ctx, prompt, completion.BuildContext(s.Transcript, d.ContextTurns))
	if err != nil {
		return "", guardrail.Result{}, err
	}
	res := d.Guardrails.Apply(reply, s)
	return res.Reply, res, nil
}

// Apply writes u into s after checking ownership and the ended flag.
// On error s is unchanged.
func Apply(s *models.SessionState, u Update) error {
	if !u.Specialist.Valid() || u.Specialist == models.SpecialistSupervisor {
		return fmt.Errorf("%w: %q", ErrUnknown, u.Specialist)
	}

	touchesOwned := u.Qualification != nil || u.Company != nil || u.Objection != nil || u.Appointment != nil
	if touchesOwned {
		if err := lifecycle.CheckMutation(s, u.Specialist); err != nil {
			return err
		}
	}
	if err := checkOwnership(u); err != nil {
		return err
	}

	if u.Guardrails != nil {
		s.Guardrails = *u.Guardrails
	}
	if u.Qualification != nil {
		s.Qualification = *u.Qualification
	}
	if u.Company != nil {
		s.Company = *u.Company
	}
	if u.Objection != nil {
		s.Objections = append(s.Objections, *u.Objection)
	}
	if u.Appointment != nil {
		a := *u.Appointment
		if s.Appointment.Booked {
			a.Booked = true
		}
		s.Appointment = a
	}
	if u.Consent != nil {
		s.Consent = *u.Consent
	}
	if u.Start {
		if err := lifecycle.Start(s); err != nil && !errors.Is(err, lifecycle.ErrSessionEnded) {
			return err
		}
	}
	if u.Closing != nil {
		s.LeadGrade = u.Closing.LeadGrade
		s.LeadGradeReason = u.Closing.Reason
		s.Summary = u.Closing.Summary
		s.NextSteps = u.Closing.NextSteps
		s.SentimentTrend = u.Closing.SentimentTrend
	}
	s.CurrentSpecialist = u.Specialist
	return nil
}

func checkOwnership(u Update) error {
	var bad []string
	if u.Qualification != nil && u.Specialist != models.SpecialistQualifier {
		bad = append(bad, "qualification")
	}
	if u.Company != nil && u.Specialist != models.SpecialistQualifier {
		bad = append(bad, "company")
	}
	if u.Objection != nil && u.Specialist != models.SpecialistObjectionHandler {
		bad = append(bad, "objections")
	}
	if u.Appointment != nil && u.Specialist != models.SpecialistScheduler {
		bad = append(bad, "appointment")
	}
	if (u.Consent != nil || u.Start || u.Closing != nil) && u.Specialist != models.SpecialistComplianceLogger {
		bad = append(bad, "compliance")
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s wrote %v", ErrNotOwned, u.Specialist, bad)
	}
	return nil
}

// Registry maps designations to handlers.
type Registry map[models.Specialist]Handler

// NewRegistry registers the given handlers under their names.
func NewRegistry(handlers ...Handler) Registry {
	r := make(Registry, len(handlers))
	for _, h := range handlers {
		r[h.Name()] = h
	}
	return r
}

// Get returns the handler for sp.
func (r Registry) Get(sp models.Specialist) (Handler, error) {
	h, ok := r[sp]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, sp)
	}
	return h, nil
}
