package specialist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
	"ai-voice-agent-orchestrator/internal/service/guardrail"
	"ai-voice-agent-orchestrator/internal/service/lexicon"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
)

// Scheduler moves a qualified lead to a booked appointment.
type Scheduler struct {
	deps        Deps
	booker      scheduling.Client
	extractor   AppointmentExtractor
	affirmative *lexicon.Set
	metrics     *metrics.Metrics
}

// NewScheduler returns a scheduler. A nil booker disables external booking;
// a nil extractor selects the pattern default.
func NewScheduler(deps Deps, booker scheduling.Client, extractor AppointmentExtractor) *Scheduler {
	if extractor == nil {
		extractor = PatternAppointmentExtractor{}
	}
	return &Scheduler{
		deps:        deps,
		booker:      booker,
		extractor:   extractor,
		affirmative: lexicon.NewSet("appointment", "book", "schedule", "reserve", "works for me", "sounds good", "yes"),
		metrics:     metrics.DefaultMetrics,
	}
}

func (s *Scheduler) Name() models.Specialist { return models.SpecialistScheduler }

func (s *Scheduler) Handle(ctx context.Context, in Input) (Update, error) {
	st := in.State
	appt := st.Appointment
	fillDetails(&appt, s.extractor.Extract(in.Utterance))

	if s.affirmative.Any(in.Utterance) && !appt.Booked {
		appt.Booked = true
		appt.Status = models.AppointmentRequested
		if appt.Date == "" {
			appt.Date = models.Pending
		}
		if appt.Time == "" {
			appt.Time = models.Pending
		}
	}

	if s.readyToBook(appt) {
		reply, err := s.book(ctx, st, &appt)
		if err != nil {
			return Update{}, err
		}
		checked := s.deps.Guardrails.Apply(reply, st)
		return s.update(checked, appt), nil
	}

	prompt := withHint(schedulerPrompt, closingTechnique(st.Sentiment.Label)) +
		"\n\nBooking details collected: " + describeAppointment(appt)
	_, checked, err := s.deps.generate(ctx, prompt, st)
	if err != nil {
		return Update{}, err
	}
	return s.update(checked, appt), nil
}

func (s *Scheduler) update(checked guardrail.Result, appt models.Appointment) Update {
	return Update{
		Specialist:     models.SpecialistScheduler,
		Reply:          checked.Reply,
		Guardrails:     &checked.Guardrails,
		GuardrailFlags: checked.Flags(),
		Appointment:    &appt,
	}
}

func (s *Scheduler) readyToBook(a models.Appointment) bool {
	return s.booker != nil && a.Booked && a.Email != "" && a.HasSlot() && a.ExternalEventID == ""
}

// book makes the single blocking call to the scheduling service. Slot
// rejections reset the slot and ask again; anything else fails the turn.
func (s *Scheduler) book(ctx context.Context, st *models.SessionState, appt *models.Appointment) (string, error) {
	name := appt.Name
	if name == "" {
		name = st.Company.Name
	}
	if name == "" {
		name = "Caller " + st.PhoneNumber
	}
	company := appt.Company
	if company == "" {
		company = st.Company.Name
	}

	res, err := s.booker.BookAppointment(ctx, scheduling.BookingRequest{
		Name:      name,
		Email:     appt.Email,
		Date:      appt.Date,
		Time:      appt.Time,
		Timezone:  appt.Timezone,
		Phone:     appt.Phone,
		Company:   company,
		Notes:     appt.Notes,
		EventType: string(appt.EventType),
	})
	if err != nil {
		s.metrics.RecordBooking("error")
		return "", err
	}

	switch {
	case res.Success:
		s.metrics.RecordBooking("confirmed")
		appt.ExternalEventID = res.EventURI
		appt.ExternalInviteeID = res.InviteeURI
		appt.Status = models.AppointmentConfirmed
		log.Info().
			Str("sessionId", st.SessionID).
			Str("eventUri", res.EventURI).
			Msg("Appointment booked")
		return fmt.Sprintf("Perfect, your %s is booked for %s at %s. You will receive a confirmation at %s.",
			appt.EventType, appt.Date, appt.Time, appt.Email), nil

	case res.SlotRejected():
		s.metrics.RecordBooking(res.ErrorCode)
		appt.Date = models.Pending
		appt.Time = models.Pending
		msg := res.ErrorMessage
		if msg == "" {
			msg = "That slot is not available."
		}
		return msg + " Which other day and time would suit you?", nil

	default:
		s.metrics.RecordBooking("error")
		return "", fmt.Errorf("%w: %s: %s", scheduling.ErrUnavailable, res.ErrorCode, res.ErrorMessage)
	}
}

// fillDetails copies extracted fields into empty or pending slots only.
func fillDetails(a *models.Appointment, d AppointmentDetails) {
	if a.Email == "" && d.Email != "" {
		a.Email = d.Email
	}
	if (a.Date == "" || a.Date == models.Pending) && d.Date != "" {
		a.Date = d.Date
	}
	if (a.Time == "" || a.Time == models.Pending) && d.Time != "" {
		a.Time = d.Time
	}
	if a.Timezone == "" {
		a.Timezone = models.DefaultTimezone
	}
	if a.EventType == "" {
		a.EventType = models.EventDemo
	}
}
