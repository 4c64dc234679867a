package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/checkpoint"
	"ai-voice-agent-orchestrator/internal/service/lifecycle"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
	"ai-voice-agent-orchestrator/internal/service/sentiment"
)

// EndRequest asks for a session to be closed.
type EndRequest struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
}

// EndResult is the end-of-call summary.
type EndResult struct {
	SessionID       string           `json:"sessionId"`
	LeadGrade       models.LeadGrade `json:"leadGrade"`
	LeadGradeReason string           `json:"leadGradeReason"`
	Summary         string           `json:"summary"`
	NextSteps       string           `json:"nextSteps"`
	SentimentTrend  models.Trend     `json:"sentimentTrend"`
	AlreadyEnded    bool             `json:"alreadyEnded"`
}

func endResult(s *models.SessionState, already bool) EndResult {
	return EndResult{
		SessionID:       s.SessionID,
		LeadGrade:       s.LeadGrade,
		LeadGradeReason: s.LeadGradeReason,
		Summary:         s.Summary,
		NextSteps:       s.NextSteps,
		SentimentTrend:  s.SentimentTrend,
		AlreadyEnded:    already,
	}
}

// EndSession force-ends a session and runs the compliance logger once.
// Ending an already summarized session returns the stored summary.
func (o *Orchestrator) EndSession(ctx context.Context, req EndRequest) (EndResult, error) {
	s, unlock, err := o.lockAndLoad(ctx, req.PhoneNumber, false)
	if err != nil {
		return EndResult{}, err
	}
	defer unlock()

	if req.SessionID != "" && req.SessionID != s.SessionID {
		return EndResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	if s.Ended && s.LeadGrade != "" {
		return endResult(s, true), nil
	}

	now := o.now()
	lifecycle.End(s, now)
	upd, err := o.runSpecialist(ctx, s, models.SpecialistComplianceLogger, "", now)
	if err != nil {
		return EndResult{}, external(err)
	}
	s.AppendTurn(models.Turn{
		ID:         fmt.Sprintf("%s-end", s.SessionID),
		Role:       models.RoleAgent,
		Text:       upd.Reply,
		Specialist: upd.Specialist,
		At:         now,
	})

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return EndResult{}, persistence(err)
	}
	o.finish(ctx, s)
	return endResult(s, false), nil
}

// UpdateSentiment records sentiment pushed by the voice platform outside of
// a turn.
func (o *Orchestrator) UpdateSentiment(ctx context.Context, phone string, in SentimentInput) (models.SentimentRecord, error) {
	if err := in.validate(); err != nil {
		return models.SentimentRecord{}, invalid(err)
	}
	s, unlock, err := o.lockAndLoad(ctx, phone, true)
	if err != nil {
		return models.SentimentRecord{}, err
	}
	defer unlock()

	if lifecycle.PhaseOf(s).IsTerminal() {
		return models.SentimentRecord{}, invalid(lifecycle.ErrSessionEnded)
	}
	s.Sentiment = sentiment.Apply(sentiment.Result{Label: in.Label, Score: in.Score, Confidence: in.Confidence}, s.Sentiment, o.now())

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return models.SentimentRecord{}, persistence(err)
	}
	o.metrics.RecordSentiment(string(s.Sentiment.Label), "webhook")
	return s.Sentiment, nil
}

// RecordQualification overwrites the qualification with every non-empty
// field of q.
func (o *Orchestrator) RecordQualification(ctx context.Context, phone string, q models.Qualification) (*models.SessionState, error) {
	if err := validQualification(q); err != nil {
		return nil, invalid(err)
	}
	s, unlock, err := o.lockAndLoad(ctx, phone, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := lifecycle.CheckMutation(s, models.SpecialistQualifier); err != nil {
		return nil, invalid(err)
	}
	s.Qualification = s.Qualification.Overlay(q)

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return nil, persistence(err)
	}
	log.Info().
		Str("sessionId", s.SessionID).
		Int("score", s.Qualification.Score()).
		Bool("complete", s.Qualification.IsComplete()).
		Msg("Qualification recorded")
	return s, nil
}

func validQualification(q models.Qualification) error {
	var bad []string
	if q.Budget != "" && !q.Budget.Valid() {
		bad = append(bad, "budget")
	}
	if q.Authority != "" && !q.Authority.Valid() {
		bad = append(bad, "authority")
	}
	if q.Need != "" && !q.Need.Valid() {
		bad = append(bad, "need")
	}
	if q.Timeline != "" && !q.Timeline.Valid() {
		bad = append(bad, "timeline")
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: invalid %s", ErrInvalidRequest, strings.Join(bad, ", "))
	}
	return nil
}

// ObjectionInput is an objection the voice platform recorded itself.
type ObjectionInput struct {
	Type     models.ObjectionType `json:"type"`
	Text     string               `json:"text"`
	Response string               `json:"response"`
	Outcome  models.Outcome       `json:"outcome,omitempty"`
}

// RecordObjection appends an objection to the ledger of an active session.
// An empty outcome is recorded as open.
func (o *Orchestrator) RecordObjection(ctx context.Context, phone string, in ObjectionInput) (*models.SessionState, error) {
	if !in.Type.Valid() {
		return nil, invalid(fmt.Errorf("%w: unknown objection type %q", ErrInvalidRequest, in.Type))
	}
	if in.Outcome != "" && !in.Outcome.Valid() {
		return nil, invalid(fmt.Errorf("%w: unknown objection outcome %q", ErrInvalidRequest, in.Outcome))
	}
	s, unlock, err := o.lockAndLoad(ctx, phone, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := lifecycle.CheckMutation(s, models.SpecialistObjectionHandler); err != nil {
		return nil, invalid(err)
	}
	if err := lifecycle.RequireActive(s); err != nil {
		return nil, invalid(err)
	}
	rec := models.NewObjection(in.Type, strings.TrimSpace(in.Text), strings.TrimSpace(in.Response), o.now())
	if in.Outcome != "" {
		rec.Outcome = in.Outcome
	}
	s.Objections = append(s.Objections, rec)

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return nil, persistence(err)
	}
	o.metrics.RecordObjection(string(rec.Type), string(rec.Outcome))
	log.Info().
		Str("sessionId", s.SessionID).
		Str("type", string(rec.Type)).
		Str("outcome", string(rec.Outcome)).
		Msg("Objection recorded")
	return s, nil
}

// ConsentInput is the caller's consent as collected by the voice platform.
type ConsentInput struct {
	Recording      bool `json:"recording"`
	DataProcessing bool `json:"dataProcessing"`
	Marketing      bool `json:"marketing"`
}

// LogConsent records the caller's consent decision with a timestamp. A
// logged decision, including a refusal, is kept when the consent turn runs.
func (o *Orchestrator) LogConsent(ctx context.Context, phone string, in ConsentInput) (models.Consent, error) {
	s, unlock, err := o.lockAndLoad(ctx, phone, true)
	if err != nil {
		return models.Consent{}, err
	}
	defer unlock()

	if err := lifecycle.CheckMutation(s, models.SpecialistComplianceLogger); err != nil {
		return models.Consent{}, invalid(err)
	}
	ts := o.now()
	s.Consent = models.Consent{
		Recording:      in.Recording,
		DataProcessing: in.DataProcessing,
		Marketing:      in.Marketing,
		Timestamp:      &ts,
	}

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return models.Consent{}, persistence(err)
	}
	log.Info().
		Str("sessionId", s.SessionID).
		Bool("recording", in.Recording).
		Bool("dataProcessing", in.DataProcessing).
		Bool("marketing", in.Marketing).
		Msg("Consent logged")
	return s.Consent, nil
}

// BookAppointment books a slot the voice platform collected itself. Slot
// rejections are returned as a result and leave the session unchanged.
func (o *Orchestrator) BookAppointment(ctx context.Context, phone string, req scheduling.BookingRequest) (scheduling.BookingResult, error) {
	if req.Email == "" || req.Date == "" || req.Time == "" {
		return scheduling.BookingResult{}, invalid(fmt.Errorf("%w: email, date and time required", ErrInvalidRequest))
	}
	if o.booker == nil {
		return scheduling.BookingResult{ErrorCode: scheduling.CodeConfigMissing},
			&TurnError{Kind: KindScheduling, Err: fmt.Errorf("%w: no scheduling client configured", scheduling.ErrUnavailable)}
	}

	s, unlock, err := o.lockAndLoad(ctx, phone, true)
	if err != nil {
		return scheduling.BookingResult{}, err
	}
	defer unlock()

	if err := lifecycle.CheckMutation(s, models.SpecialistScheduler); err != nil {
		return scheduling.BookingResult{}, invalid(err)
	}
	if req.Timezone == "" {
		req.Timezone = s.Appointment.Timezone
	}
	if req.Phone == "" {
		req.Phone = s.PhoneNumber
	}
	if req.Name == "" {
		req.Name = s.Company.Name
	}

	res, err := o.booker.BookAppointment(ctx, req)
	if err != nil {
		o.metrics.RecordBooking("error")
		return res, external(err)
	}
	if !res.Success {
		o.metrics.RecordBooking(res.ErrorCode)
		if res.SlotRejected() {
			return res, nil
		}
		return res, external(fmt.Errorf("%w: %s: %s", scheduling.ErrUnavailable, res.ErrorCode, res.ErrorMessage))
	}
	o.metrics.RecordBooking("confirmed")

	a := s.Appointment
	a.Booked = true
	a.Name = req.Name
	a.Email = req.Email
	a.Date = req.Date
	a.Time = req.Time
	a.Timezone = req.Timezone
	a.Company = req.Company
	a.Notes = req.Notes
	if et := models.EventType(req.EventType); et.Valid() {
		a.EventType = et
	}
	a.ExternalEventID = res.EventURI
	a.ExternalInviteeID = res.InviteeURI
	a.Status = models.AppointmentConfirmed
	s.Appointment = a

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		return res, persistence(err)
	}
	log.Info().Str("sessionId", s.SessionID).Str("eventUri", res.EventURI).Msg("Appointment booked")
	return res, nil
}

// Session returns the stored state for phone.
func (o *Orchestrator) Session(ctx context.Context, phone string) (*models.SessionState, error) {
	return o.load(ctx, strings.TrimSpace(phone))
}

// ClearSession deletes the stored state for phone. Deleting an unknown
// session succeeds.
func (o *Orchestrator) ClearSession(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return invalid(fmt.Errorf("%w: phone number required", ErrInvalidRequest))
	}
	unlock, err := o.locks.Lock(ctx, phone)
	if err != nil {
		return &TurnError{Kind: KindPersistence, Retryable: true, Err: err}
	}
	defer unlock()

	if err := o.store.Delete(ctx, phone); err != nil {
		return persistence(err)
	}
	return nil
}

// ListSessions returns stored session keys, most recently updated first.
func (o *Orchestrator) ListSessions(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = checkpoint.DefaultListLimit
	}
	keys, err := o.store.ListKeys(ctx, limit)
	if err != nil {
		return nil, persistence(err)
	}
	return keys, nil
}

// Ping reports whether the checkpoint store is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.store.Ping(ctx)
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
