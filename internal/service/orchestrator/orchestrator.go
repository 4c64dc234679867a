// Package orchestrator runs caller turns through routing and the
// specialists, and owns the load-mutate-persist cycle of a session.
//
// Every mutating operation holds the session's key lock, works on a private
// copy of the stored state and persists it before returning. A failure at any
// step leaves the stored state untouched.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/logging"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
	"ai-voice-agent-orchestrator/internal/service/checkpoint"
	"ai-voice-agent-orchestrator/internal/service/ledger"
	"ai-voice-agent-orchestrator/internal/service/lifecycle"
	"ai-voice-agent-orchestrator/internal/service/router"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
	"ai-voice-agent-orchestrator/internal/service/sentiment"
	"ai-voice-agent-orchestrator/internal/service/specialist"
)

// Publisher receives events after a commit.
type Publisher interface {
	PublishTurn(ctx context.Context, event models.TurnCompleted) error
	PublishSummary(ctx context.Context, event models.CallSummarized) error
}

// Config wires the orchestrator. Store, Router and Specialists are
// required.
type Config struct {
	Store       checkpoint.Store
	Router      *router.Router
	Specialists specialist.Registry
	Sentiment   *sentiment.Tracker
	Booker      scheduling.Client
	Publisher   Publisher
	Now         func() time.Time
}

// Orchestrator handles turns and session operations.
type Orchestrator struct {
	store       checkpoint.Store
	router      *router.Router
	specialists specialist.Registry
	tracker     *sentiment.Tracker
	booker      scheduling.Client
	publisher   Publisher
	locks       *checkpoint.KeyLocker
	now         func() time.Time
	metrics     *metrics.Metrics
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil || cfg.Router == nil || cfg.Specialists == nil {
		return nil, fmt.Errorf("orchestrator: store, router and specialists are required")
	}
	if _, err := cfg.Specialists.Get(models.SpecialistComplianceLogger); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o := &Orchestrator{
		store:       cfg.Store,
		router:      cfg.Router,
		specialists: cfg.Specialists,
		tracker:     cfg.Sentiment,
		booker:      cfg.Booker,
		publisher:   cfg.Publisher,
		locks:       checkpoint.NewKeyLocker(),
		now:         cfg.Now,
		metrics:     metrics.DefaultMetrics,
	}
	if o.tracker == nil {
		o.tracker = sentiment.NewTracker(nil)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// SentimentInput is sentiment supplied by the voice platform.
type SentimentInput struct {
	Label      models.SentimentLabel `json:"label"`
	Score      float64               `json:"score"`
	Confidence float64               `json:"confidence"`
}

func (in SentimentInput) validate() error {
	if !in.Label.Valid() {
		return fmt.Errorf("%w: unknown sentiment label %q", ErrInvalidRequest, in.Label)
	}
	return nil
}

// TurnRequest is one caller utterance.
type TurnRequest struct {
	SessionID   string          `json:"sessionId"`
	PhoneNumber string          `json:"phoneNumber"`
	Utterance   string          `json:"utterance"`
	Sentiment   *SentimentInput `json:"sentiment,omitempty"`
}

// TurnResult is the agent's answer to a turn.
type TurnResult struct {
	SessionID              string                `json:"sessionId"`
	TurnID                 string                `json:"turnId"`
	Reply                  string                `json:"reply"`
	Specialist             models.Specialist     `json:"specialist"`
	RoutingSource          router.Source         `json:"routingSource"`
	Sentiment              models.SentimentLabel `json:"sentiment"`
	SentimentScore         float64               `json:"sentimentScore"`
	RequiresToneAdjustment bool                  `json:"requiresToneAdjustment"`
	Tone                   sentiment.Tone        `json:"tone"`
	Guardrails             []string              `json:"guardrails,omitempty"`
	Ended                  bool                  `json:"ended"`
	LeadGrade              models.LeadGrade      `json:"leadGrade,omitempty"`
}

// HandleTurn processes one caller utterance. Turns for the same phone
// number run strictly one at a time.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (res TurnResult, err error) {
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Utterance = strings.TrimSpace(req.Utterance)
	if req.PhoneNumber == "" {
		return TurnResult{}, invalid(fmt.Errorf("%w: phone number required", ErrInvalidRequest))
	}
	if req.Sentiment != nil {
		if err := req.Sentiment.validate(); err != nil {
			return TurnResult{}, invalid(err)
		}
	}

	unlock, err := o.locks.Lock(ctx, req.PhoneNumber)
	if err != nil {
		return TurnResult{}, &TurnError{Kind: KindPersistence, Retryable: true, Err: err}
	}
	defer unlock()

	start := time.Now()
	o.metrics.RecordTurnStart()
	answered := models.SpecialistSupervisor
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		o.metrics.RecordTurnEnd(string(answered), outcome, time.Since(start).Seconds())
	}()

	stored, err := o.loadOrCreate(ctx, req.SessionID, req.PhoneNumber)
	if err != nil {
		return TurnResult{}, err
	}
	s := stored.Clone()
	now := o.now()
	turnID := lifecycle.NextTurnID(s)
	logger := logging.WithTurn(s.SessionID, s.PhoneNumber, turnID)

	s.AppendTurn(models.Turn{ID: turnID, Role: models.RoleCaller, Text: req.Utterance, At: now})

	sentimentSource := "lexical"
	if req.Sentiment != nil {
		sentimentSource = "external"
		in := req.Sentiment
		s.Sentiment = sentiment.Apply(sentiment.Result{Label: in.Label, Score: in.Score, Confidence: in.Confidence}, s.Sentiment, now)
	} else {
		s.Sentiment = o.tracker.Analyze(req.Utterance, s.Sentiment, now)
	}

	decision, err := o.router.Route(ctx, s, req.Utterance)
	if err != nil {
		logger.Warn().Err(err).Msg("Routing failed")
		return TurnResult{}, external(err)
	}
	answered = decision.Specialist
	s.AppendTurn(models.Turn{
		ID:         turnID + "-route",
		Role:       models.RoleAgent,
		Text:       decision.Trace,
		Specialist: models.SpecialistSupervisor,
		Internal:   true,
		At:         now,
	})

	upd, err := o.runSpecialist(ctx, s, decision.Specialist, req.Utterance, now)
	if err != nil {
		sl := logging.WithSpecialist(s.SessionID, s.PhoneNumber, string(decision.Specialist))
		sl.Warn().Err(err).Str("turnId", turnID).Msg("Specialist failed")
		return TurnResult{}, external(err)
	}
	s.AppendTurn(models.Turn{ID: turnID + "-reply", Role: models.RoleAgent, Text: upd.Reply, Specialist: upd.Specialist, At: now})
	reply := upd.Reply

	// The closing check only runs for conversational turns; consent and
	// closing turns already are compliance turns.
	closedNow := false
	if decision.Source != router.SourceConsent && decision.Source != router.SourceClosing &&
		o.router.NextHop(s) == models.SpecialistComplianceLogger {
		lifecycle.End(s, now)
		closing, err := o.runSpecialist(ctx, s, models.SpecialistComplianceLogger, req.Utterance, now)
		if err != nil {
			return TurnResult{}, external(err)
		}
		s.AppendTurn(models.Turn{ID: turnID + "-closing", Role: models.RoleAgent, Text: closing.Reply, Specialist: closing.Specialist, At: now})
		reply = closing.Reply
		closedNow = true
	}

	if err := o.store.Set(ctx, s.PhoneNumber, s); err != nil {
		logger.Error().Err(err).Msg("Checkpoint write failed")
		return TurnResult{}, persistence(err)
	}

	o.metrics.RecordSentiment(string(s.Sentiment.Label), sentimentSource)
	o.metrics.RecordGuardrails(upd.GuardrailFlags)
	if upd.Objection != nil {
		o.metrics.RecordObjection(string(upd.Objection.Type), string(upd.Objection.Outcome))
	}

	logger.Info().
		Str("specialist", string(decision.Specialist)).
		Str("source", string(decision.Source)).
		Str("sentiment", string(s.Sentiment.Label)).
		Bool("ended", s.Ended).
		Msg("Turn completed")

	o.publishTurn(ctx, s, turnID, decision, upd.GuardrailFlags)
	if closedNow {
		o.finish(ctx, s)
	}

	return TurnResult{
		SessionID:              s.SessionID,
		TurnID:                 turnID,
		Reply:                  reply,
		Specialist:             decision.Specialist,
		RoutingSource:          decision.Source,
		Sentiment:              s.Sentiment.Label,
		SentimentScore:         s.Sentiment.Score,
		RequiresToneAdjustment: s.Sentiment.RequiresToneAdjustment(),
		Tone:                   sentiment.ToneParameters(s.Sentiment.Label),
		Guardrails:             upd.GuardrailFlags,
		Ended:                  s.Ended,
		LeadGrade:              s.LeadGrade,
	}, nil
}

// runSpecialist invokes a handler and applies its update to s.
func (o *Orchestrator) runSpecialist(ctx context.Context, s *models.SessionState, sp models.Specialist, utterance string, now time.Time) (specialist.Update, error) {
	h, err := o.specialists.Get(sp)
	if err != nil {
		return specialist.Update{}, err
	}
	upd, err := h.Handle(ctx, specialist.Input{State: s, Utterance: utterance, Now: now})
	if err != nil {
		return specialist.Update{}, err
	}
	if err := specialist.Apply(s, upd); err != nil {
		return specialist.Update{}, err
	}
	return upd, nil
}

// loadOrCreate returns the stored session for phone, or a fresh one. A new
// session ID on an ended session starts a new call for a returning caller.
func (o *Orchestrator) loadOrCreate(ctx context.Context, sessionID, phone string) (*models.SessionState, error) {
	s, err := o.load(ctx, phone)
	switch {
	case err == nil:
		if s.Ended && sessionID != "" && sessionID != s.SessionID {
			log.Info().
				Str("previousSessionId", s.SessionID).
				Str("sessionId", sessionID).
				Msg("Returning caller, starting new session")
			return o.newSession(sessionID, phone), nil
		}
		return s, nil
	case err == ErrSessionNotFound:
		return o.newSession(sessionID, phone), nil
	default:
		return nil, err
	}
}

func (o *Orchestrator) newSession(sessionID, phone string) *models.SessionState {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return models.NewSessionState(sessionID, phone, o.now())
}

// load maps store errors onto the orchestrator's taxonomy.
func (o *Orchestrator) load(ctx context.Context, phone string) (*models.SessionState, error) {
	s, err := o.store.Get(ctx, phone)
	if err == nil {
		return s, nil
	}
	if err == checkpoint.ErrNotFound {
		return nil, ErrSessionNotFound
	}
	return nil, persistence(err)
}

// lockAndLoad is the common prologue of the session operations. With create
// set, a missing session is started fresh instead of reported.
func (o *Orchestrator) lockAndLoad(ctx context.Context, phone string, create bool) (*models.SessionState, func(), error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil, invalid(fmt.Errorf("%w: phone number required", ErrInvalidRequest))
	}
	unlock, err := o.locks.Lock(ctx, phone)
	if err != nil {
		return nil, nil, &TurnError{Kind: KindPersistence, Retryable: true, Err: err}
	}
	s, err := o.load(ctx, phone)
	switch {
	case err == nil:
		return s.Clone(), unlock, nil
	case err == ErrSessionNotFound && create:
		return o.newSession("", phone), unlock, nil
	default:
		unlock()
		return nil, nil, err
	}
}

func (o *Orchestrator) publishTurn(ctx context.Context, s *models.SessionState, turnID string, d router.Decision, flags []string) {
	if o.publisher == nil {
		return
	}
	event := models.TurnCompleted{
		EventType:      models.EventTurnCompleted,
		SessionID:      s.SessionID,
		PhoneNumber:    s.PhoneNumber,
		TurnID:         turnID,
		Specialist:     d.Specialist,
		RoutingSource:  string(d.Source),
		SentimentLabel: s.Sentiment.Label,
		SentimentScore: s.Sentiment.Score,
		Guardrails:     flags,
		Ended:          s.Ended,
		Timestamp:      o.now().UnixMilli(),
	}
	if err := o.publisher.PublishTurn(ctx, event); err != nil {
		log.Warn().Err(err).Str("sessionId", s.SessionID).Msg("Failed to publish turn event")
	}
}

// finish records the end-of-call metrics and publishes the summary.
func (o *Orchestrator) finish(ctx context.Context, s *models.SessionState) {
	o.metrics.RecordLeadGrade(string(s.LeadGrade))
	logger := logging.WithSession(s.SessionID, s.PhoneNumber)
	logger.Info().
		Str("leadGrade", string(s.LeadGrade)).
		Str("trend", string(s.SentimentTrend)).
		Msg("Call summarized")

	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSummary(ctx, summaryEvent(s, o.now())); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish summary event")
	}
}

func summaryEvent(s *models.SessionState, now time.Time) models.CallSummarized {
	start, end := ledger.SentimentBounds(s.Sentiment.History)
	return models.CallSummarized{
		EventType:          models.EventCallSummarized,
		SessionID:          s.SessionID,
		PhoneNumber:        s.PhoneNumber,
		LeadGrade:          s.LeadGrade,
		LeadGradeReason:    s.LeadGradeReason,
		Summary:            s.Summary,
		NextSteps:          s.NextSteps,
		Qualification:      s.Qualification,
		QualificationScore: s.Qualification.Score(),
		Objections:         ledger.Tally(s.Objections),
		AppointmentBooked:  s.Appointment.Booked,
		SentimentStart:     start,
		SentimentEnd:       end,
		SentimentTrend:     s.SentimentTrend,
		Guardrails:         s.Guardrails.Triggered(),
		Timestamp:          now.UnixMilli(),
	}
}
