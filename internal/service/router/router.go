// Package router picks the specialist that answers each caller turn and
// detects when a call should close.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
	"ai-voice-agent-orchestrator/internal/service/completion"
	"ai-voice-agent-orchestrator/internal/service/lexicon"
)

// Source records why a specialist was chosen.
type Source string

const (
	SourceModel    Source = "model"
	SourceDefault  Source = "default"
	SourceOverride Source = "override"
	SourceConsent  Source = "consent"
	SourceClosing  Source = "closing"
)

// Decision is the routing result for one turn. Trace is the internal
// transcript note recorded alongside it.
type Decision struct {
	Specialist models.Specialist
	Source     Source
	Suggested  string
	Trace      string
}

const routingPrompt = `You route a live sales call to the right specialist.

Specialists:
1. qualifier - collects budget, authority, need and timeline
2. objection-handler - handles objections such as "too expensive", "no time" or other concerns
3. scheduler - books a demo once the lead is qualified and ready
4. compliance-logger - consent at the start and summary at the end

Rules:
- qualifier: the lead shows interest, discovery phase, qualification incomplete
- objection-handler: objections, doubts or concerns
- scheduler: the lead is qualified (grade A or B) and shows readiness
- compliance-logger: start and end of the call only

Take the caller's sentiment into account:
- negative or frustrated callers: prefer objection-handler
- excited or positive callers: go to scheduler if qualified

Answer ONLY with the specialist name in lowercase.`

// Router is the supervisor. It is safe for concurrent use.
type Router struct {
	completer    completion.Completer
	contextTurns int
	objection    *lexicon.Set
	closing      *lexicon.Set
	metrics      *metrics.Metrics
}

// New returns a router asking c for suggestions over the last contextTurns
// transcript turns.
func New(c completion.Completer, contextTurns int) *Router {
	return &Router{
		completer:    c,
		contextTurns: contextTurns,
		objection:    lexicon.NewSet("objection", "problem", "concern", "concerned", "issue", "worried", "doubt"),
		closing:      lexicon.NewSet("goodbye", "bye", "thanks", "thank you", "have a good day", "see you"),
		metrics:      metrics.DefaultMetrics,
	}
}

// Route decides who answers utterance. s must already carry the turn's
// sentiment. The model is not consulted before consent or after the end.
func (r *Router) Route(ctx context.Context, s *models.SessionState, utterance string) (Decision, error) {
	switch {
	case s.Ended:
		return r.decide(s, Decision{Specialist: models.SpecialistComplianceLogger, Source: SourceClosing}), nil
	case !s.Started:
		return r.decide(s, Decision{Specialist: models.SpecialistComplianceLogger, Source: SourceConsent}), nil
	}

	raw, err := r.completer.Complete(ctx, routingPrompt, r.routingContext(s, utterance))
	if err != nil {
		return Decision{}, fmt.Errorf("routing suggestion: %w", err)
	}

	d := Decision{Specialist: models.SpecialistQualifier, Source: SourceDefault, Suggested: strings.TrimSpace(raw)}
	// The compliance logger only owns the consent and closing turns, which are
	// decided above. Mid-call it would fail with lifecycle.ErrWrongPhase, so the
	// suggestion falls back to the qualifier like any unknown one.
	if sp, ok := models.ParseSpecialist(raw); ok && sp != models.SpecialistSupervisor && sp != models.SpecialistComplianceLogger {
		d.Specialist = sp
		d.Source = SourceModel
	} else {
		log.Debug().
			Str("sessionId", s.SessionID).
			Str("suggested", d.Suggested).
			Msg("Routing suggestion rejected, defaulting to qualifier")
	}

	if sp, ok := r.override(s, utterance); ok {
		d.Specialist = sp
		d.Source = SourceOverride
	}
	return r.decide(s, d), nil
}

// override applies the sentiment rules. They win over the model.
func (r *Router) override(s *models.SessionState, utterance string) (models.Specialist, bool) {
	label := s.Sentiment.Label
	if (label == models.SentimentFrustrated || label == models.SentimentNegative) && r.objection.Any(utterance) {
		return models.SpecialistObjectionHandler, true
	}
	if label == models.SentimentExcited && s.Qualification.IsComplete() {
		return models.SpecialistScheduler, true
	}
	return "", false
}

func (r *Router) decide(s *models.SessionState, d Decision) Decision {
	d.Trace = fmt.Sprintf("[supervisor -> %s]", d.Specialist)
	r.metrics.RecordRouting(string(d.Specialist), string(d.Source))
	log.Debug().
		Str("sessionId", s.SessionID).
		Str("specialist", string(d.Specialist)).
		Str("source", string(d.Source)).
		Msg("Turn routed")
	return d
}

func (r *Router) routingContext(s *models.SessionState, utterance string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last message: %s\n\n", utterance)
	fmt.Fprintf(&b, "Current specialist: %s\n", s.CurrentSpecialist)
	fmt.Fprintf(&b, "Call started: %t\n", s.Started)
	fmt.Fprintf(&b, "Call ended: %t\n\n", s.Ended)
	b.WriteString("Sentiment context:\n")
	fmt.Fprintf(&b, "- Current sentiment: %s\n", s.Sentiment.Label)
	fmt.Fprintf(&b, "- Sentiment score: %.2f\n", s.Sentiment.Score)
	b.WriteString("- History:")
	for _, e := range recent(s.Sentiment.History, 5) {
		fmt.Fprintf(&b, " %s(%.1f)", e.Label, e.Score)
	}
	b.WriteString("\n")
	if ctx := completion.BuildContext(s.Transcript, r.contextTurns); ctx != "" {
		b.WriteString("\nConversation:\n")
		b.WriteString(ctx)
	}
	return b.String()
}

func recent(h []models.SentimentEntry, n int) []models.SentimentEntry {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// ShouldClose reports whether the caller's latest utterance closes the call.
func (r *Router) ShouldClose(utterance string) bool {
	return r.closing.Any(utterance)
}

// NextHop is the post-turn transition: compliance-logger when the call is
// closing, otherwise back to the supervisor.
func (r *Router) NextHop(s *models.SessionState) models.Specialist {
	if s.Ended || r.ShouldClose(s.LastCallerText()) {
		return models.SpecialistComplianceLogger
	}
	return models.SpecialistSupervisor
}
