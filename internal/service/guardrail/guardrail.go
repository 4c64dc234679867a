// Package guardrail runs advisory checks on a proposed agent reply before it
// reaches the caller. Checks rewrite the reply and count flags; they never
// block a turn.
package guardrail

import (
	"strings"

	"ai-voice-agent-orchestrator/internal/models"
)

// Reply prefixes.
const (
	ClarificationPrefix = "Let me put that more precisely. "
	RepetitionPrefix    = "As I mentioned: "
)

// RepetitionWindow is how many recent agent replies are compared.
const RepetitionWindow = 2

var hedgingPhrases = []string{
	"i believe",
	"perhaps",
	"probably",
	"i think",
	"might be",
	"presumably",
	"maybe",
}

// IntegrityChecker reports contradictions between a reply and recorded data.
type IntegrityChecker interface {
	Check(reply string, state *models.SessionState) []string
}

// NoopIntegrity never reports a violation.
type NoopIntegrity struct{}

func (NoopIntegrity) Check(string, *models.SessionState) []string { return nil }

// Result is what a check pass produced.
type Result struct {
	Reply         string
	Guardrails    models.GuardrailState
	Hallucination bool
	Repetition    bool
	Violations    []string
}

// Flags names the checks that fired on this reply.
func (r Result) Flags() []string {
	var out []string
	if r.Hallucination {
		out = append(out, "hallucination")
	}
	if r.Repetition {
		out = append(out, "repetition")
	}
	if len(r.Violations) > 0 {
		out = append(out, "data-integrity")
	}
	return out
}

// Monitor runs the checks.
type Monitor struct {
	integrity IntegrityChecker
}

// New returns a monitor. A nil checker selects NoopIntegrity.
func New(integrity IntegrityChecker) *Monitor {
	if integrity == nil {
		integrity = NoopIntegrity{}
	}
	return &Monitor{integrity: integrity}
}

// Apply checks proposed against state and returns the final reply and
// updated counters. state is not modified.
func (m *Monitor) Apply(proposed string, state *models.SessionState) Result {
	g := state.Guardrails
	g.DataIntegrityViolations = append([]string{}, state.Guardrails.DataIntegrityViolations...)
	res := Result{Reply: proposed}

	if containsHedging(proposed) {
		res.Hallucination = true
		g.HallucinationDetected = true
		res.Reply = ClarificationPrefix + res.Reply
	}

	for _, prev := range state.RecentAgentReplies(RepetitionWindow) {
		if stripPrefixes(prev) == stripPrefixes(proposed) {
			res.Repetition = true
			g.RepetitionCount++
			res.Reply = RepetitionPrefix + res.Reply
			break
		}
	}

	if v := m.integrity.Check(proposed, state); len(v) > 0 {
		res.Violations = v
		g.DataIntegrityViolations = append(g.DataIntegrityViolations, v...)
	}

	res.Guardrails = g
	return res
}

// stripPrefixes removes the prefixes earlier passes added, so stored replies
// compare against what was proposed.
func stripPrefixes(reply string) string {
	reply = strings.TrimSpace(reply)
	for {
		switch {
		case strings.HasPrefix(reply, RepetitionPrefix):
			reply = strings.TrimSpace(strings.TrimPrefix(reply, RepetitionPrefix))
		case strings.HasPrefix(reply, ClarificationPrefix):
			reply = strings.TrimSpace(strings.TrimPrefix(reply, ClarificationPrefix))
		default:
			return reply
		}
	}
}

func containsHedging(reply string) bool {
	lower := strings.ToLower(reply)
	for _, p := range hedgingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
