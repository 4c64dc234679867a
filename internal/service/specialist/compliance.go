package specialist

import (
	"context"
	"fmt"
	"strings"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/ledger"
	"ai-voice-agent-orchestrator/internal/service/lifecycle"
)

// Fixed compliance replies.
const (
	ConsentScript = "Before we begin: this call is recorded for quality assurance and your data is processed " +
		"in the EU in line with the GDPR. You can request access or deletion at any time. Is that okay with you?"
	ClosingReply = "Your call has been logged. Goodbye!"
)

// ComplianceLogger records consent at the start of a call and writes the
// summary at the end. It never calls the completion service.
type ComplianceLogger struct{}

func NewComplianceLogger() *ComplianceLogger {
	return &ComplianceLogger{}
}

func (c *ComplianceLogger) Name() models.Specialist { return models.SpecialistComplianceLogger }

func (c *ComplianceLogger) Handle(_ context.Context, in Input) (Update, error) {
	s := in.State
	switch lifecycle.PhaseOf(s) {
	case lifecycle.PhaseNew:
		consent := s.Consent
		// A decision logged by the voice platform wins over the implied one.
		if consent.Timestamp == nil {
			ts := in.Now
			consent = models.Consent{
				Recording:      true,
				DataProcessing: true,
				Marketing:      s.Consent.Marketing,
				Timestamp:      &ts,
			}
		}
		return Update{
			Specialist: models.SpecialistComplianceLogger,
			Reply:      ConsentScript,
			Consent:    &consent,
			Start:      true,
		}, nil

	case lifecycle.PhaseEnded:
		return Update{
			Specialist: models.SpecialistComplianceLogger,
			Reply:      ClosingReply,
			Closing:    Close(s),
		}, nil

	default:
		return Update{}, fmt.Errorf("%w: %s mid-call", ErrWrongPhase, models.SpecialistComplianceLogger)
	}
}

// Close computes the end-of-call grade, trend, next steps and summary.
func Close(s *models.SessionState) *Closing {
	grade, reason := ledger.CalculateLeadGrade(s.Qualification, s.Objections)
	trend := ledger.Trend(s.Sentiment.History)
	tally := ledger.Tally(s.Objections)

	startLabel := models.SentimentNeutral
	if len(s.Sentiment.History) > 0 {
		startLabel = s.Sentiment.History[0].Label
	}

	q := s.Qualification
	var b strings.Builder
	fmt.Fprintf(&b, "Call with %s\n", s.PhoneNumber)
	fmt.Fprintf(&b, "Lead grade: %s (%s)\n", grade, reason)
	fmt.Fprintf(&b, "BANT: budget=%s, authority=%s, need=%s, timeline=%s (score %d)\n",
		orUnknown(string(q.Budget)), orUnknown(string(q.Authority)),
		orUnknown(string(q.Need)), orUnknown(string(q.Timeline)), q.Score())
	fmt.Fprintf(&b, "Objections: %d (open %d, overcome %d, unresolved %d)\n",
		tally.Total, tally.Open, tally.Overcome, tally.Unresolved)
	fmt.Fprintf(&b, "Appointment booked: %t\n", s.Appointment.Booked)
	fmt.Fprintf(&b, "Sentiment start: %s\n", startLabel)
	fmt.Fprintf(&b, "Sentiment end: %s\n", s.Sentiment.Label)
	fmt.Fprintf(&b, "Sentiment trend: %s", trend)

	return &Closing{
		LeadGrade:      grade,
		Reason:         reason,
		Summary:        b.String(),
		NextSteps:      ledger.NextSteps(grade, s.Appointment.Booked),
		SentimentTrend: trend,
	}
}
