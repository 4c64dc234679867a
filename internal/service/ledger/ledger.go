// Package ledger derives lead grades, objection tallies and sentiment trends
// from the qualification record and histories.
package ledger

import (
	"ai-voice-agent-orchestrator/internal/models"
)

// Grade reasons.
const (
	ReasonA = "Budget available, decision-maker, high need, short timeline"
	ReasonB = "Interest present, budget confirmed or unclear, moderate timeline"
	ReasonC = "Lower interest or long timeline"
	ReasonN = "No need or budget, not qualified"
)

// TrendThreshold is the score delta needed to call a trend improved or worsened.
const TrendThreshold = 0.3

// CalculateLeadGrade evaluates the grade rules in order; the first match wins.
// The B and C rules overlap and the order must not change.
func CalculateLeadGrade(q models.Qualification, objections []models.ObjectionRecord) (models.LeadGrade, string) {
	open := Tally(objections).Open

	if q.Budget == models.BudgetYes &&
		q.Authority == models.AuthorityDecisionMaker &&
		q.Need == models.NeedHigh &&
		(q.Timeline == models.TimelineImmediate || q.Timeline == models.TimelineOneToThree) &&
		open == 0 {
		return models.GradeA, ReasonA
	}

	if (q.Need == models.NeedHigh || q.Need == models.NeedMedium) &&
		(q.Budget == models.BudgetYes || q.Budget == models.BudgetUnclear) &&
		(q.Authority == models.AuthorityDecisionMaker || q.Authority == models.AuthorityInfluencer) &&
		(q.Timeline == models.TimelineImmediate || q.Timeline == models.TimelineOneToThree || q.Timeline == models.TimelineThreeToSix) &&
		open <= 1 {
		return models.GradeB, ReasonB
	}

	if q.Need == models.NeedMedium || q.Timeline == models.TimelineOverSix || q.Budget == models.BudgetUnclear {
		return models.GradeC, ReasonC
	}

	return models.GradeN, ReasonN
}

// Tally counts objections by outcome.
func Tally(objections []models.ObjectionRecord) models.ObjectionTally {
	t := models.ObjectionTally{Total: len(objections)}
	for _, o := range objections {
		switch o.Outcome {
		case models.OutcomeOvercome:
			t.Overcome++
		case models.OutcomeUnresolved:
			t.Unresolved++
		default:
			t.Open++
		}
	}
	return t
}

// Trend compares the last sentiment history score to the first.
func Trend(history []models.SentimentEntry) models.Trend {
	if len(history) < 2 {
		return models.TrendUnchanged
	}
	first := history[0].Score
	last := history[len(history)-1].Score
	switch {
	case last > first+TrendThreshold:
		return models.TrendImproved
	case last < first-TrendThreshold:
		return models.TrendWorsened
	default:
		return models.TrendUnchanged
	}
}

// SentimentBounds returns the first and last history scores, or zeros.
func SentimentBounds(history []models.SentimentEntry) (start, end float64) {
	if len(history) == 0 {
		return 0, 0
	}
	return history[0].Score, history[len(history)-1].Score
}

// NextSteps suggests the follow-up for a graded lead.
func NextSteps(grade models.LeadGrade, booked bool) string {
	switch {
	case booked:
		return "Prepare for the scheduled appointment"
	case grade == models.GradeA || grade == models.GradeB:
		return "Follow up by phone within 48 hours to book a demo"
	case grade == models.GradeC:
		return "Add to nurture campaign and revisit in 3 months"
	default:
		return "No follow-up required"
	}
}
