package specialist

import (
	"regexp"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/lexicon"
)

// ObjectionClassifier assigns an objection type to an utterance.
type ObjectionClassifier interface {
	Classify(text string) models.ObjectionType
}

// QualificationExtractor guesses qualification factors from an utterance.
// Factors it cannot determine are left empty.
type QualificationExtractor interface {
	Extract(text string) models.Qualification
}

// AppointmentDetails are slot and contact fields found in an utterance.
type AppointmentDetails struct {
	Email string
	Date  string
	Time  string
}

// AppointmentExtractor pulls booking details out of an utterance.
type AppointmentExtractor interface {
	Extract(text string) AppointmentDetails
}

type objectionCategory struct {
	kind  models.ObjectionType
	words *lexicon.Set
}

// KeywordObjectionClassifier picks the first category with a matching
// keyword, falling back to other.
type KeywordObjectionClassifier struct {
	categories []objectionCategory
}

func NewKeywordObjectionClassifier() *KeywordObjectionClassifier {
	return &KeywordObjectionClassifier{categories: []objectionCategory{
		{models.ObjectionPrice, lexicon.NewSet("expensive", "budget", "cost", "costs", "money", "price", "too much")},
		{models.ObjectionTime, lexicon.NewSet("no time", "later", "busy", "not now", "bad time")},
		{models.ObjectionNonDecisionMaker, lexicon.NewSet("boss", "ceo", "check with", "not my decision", "not my call")},
		{models.ObjectionExistingSolution, lexicon.NewSet("already have", "already use", "already using", "chatgpt")},
		{models.ObjectionNoNeed, lexicon.NewSet("not interested", "no need", "don't need")},
		{models.ObjectionDistrust, lexicon.NewSet("hype", "doesn't work", "does not work", "robot", "scam")},
	}}
}

func (c *KeywordObjectionClassifier) Classify(text string) models.ObjectionType {
	for _, cat := range c.categories {
		if cat.words.Any(text) {
			return cat.kind
		}
	}
	return models.ObjectionOther
}

// KeywordQualificationExtractor recognizes budget and authority statements.
type KeywordQualificationExtractor struct {
	budgetTopic   *lexicon.Set
	budgetUnclear *lexicon.Set
	budgetNo      *lexicon.Set
	budgetYes     *lexicon.Set
	decisionMaker *lexicon.Set
	influencer    *lexicon.Set
}

func NewKeywordQualificationExtractor() *KeywordQualificationExtractor {
	return &KeywordQualificationExtractor{
		budgetTopic:   lexicon.NewSet("budget", "money", "invest", "investment", "planned", "allocated", "funds"),
		budgetUnclear: lexicon.NewSet("not sure", "unclear", "don't know", "depends"),
		budgetNo:      lexicon.NewSet("no", "not", "don't", "none", "zero"),
		budgetYes:     lexicon.NewSet("yes", "have", "available", "approved", "set aside"),
		decisionMaker: lexicon.NewSet("i decide", "i make the decision", "decision-maker", "ceo", "owner", "founder", "managing director", "my call"),
		influencer:    lexicon.NewSet("my boss", "check with", "team decides", "i recommend", "i advise"),
	}
}

// Extract checks unclear before no before yes, so "not sure" is never read
// as a refusal.
func (e *KeywordQualificationExtractor) Extract(text string) models.Qualification {
	var q models.Qualification
	if e.budgetTopic.Any(text) {
		switch {
		case e.budgetUnclear.Any(text):
			q.Budget = models.BudgetUnclear
		case e.budgetNo.Any(text):
			q.Budget = models.BudgetNo
		case e.budgetYes.Any(text):
			q.Budget = models.BudgetYes
		}
	}
	switch {
	case e.decisionMaker.Any(text):
		q.Authority = models.AuthorityDecisionMaker
	case e.influencer.Any(text):
		q.Authority = models.AuthorityInfluencer
	}
	return q
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timePattern  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

// PatternAppointmentExtractor recognizes an email address, an ISO date and a
// 24-hour time.
type PatternAppointmentExtractor struct{}

func (PatternAppointmentExtractor) Extract(text string) AppointmentDetails {
	var d AppointmentDetails
	d.Email = emailPattern.FindString(text)
	if m := datePattern.FindStringSubmatch(text); m != nil {
		if _, err := time.Parse("2006-01-02", m[1]); err == nil {
			d.Date = m[1]
		}
	}
	// Drop the date before looking for a time so "2026-11-03" is not read as one.
	rest := datePattern.ReplaceAllString(text, " ")
	if m := timePattern.FindStringSubmatch(rest); m != nil {
		h := m[1]
		if len(h) == 1 {
			h = "0" + h
		}
		d.Time = h + ":" + m[2]
	}
	return d
}
