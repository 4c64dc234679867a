// Package sentiment maintains the rolling caller sentiment estimate and maps
// it to voice synthesis hints.
package sentiment

import (
	"math"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/lexicon"
)

// Result is a single classification of one utterance.
type Result struct {
	Label      models.SentimentLabel
	Score      float64
	Confidence float64
}

// Classifier turns an utterance into a sentiment result.
type Classifier interface {
	Classify(text string) Result
}

// Fixed score per label.
var labelScores = map[models.SentimentLabel]float64{
	models.SentimentFrustrated: -0.7,
	models.SentimentExcited:    0.9,
	models.SentimentNegative:   -0.5,
	models.SentimentPositive:   0.5,
	models.SentimentNeutral:    0.0,
}

// ScoreFor returns the fixed score assigned to label.
func ScoreFor(label models.SentimentLabel) float64 {
	return labelScores[label]
}

// KeywordClassifier counts matches against four disjoint keyword sets.
type KeywordClassifier struct {
	positive    *lexicon.Set
	negative    *lexicon.Set
	frustration *lexicon.Set
	excitement  *lexicon.Set
}

// NewKeywordClassifier builds the default English lexical classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		positive:    lexicon.NewSet("good", "great", "perfect", "interesting", "gladly", "yes", "sure", "excellent", "nice", "like"),
		negative:    lexicon.NewSet("no", "not", "bad", "annoying", "poor", "never", "don't", "terrible"),
		frustration: lexicon.NewSet("damn", "outrageous", "furious", "angry", "fed up", "enough", "ridiculous"),
		excitement:  lexicon.NewSet("wow", "incredible", "fantastic", "amazing", "awesome", "brilliant", "love it"),
	}
}

// Classify applies frustration > excitement > negative-vs-positive > neutral.
func (c *KeywordClassifier) Classify(text string) Result {
	pos := c.positive.Count(text)
	neg := c.negative.Count(text)
	fru := c.frustration.Count(text)
	exc := c.excitement.Count(text)

	var label models.SentimentLabel
	switch {
	case fru > 0:
		label = models.SentimentFrustrated
	case exc > 0:
		label = models.SentimentExcited
	case neg > pos:
		label = models.SentimentNegative
	case pos > neg:
		label = models.SentimentPositive
	default:
		label = models.SentimentNeutral
	}

	return Result{
		Label:      label,
		Score:      ScoreFor(label),
		Confidence: math.Min(float64(pos+neg+fru+exc)*0.3, 1.0),
	}
}

// Tracker applies a classifier to a prior sentiment record.
type Tracker struct {
	classifier Classifier
}

// NewTracker returns a tracker. A nil classifier selects the keyword default.
func NewTracker(c Classifier) *Tracker {
	if c == nil {
		c = NewKeywordClassifier()
	}
	return &Tracker{classifier: c}
}

// Analyze classifies text and returns prior with the result appended.
// prior itself is not modified.
func (t *Tracker) Analyze(text string, prior models.SentimentRecord, now time.Time) models.SentimentRecord {
	return Apply(t.classifier.Classify(text), prior, now)
}

// Apply records an already computed result, such as one supplied by the
// voice platform, onto a copy of prior.
func Apply(r Result, prior models.SentimentRecord, now time.Time) models.SentimentRecord {
	next := prior
	next.History = append(make([]models.SentimentEntry, 0, len(prior.History)+1), prior.History...)
	next.Update(r.Label, clamp(r.Score, -1, 1), clamp(r.Confidence, 0, 1), now)
	return next
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Tone holds voice synthesis hints.
type Tone struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Style           string  `json:"style"`
}

var tones = map[models.SentimentLabel]Tone{
	models.SentimentPositive:   {Stability: 0.4, SimilarityBoost: 0.8, Style: "friendly"},
	models.SentimentExcited:    {Stability: 0.3, SimilarityBoost: 0.9, Style: "excited"},
	models.SentimentNeutral:    {Stability: 0.5, SimilarityBoost: 0.75, Style: "professional"},
	models.SentimentNegative:   {Stability: 0.6, SimilarityBoost: 0.7, Style: "empathetic"},
	models.SentimentFrustrated: {Stability: 0.7, SimilarityBoost: 0.65, Style: "calm"},
}

// ToneParameters looks up the hints for label. Unknown labels get neutral's.
func ToneParameters(label models.SentimentLabel) Tone {
	if t, ok := tones[label]; ok {
		return t
	}
	return tones[models.SentimentNeutral]
}
