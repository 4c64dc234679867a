package models

import "time"

// SentimentLabel is the detected emotional state of the caller.
type SentimentLabel string

const (
	SentimentPositive   SentimentLabel = "positive"
	SentimentNeutral    SentimentLabel = "neutral"
	SentimentNegative   SentimentLabel = "negative"
	SentimentFrustrated SentimentLabel = "frustrated"
	SentimentExcited    SentimentLabel = "excited"
)

// Valid reports whether l is a known label.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentFrustrated, SentimentExcited:
		return true
	}
	return false
}

// SentimentEntry is one history point.
type SentimentEntry struct {
	Label      SentimentLabel `json:"label"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	At         time.Time      `json:"at"`
}

// SentimentRecord is the rolling sentiment estimate. History is append-only
// and Update is the only mutator.
type SentimentRecord struct {
	Label       SentimentLabel   `json:"label"`
	Score       float64          `json:"score"`
	Confidence  float64          `json:"confidence"`
	History     []SentimentEntry `json:"history"`
	LastUpdated *time.Time       `json:"lastUpdated,omitempty"`
}

// NewSentimentRecord returns the neutral starting estimate.
func NewSentimentRecord() SentimentRecord {
	return SentimentRecord{
		Label:      SentimentNeutral,
		Confidence: 0.5,
		History:    []SentimentEntry{},
	}
}

// Update sets the current estimate and appends it to the history.
func (r *SentimentRecord) Update(label SentimentLabel, score, confidence float64, at time.Time) {
	r.Label = label
	r.Score = score
	r.Confidence = confidence
	ts := at
	r.LastUpdated = &ts
	r.History = append(r.History, SentimentEntry{
		Label:      label,
		Score:      score,
		Confidence: confidence,
		At:         at,
	})
}

// RequiresToneAdjustment reports whether the voice should adapt to the caller.
func (r SentimentRecord) RequiresToneAdjustment() bool {
	if r.Score > 0.5 || r.Score < -0.5 {
		return true
	}
	return r.Label == SentimentFrustrated || r.Label == SentimentExcited
}
