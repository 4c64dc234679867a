package sentiment

import (
	"testing"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name      string
		text      string
		wantLabel models.SentimentLabel
		wantScore float64
		wantConf  float64
	}{
		{"frustration beats excitement", "This is ridiculous, although the demo was amazing", models.SentimentFrustrated, -0.7, 0.6},
		{"excitement beats positive", "Wow, that sounds great", models.SentimentExcited, 0.9, 0.6},
		{"negative majority", "No, that is bad and not for us", models.SentimentNegative, -0.5, 0.9},
		{"positive majority", "Yes, sure, that sounds good", models.SentimentPositive, 0.5, 0.9},
		{"tie is neutral", "Yes but no", models.SentimentNeutral, 0, 0.6},
		{"nothing matched", "We use a spreadsheet today", models.SentimentNeutral, 0, 0},
		{"confidence capped", "good great perfect nice excellent", models.SentimentPositive, 0.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Label != tt.wantLabel {
				t.Errorf("label = %s, want %s", got.Label, tt.wantLabel)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if diff := got.Confidence - tt.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestTracker_AnalyzeIsAppendOnly(t *testing.T) {
	tr := NewTracker(nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prior := models.NewSentimentRecord()
	prior.Update(models.SentimentNeutral, 0, 0.5, now)
	initial := len(prior.History)

	rec := prior
	utterances := []string{"great", "this is ridiculous", "wow", "no"}
	for i, u := range utterances {
		before := append([]models.SentimentEntry(nil), rec.History...)
		rec = tr.Analyze(u, rec, now.Add(time.Duration(i)*time.Second))
		for j := range before {
			if rec.History[j] != before[j] {
				t.Fatalf("history entry %d changed after update %d", j, i)
			}
		}
	}

	if len(rec.History) != initial+len(utterances) {
		t.Errorf("expected %d entries, got %d", initial+len(utterances), len(rec.History))
	}
	if len(prior.History) != initial {
		t.Errorf("prior record mutated: %d entries", len(prior.History))
	}
	if rec.Label != models.SentimentNegative {
		t.Errorf("expected latest label negative, got %s", rec.Label)
	}
}

type fixedClassifier struct{ r Result }

func (f fixedClassifier) Classify(string) Result { return f.r }

func TestTracker_CustomClassifier(t *testing.T) {
	tr := NewTracker(fixedClassifier{Result{Label: models.SentimentExcited, Score: 3, Confidence: -1}})

	rec := tr.Analyze("anything", models.NewSentimentRecord(), time.Now())

	if rec.Label != models.SentimentExcited {
		t.Errorf("expected excited, got %s", rec.Label)
	}
	if rec.Score != 1 || rec.Confidence != 0 {
		t.Errorf("expected clamped score/confidence, got %v/%v", rec.Score, rec.Confidence)
	}
}

func TestToneParameters(t *testing.T) {
	if got := ToneParameters(models.SentimentFrustrated); got.Style != "calm" || got.Stability != 0.7 {
		t.Errorf("unexpected frustrated tone: %+v", got)
	}
	if got := ToneParameters("bored"); got != ToneParameters(models.SentimentNeutral) {
		t.Errorf("expected neutral fallback, got %+v", got)
	}
}
