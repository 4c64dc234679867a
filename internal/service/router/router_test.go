package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/completion/mock"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func startedState() *models.SessionState {
	s := models.NewSessionState("call-1", "+15550100", testNow)
	s.Started = true
	return s
}

func suggest(reply string) *mock.Completer {
	return mock.New("", mock.Rule{Match: "route a live sales call", Replies: []string{reply}})
}

func TestRoute_ModelSuggestion(t *testing.T) {
	tests := []struct {
		suggestion string
		want       models.Specialist
		source     Source
	}{
		{"objection-handler", models.SpecialistObjectionHandler, SourceModel},
		{"Scheduler.", models.SpecialistScheduler, SourceModel},
		{"qualifier", models.SpecialistQualifier, SourceModel},
		{"the weather", models.SpecialistQualifier, SourceDefault},
		{"", models.SpecialistQualifier, SourceDefault},
		{"compliance-logger", models.SpecialistQualifier, SourceDefault},
		{"supervisor", models.SpecialistQualifier, SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.suggestion, func(t *testing.T) {
			r := New(suggest(tt.suggestion), 10)
			d, err := r.Route(context.Background(), startedState(), "tell me more")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Specialist != tt.want || d.Source != tt.source {
				t.Errorf("got %s/%s, want %s/%s", d.Specialist, d.Source, tt.want, tt.source)
			}
		})
	}
}

func TestRoute_ExcitedAndQualifiedGoesToScheduler(t *testing.T) {
	r := New(suggest("objection-handler"), 10)
	s := startedState()
	s.Sentiment.Update(models.SentimentExcited, 0.9, 0.3, testNow)
	s.Qualification = models.Qualification{
		Budget:    models.BudgetYes,
		Authority: models.AuthorityDecisionMaker,
		Need:      models.NeedHigh,
		Timeline:  models.TimelineImmediate,
	}

	d, err := r.Route(context.Background(), s, "This is fantastic!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Specialist != models.SpecialistScheduler || d.Source != SourceOverride {
		t.Errorf("got %s/%s, want scheduler/override", d.Specialist, d.Source)
	}
}

func TestRoute_ExcitedButIncompleteKeepsSuggestion(t *testing.T) {
	r := New(suggest("qualifier"), 10)
	s := startedState()
	s.Sentiment.Update(models.SentimentExcited, 0.9, 0.3, testNow)
	s.Qualification = models.Qualification{Budget: models.BudgetYes}

	d, _ := r.Route(context.Background(), s, "great")
	if d.Specialist != models.SpecialistQualifier {
		t.Errorf("got %s, want qualifier", d.Specialist)
	}
}

func TestRoute_FrustratedObjectionOverride(t *testing.T) {
	tests := []struct {
		name      string
		label     models.SentimentLabel
		utterance string
		want      models.Specialist
	}{
		{"frustrated with problem", models.SentimentFrustrated, "I have a real problem with this", models.SpecialistObjectionHandler},
		{"negative with concern", models.SentimentNegative, "my concern is the contract", models.SpecialistObjectionHandler},
		{"frustrated without indicator", models.SentimentFrustrated, "this is annoying", models.SpecialistScheduler},
		{"neutral with problem", models.SentimentNeutral, "no problem at all", models.SpecialistScheduler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(suggest("scheduler"), 10)
			s := startedState()
			s.Sentiment.Label = tt.label

			d, err := r.Route(context.Background(), s, tt.utterance)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Specialist != tt.want {
				t.Errorf("got %s, want %s", d.Specialist, tt.want)
			}
		})
	}
}

func TestRoute_LifecyclePhasesSkipModel(t *testing.T) {
	c := suggest("qualifier")
	r := New(c, 10)

	fresh := models.NewSessionState("call-1", "+15550100", testNow)
	d, err := r.Route(context.Background(), fresh, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Specialist != models.SpecialistComplianceLogger || d.Source != SourceConsent {
		t.Errorf("unstarted: got %s/%s", d.Specialist, d.Source)
	}

	ended := startedState()
	ended.Ended = true
	d, _ = r.Route(context.Background(), ended, "hello again")
	if d.Specialist != models.SpecialistComplianceLogger || d.Source != SourceClosing {
		t.Errorf("ended: got %s/%s", d.Specialist, d.Source)
	}

	if n := len(c.Calls()); n != 0 {
		t.Errorf("expected no model calls, got %d", n)
	}
}

func TestRoute_ModelFailure(t *testing.T) {
	c := mock.New("")
	c.FailWith(errors.New("boom"))

	if _, err := New(c, 10).Route(context.Background(), startedState(), "hi"); err == nil {
		t.Error("expected error")
	}
}

func TestRoute_ContextCarriesSentiment(t *testing.T) {
	c := suggest("qualifier")
	s := startedState()
	s.Sentiment.Update(models.SentimentPositive, 0.5, 0.3, testNow)
	s.AppendTurn(models.Turn{ID: "t1", Role: models.RoleCaller, Text: "sounds interesting", At: testNow})

	d, _ := New(c, 10).Route(context.Background(), s, "sounds interesting")
	if !strings.Contains(d.Trace, "qualifier") {
		t.Errorf("unexpected trace %q", d.Trace)
	}

	calls := c.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	for _, want := range []string{"Current sentiment: positive", "Last message: sounds interesting", "Caller: sounds interesting"} {
		if !strings.Contains(calls[0].Conversation, want) {
			t.Errorf("context missing %q:\n%s", want, calls[0].Conversation)
		}
	}
}

func TestShouldClose(t *testing.T) {
	r := New(mock.New(""), 10)

	tests := []struct {
		text string
		want bool
	}{
		{"Okay, goodbye!", true},
		{"Thank you, that's all", true},
		{"Have a good day", true},
		{"thanksgiving plans", false},
		{"Tell me about pricing", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := r.ShouldClose(tt.text); got != tt.want {
			t.Errorf("ShouldClose(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNextHop(t *testing.T) {
	r := New(mock.New(""), 10)
	s := startedState()
	s.AppendTurn(models.Turn{ID: "t1", Role: models.RoleCaller, Text: "what does it cost?", At: testNow})

	if got := r.NextHop(s); got != models.SpecialistSupervisor {
		t.Errorf("got %s, want supervisor", got)
	}

	s.AppendTurn(models.Turn{ID: "t2", Role: models.RoleCaller, Text: "ok bye", At: testNow})
	if got := r.NextHop(s); got != models.SpecialistComplianceLogger {
		t.Errorf("got %s, want compliance-logger", got)
	}
}
