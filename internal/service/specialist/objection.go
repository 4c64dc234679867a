package specialist

import (
	"context"

	"ai-voice-agent-orchestrator/internal/models"
)

// ObjectionHandler answers objections and records them in the ledger.
type ObjectionHandler struct {
	deps       Deps
	classifier ObjectionClassifier
}

// NewObjectionHandler returns a handler. A nil classifier selects the keyword
// default.
func NewObjectionHandler(deps Deps, classifier ObjectionClassifier) *ObjectionHandler {
	if classifier == nil {
		classifier = NewKeywordObjectionClassifier()
	}
	return &ObjectionHandler{deps: deps, classifier: classifier}
}

func (h *ObjectionHandler) Name() models.Specialist { return models.SpecialistObjectionHandler }

func (h *ObjectionHandler) Handle(ctx context.Context, in Input) (Update, error) {
	s := in.State
	kind := h.classifier.Classify(in.Utterance)
	prompt := withHint(objectionPrompt, objectionTone(s.Sentiment.Label)) +
		"\n\nThe caller's objection looks like: " + string(kind)

	reply, checked, err := h.deps.generate(ctx, prompt, s)
	if err != nil {
		return Update{}, err
	}

	rec := models.NewObjection(kind, in.Utterance, reply, in.Now)
	if s.Sentiment.Score > 0 {
		rec.Outcome = models.OutcomeOvercome
	}

	return Update{
		Specialist:     models.SpecialistObjectionHandler,
		Reply:          reply,
		Guardrails:     &checked.Guardrails,
		GuardrailFlags: checked.Flags(),
		Objection:      &rec,
	}, nil
}
