package specialist

import (
	"context"

	"ai-voice-agent-orchestrator/internal/models"
)

// Qualifier collects the BANT factors.
type Qualifier struct {
	deps      Deps
	extractor QualificationExtractor
}

// NewQualifier returns a qualifier. A nil extractor selects the keyword default.
func NewQualifier(deps Deps, extractor QualificationExtractor) *Qualifier {
	if extractor == nil {
		extractor = NewKeywordQualificationExtractor()
	}
	return &Qualifier{deps: deps, extractor: extractor}
}

func (q *Qualifier) Name() models.Specialist { return models.SpecialistQualifier }

func (q *Qualifier) Handle(ctx context.Context, in Input) (Update, error) {
	s := in.State
	prompt := withHint(qualifierPrompt, qualifierTone(s.Sentiment.Label)) +
		"\n\nCollected so far: " + describeQualification(s.Qualification)

	reply, checked, err := q.deps.generate(ctx, prompt, s)
	if err != nil {
		return Update{}, err
	}

	// Guesses only fill unknown factors.
	qual := s.Qualification.FillMissing(q.extractor.Extract(in.Utterance))

	return Update{
		Specialist:     models.SpecialistQualifier,
		Reply:          reply,
		Guardrails:     &checked.Guardrails,
		GuardrailFlags: checked.Flags(),
		Qualification:  &qual,
	}, nil
}
