package models

// Budget answers whether the caller has budget. Empty means not yet known.
type Budget string

const (
	BudgetYes     Budget = "yes"
	BudgetNo      Budget = "no"
	BudgetUnclear Budget = "unclear"
)

// Authority describes the caller's role in the purchase decision.
type Authority string

const (
	AuthorityDecisionMaker Authority = "decision-maker"
	AuthorityInfluencer    Authority = "influencer"
	AuthorityNone          Authority = "none"
)

// Need is the strength of the caller's need.
type Need string

const (
	NeedHigh   Need = "high"
	NeedMedium Need = "medium"
	NeedLow    Need = "low"
	NeedNone   Need = "none"
)

// Timeline is when the caller wants to buy.
type Timeline string

const (
	TimelineImmediate  Timeline = "immediate"
	TimelineOneToThree Timeline = "1-3 months"
	TimelineThreeToSix Timeline = "3-6 months"
	TimelineOverSix    Timeline = "> 6 months"
	TimelineUnclear    Timeline = "unclear"
)

func (b Budget) Valid() bool {
	switch b {
	case "", BudgetYes, BudgetNo, BudgetUnclear:
		return true
	}
	return false
}

func (a Authority) Valid() bool {
	switch a {
	case "", AuthorityDecisionMaker, AuthorityInfluencer, AuthorityNone:
		return true
	}
	return false
}

func (n Need) Valid() bool {
	switch n {
	case "", NeedHigh, NeedMedium, NeedLow, NeedNone:
		return true
	}
	return false
}

func (t Timeline) Valid() bool {
	switch t {
	case "", TimelineImmediate, TimelineOneToThree, TimelineThreeToSix, TimelineOverSix, TimelineUnclear:
		return true
	}
	return false
}

// Qualification is the BANT record. Each field is empty until known.
type Qualification struct {
	Budget    Budget    `json:"budget,omitempty"`
	Authority Authority `json:"authority,omitempty"`
	Need      Need      `json:"need,omitempty"`
	Timeline  Timeline  `json:"timeline,omitempty"`
}

// IsComplete reports whether all four factors are known.
func (q Qualification) IsComplete() bool {
	return q.Budget != "" && q.Authority != "" && q.Need != "" && q.Timeline != ""
}

// Score is a weighted sum over the four factors in [0,100].
func (q Qualification) Score() int {
	score := 0
	switch q.Budget {
	case BudgetYes:
		score += 25
	case BudgetUnclear:
		score += 10
	}
	switch q.Authority {
	case AuthorityDecisionMaker:
		score += 25
	case AuthorityInfluencer:
		score += 15
	}
	switch q.Need {
	case NeedHigh:
		score += 25
	case NeedMedium:
		score += 15
	}
	switch q.Timeline {
	case TimelineImmediate, TimelineOneToThree:
		score += 25
	case TimelineThreeToSix:
		score += 10
	}
	return score
}

// FillMissing copies factors from o into the unknown factors of q.
func (q Qualification) FillMissing(o Qualification) Qualification {
	if q.Budget == "" {
		q.Budget = o.Budget
	}
	if q.Authority == "" {
		q.Authority = o.Authority
	}
	if q.Need == "" {
		q.Need = o.Need
	}
	if q.Timeline == "" {
		q.Timeline = o.Timeline
	}
	return q
}

// Overlay copies every known factor of o over q.
func (q Qualification) Overlay(o Qualification) Qualification {
	if o.Budget != "" {
		q.Budget = o.Budget
	}
	if o.Authority != "" {
		q.Authority = o.Authority
	}
	if o.Need != "" {
		q.Need = o.Need
	}
	if o.Timeline != "" {
		q.Timeline = o.Timeline
	}
	return q
}
