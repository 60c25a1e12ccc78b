package contracts

import "time"

// RiskCategory is the discrete label attached to a composite score
type RiskCategory string

const (
	CategoryFavorable        RiskCategory = "FAVORABLE"
	CategoryNeutral          RiskCategory = "NEUTRAL"
	CategoryCaution          RiskCategory = "CAUTION"
	CategoryHighRisk         RiskCategory = "HIGH_RISK"
	CategoryInsufficientData RiskCategory = "INSUFFICIENT_DATA"
)

// OrderedCategories returns the banded categories from best to worst.
// INSUFFICIENT_DATA sits outside the order.
func OrderedCategories() []RiskCategory {
	return []RiskCategory{
		CategoryFavorable,
		CategoryNeutral,
		CategoryCaution,
		CategoryHighRisk,
	}
}

// Rank returns the position of c in OrderedCategories, or -1
func (c RiskCategory) Rank() int {
	for i, oc := range OrderedCategories() {
		if oc == c {
			return i
		}
	}
	return -1
}

// ReasonCode explains an unscoreable record or a forced category
type ReasonCode string

const (
	ReasonNone                 ReasonCode = ""
	ReasonNoSignals            ReasonCode = "NO_SIGNALS"
	ReasonZeroWeight           ReasonCode = "ZERO_WEIGHT"
	ReasonMalformedObservation ReasonCode = "MALFORMED_OBSERVATION"
	ReasonDuplicateSignal      ReasonCode = "DUPLICATE_SIGNAL"
	ReasonInternalError        ReasonCode = "INTERNAL_ERROR"
	ReasonLowConfidence        ReasonCode = "LOW_CONFIDENCE"
)

// CompositeScore is the engine output for one security and cycle.
// Immutable once emitted; the next cycle's record supersedes it.
// ⭐ SSOT: 스코어링 엔진 → 저장/표시 결과 전달
type CompositeScore struct {
	CUSIP      string       `json:"cusip"`
	AsOf       time.Time    `json:"as_of"`
	Composite  float64      `json:"composite"`  // score_min ~ score_max (기본 0 ~ 100)
	Confidence float64      `json:"confidence"` // 0.0 ~ 1.0
	Category   RiskCategory `json:"category"`

	// Explainability
	SubScores        map[SignalKind]float64 `json:"sub_scores,omitempty"`        // -1.0 ~ 1.0
	EffectiveWeights map[SignalKind]float64 `json:"effective_weights,omitempty"` // 합 = 1.0
	RawValues        map[SignalKind]float64 `json:"raw_values,omitempty"`
	TrendBonus       float64                `json:"trend_bonus"`

	Scoreable bool       `json:"scoreable"`
	Reason    ReasonCode `json:"reason,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// Unscoreable builds the record emitted when a security cannot be scored
func Unscoreable(cusip string, asOf time.Time, reason ReasonCode, detail string) CompositeScore {
	return CompositeScore{
		CUSIP:      cusip,
		AsOf:       asOf,
		Composite:  0,
		Confidence: 0,
		Category:   CategoryInsufficientData,
		Scoreable:  false,
		Reason:     reason,
		Detail:     detail,
	}
}

// ConfidenceLevel buckets confidence into High / Medium / Low
func (s *CompositeScore) ConfidenceLevel() string {
	switch {
	case s.Confidence >= 0.75:
		return "High"
	case s.Confidence >= 0.5:
		return "Medium"
	default:
		return "Low"
	}
}

// CategoryMap carries each security's category from one cycle to the next
type CategoryMap map[string]RiskCategory

// Get returns the previous category for a CUSIP, if any
func (m CategoryMap) Get(cusip string) (RiskCategory, bool) {
	c, ok := m[cusip]
	return c, ok
}

// CategoriesOf collects the category map from a set of scores
func CategoriesOf(scores []CompositeScore) CategoryMap {
	out := make(CategoryMap, len(scores))
	for _, s := range scores {
		out[s.CUSIP] = s.Category
	}
	return out
}
