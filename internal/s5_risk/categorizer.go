package s5_risk

import (
	"math"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// Categorizer 리스크 등급 분류기 (순수 계산기)
// ⭐ SSOT: 등급 경계/히스테리시스는 여기서만
type Categorizer struct {
	bands scoringconfig.Categorization
}

// NewCategorizer creates a categorizer from the cycle configuration
func NewCategorizer(cfg *scoringconfig.Config) *Categorizer {
	return &Categorizer{bands: cfg.Categorization}
}

// =============================================================================
// Static Bands
// =============================================================================

// Static maps a composite to its band, ignoring history
func (c *Categorizer) Static(score float64) contracts.RiskCategory {
	switch {
	case score >= c.bands.FavorableMin:
		return contracts.CategoryFavorable
	case score >= c.bands.NeutralMin:
		return contracts.CategoryNeutral
	case score >= c.bands.CautionMin:
		return contracts.CategoryCaution
	default:
		return contracts.CategoryHighRisk
	}
}

// boundary returns the threshold separating two adjacent bands
func (c *Categorizer) boundary(a, b contracts.RiskCategory) (float64, bool) {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 || rb < 0 || math.Abs(float64(ra-rb)) != 1 {
		return 0, false
	}

	// 더 나은(rank 작은) 쪽 밴드의 하한이 경계
	switch min(ra, rb) {
	case 0:
		return c.bands.FavorableMin, true
	case 1:
		return c.bands.NeutralMin, true
	case 2:
		return c.bands.CautionMin, true
	}
	return 0, false
}

// =============================================================================
// Categorize (hysteresis + low-confidence override)
// =============================================================================

// Categorize assigns the category for one security.
//
// Order:
//  1. confidence < low_confidence_floor → INSUFFICIENT_DATA (LOW_CONFIDENCE)
//  2. static band C
//  3. previous P banded, C adjacent to P, |score - boundary| <= band → keep P
func (c *Categorizer) Categorize(score, confidence float64, previous contracts.RiskCategory, hasPrevious bool) (contracts.RiskCategory, contracts.ReasonCode) {
	if confidence < c.bands.LowConfidenceFloor {
		return contracts.CategoryInsufficientData, contracts.ReasonLowConfidence
	}

	current := c.Static(score)
	if !hasPrevious || previous == current {
		return current, contracts.ReasonNone
	}

	// INSUFFICIENT_DATA / 알 수 없는 이전 등급은 boundary 없음 → 히스테리시스 미적용
	edge, ok := c.boundary(previous, current)
	if !ok {
		return current, contracts.ReasonNone
	}

	if math.Abs(score-edge) <= c.bands.HysteresisBand {
		return previous, contracts.ReasonNone
	}

	return current, contracts.ReasonNone
}
