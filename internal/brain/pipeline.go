package brain

import (
	"time"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/s1_normalize"
	"github.com/wonny/tscore/backend/internal/s2_weights"
	"github.com/wonny/tscore/backend/internal/s3_composite"
	"github.com/wonny/tscore/backend/internal/s4_confidence"
	"github.com/wonny/tscore/backend/internal/s5_risk"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// pipeline holds the per-cycle stage components.
// Read-only after construction, shared by all workers.
type pipeline struct {
	asOf        time.Time
	weights     contracts.WeightConfig
	normalizer  *s1_normalize.Normalizer
	combiner    *s3_composite.Combiner
	estimator   *s4_confidence.Estimator
	categorizer *s5_risk.Categorizer
}

func newPipeline(cfg *scoringconfig.Config, asOf time.Time) *pipeline {
	return &pipeline{
		asOf:        asOf,
		weights:     cfg.Weights.WeightConfig(),
		normalizer:  s1_normalize.NewNormalizer(cfg),
		combiner:    s3_composite.NewCombiner(cfg),
		estimator:   s4_confidence.NewEstimator(cfg),
		categorizer: s5_risk.NewCategorizer(cfg),
	}
}

// score runs S1 → S5 for one security
func (p *pipeline) score(sec contracts.SecurityObservations, cs *s1_normalize.CrossSection, prev contracts.CategoryMap) contracts.CompositeScore {
	cusip := sec.Security.CUSIP

	// 입력 검증: 형식 오류 / 중복 시그널
	byKind, reason, detail := sec.Admit()
	if reason != contracts.ReasonNone {
		return contracts.Unscoreable(cusip, p.asOf, reason, detail)
	}

	available := make([]contracts.SignalKind, 0, len(byKind))
	for _, k := range contracts.AllSignalKinds() {
		if _, ok := byKind[k]; ok {
			available = append(available, k)
		}
	}

	// S2: 유효 가중치
	res := s2_weights.Resolve(p.weights, available)
	if !res.Scoreable {
		return contracts.Unscoreable(cusip, p.asOf, res.Reason, "")
	}

	// S1: 서브 점수 (설명용으로 모든 가용 시그널 계산)
	subs := make(map[contracts.SignalKind]float64, len(available))
	raw := make(map[contracts.SignalKind]float64, len(available))
	for _, k := range available {
		subs[k], _ = p.normalizer.Normalize(byKind[k], cs)
		raw[k] = byKind[k].Value
	}

	// S3: 종합 점수
	combined := p.combiner.Combine(subs, res.Effective, byKind)

	// S4: 신뢰도
	confidence := p.estimator.Estimate(sec.Observations, p.asOf)

	// S5: 등급
	previous, hasPrevious := prev.Get(cusip)
	category, reason := p.categorizer.Categorize(combined.Composite, confidence, previous, hasPrevious)

	return contracts.CompositeScore{
		CUSIP:            cusip,
		AsOf:             p.asOf,
		Composite:        combined.Composite,
		Confidence:       confidence,
		Category:         category,
		SubScores:        subs,
		EffectiveWeights: res.Effective,
		RawValues:        raw,
		TrendBonus:       combined.TrendBonus,
		Scoreable:        true,
		Reason:           reason,
	}
}
