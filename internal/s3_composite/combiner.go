package s3_composite

import (
	"math"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// Result is the combined score for one security
type Result struct {
	Base       float64 // Σ eff·sub mapped into the bound, before bonus
	TrendBonus float64
	Composite  float64 // clamp(Base + TrendBonus)
}

// Combiner folds sub-scores and effective weights into one composite
// ⭐ SSOT: 종합 점수 계산은 여기서만
type Combiner struct {
	composite scoringconfig.Composite
	trend     scoringconfig.Trend
}

// NewCombiner creates a combiner from the cycle configuration
func NewCombiner(cfg *scoringconfig.Config) *Combiner {
	return &Combiner{
		composite: cfg.Composite,
		trend:     cfg.Trend,
	}
}

// Combine computes the composite score.
// Only kinds present in effective contribute, in AllSignalKinds order.
func (c *Combiner) Combine(
	subScores map[contracts.SignalKind]float64,
	effective map[contracts.SignalKind]float64,
	observations map[contracts.SignalKind]contracts.SignalObservation,
) Result {
	weighted := 0.0
	bonus := 0.0

	for _, k := range contracts.AllSignalKinds() {
		w, ok := effective[k]
		if !ok || w <= 0 {
			continue
		}
		weighted += w * subScores[k]

		if obs, ok := observations[k]; ok && c.TrendConsistent(obs) {
			bonus += c.trend.BonusPerSignal
		}
	}

	bonus = math.Min(bonus, c.trend.MaxTotalBonus)
	base := c.composite.Mid() + weighted*c.composite.HalfRange()

	return Result{
		Base:       base,
		TrendBonus: bonus,
		Composite:  c.clamp(base + bonus),
	}
}

// TrendConsistent reports whether an observation's recent moves mostly
// agree with its latest move. Series is History followed by Value.
func (c *Combiner) TrendConsistent(obs contracts.SignalObservation) bool {
	if len(obs.History) < c.trend.MinHistory {
		return false
	}

	series := make([]float64, 0, len(obs.History)+1)
	series = append(series, obs.History...)
	series = append(series, obs.Value)

	moves := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		moves[i-1] = series[i] - series[i-1]
	}

	// 마지막 0이 아닌 변화 방향
	dir := 0.0
	for i := len(moves) - 1; i >= 0; i-- {
		if moves[i] != 0 {
			dir = math.Copysign(1, moves[i])
			break
		}
	}
	if dir == 0 {
		return false
	}

	agree := 0
	for _, m := range moves {
		if m*dir > 0 {
			agree++
		}
	}

	return float64(agree)/float64(len(moves)) > c.trend.ConsistencyThreshold
}

func (c *Combiner) clamp(v float64) float64 {
	return math.Max(c.composite.ScoreMin, math.Min(c.composite.ScoreMax, v))
}
