package s4_confidence

import (
	"math"
	"time"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// Estimator turns signal coverage and recency into a confidence in [0, 1].
// Confidence never blocks emission; S5 decides what a low value means.
type Estimator struct {
	configured map[contracts.SignalKind]bool
	freshness  time.Duration
	decay      float64
}

// NewEstimator creates an estimator from the cycle configuration
func NewEstimator(cfg *scoringconfig.Config) *Estimator {
	configured := make(map[contracts.SignalKind]bool, 4)
	for _, k := range cfg.Weights.WeightConfig().Positive() {
		configured[k] = true
	}

	return &Estimator{
		configured: configured,
		freshness:  cfg.Confidence.Freshness,
		decay:      cfg.Confidence.StaleDecay,
	}
}

// Estimate computes confidence for one security's observations.
//
//	base = |available ∩ configured| / |configured|
//	each counted signal older than freshness multiplies by decay
func (e *Estimator) Estimate(available []contracts.SignalObservation, asOf time.Time) float64 {
	if len(e.configured) == 0 || len(available) == 0 {
		return 0
	}

	counted := make(map[contracts.SignalKind]bool, len(available))
	stale := 0
	for _, obs := range available {
		if !e.configured[obs.Kind] || counted[obs.Kind] {
			continue
		}
		counted[obs.Kind] = true
		if e.IsStale(obs, asOf) {
			stale++
		}
	}

	conf := float64(len(counted)) / float64(len(e.configured))
	conf *= math.Pow(e.decay, float64(stale))

	return math.Max(0, math.Min(1, conf))
}

// IsStale reports whether an observation is older than the freshness threshold
func (e *Estimator) IsStale(obs contracts.SignalObservation, asOf time.Time) bool {
	return asOf.Sub(obs.AsOf) > e.freshness
}
