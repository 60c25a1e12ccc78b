package s1_normalize

import (
	"math"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// Method records which scaling path produced a sub-score
type Method string

const (
	MethodRobustZ  Method = "robust_z" // (v - median) / (k·MAD)
	MethodStdZ     Method = "std_z"    // MAD = 0, (v - mean) / σ
	MethodFlat     Method = "flat"     // σ = 0, every value sits at the center
	MethodFallback Method = "fallback" // cross-section too small, fixed bounds
)

// Normalizer maps raw observations to sub-scores in [-1, 1]
// ⭐ SSOT: 시그널 스케일 통일은 여기서만
type Normalizer struct {
	norm      scoringconfig.Normalization
	direction scoringconfig.Directions
}

// NewNormalizer creates a normalizer from the cycle configuration
func NewNormalizer(cfg *scoringconfig.Config) *Normalizer {
	return &Normalizer{
		norm:      cfg.Normalization,
		direction: cfg.Direction,
	}
}

// Normalize returns the direction-adjusted sub-score for one observation.
// Higher is always more favorable.
func (n *Normalizer) Normalize(obs contracts.SignalObservation, cs *CrossSection) (float64, Method) {
	sign := n.direction.ByKind(obs.Kind)

	if cs.UsesFallback(obs.Kind) {
		return sign * n.scaleFallback(obs), MethodFallback
	}

	st := cs.Stats(obs.Kind)
	var z float64
	method := MethodRobustZ

	switch {
	case st.MAD > 0:
		z = (obs.Value - st.Median) / (n.norm.MADScale * st.MAD)
	case st.StdDev > 0:
		z = (obs.Value - st.Mean) / st.StdDev
		method = MethodStdZ
	default:
		method = MethodFlat
	}

	clip := n.norm.ZScoreClip
	z = math.Max(-clip, math.Min(clip, z))

	return sign * z / clip, method
}

// scaleFallback linearly maps the clamped value onto [-1, 1]
func (n *Normalizer) scaleFallback(obs contracts.SignalObservation) float64 {
	b := n.norm.FallbackBounds.ByKind(obs.Kind)
	v := math.Max(b.Min, math.Min(b.Max, obs.Value))
	return 2*(v-b.Min)/(b.Max-b.Min) - 1
}
