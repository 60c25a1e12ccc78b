package s2_weights

import (
	"github.com/wonny/tscore/backend/internal/contracts"
)

// Resolution is the outcome of weight resolution for one security
type Resolution struct {
	// Effective maps each contributing kind to its renormalized weight (sum = 1)
	Effective map[contracts.SignalKind]float64
	// Kinds lists contributing kinds in AllSignalKinds order
	Kinds []contracts.SignalKind

	Scoreable bool
	Reason    contracts.ReasonCode
}

// Resolve renormalizes configured weights over the signals that are present.
// eff(k) = w(k) / Σ w(available). Never errors; an empty result carries a reason.
func Resolve(weights contracts.WeightConfig, available []contracts.SignalKind) Resolution {
	if len(available) == 0 {
		return Resolution{Reason: contracts.ReasonNoSignals}
	}

	present := make(map[contracts.SignalKind]bool, len(available))
	for _, k := range available {
		present[k] = true
	}

	total := 0.0
	kinds := make([]contracts.SignalKind, 0, len(available))
	for _, k := range contracts.AllSignalKinds() {
		if !present[k] || weights[k] <= 0 {
			continue
		}
		total += weights[k]
		kinds = append(kinds, k)
	}

	if total <= 0 {
		return Resolution{Reason: contracts.ReasonZeroWeight}
	}

	eff := make(map[contracts.SignalKind]float64, len(kinds))
	for _, k := range kinds {
		eff[k] = weights[k] / total
	}

	return Resolution{
		Effective: eff,
		Kinds:     kinds,
		Scoreable: true,
	}
}

// ConfiguredKinds returns the kinds that carry positive configured weight
func ConfiguredKinds(weights contracts.WeightConfig) []contracts.SignalKind {
	return weights.Positive()
}
