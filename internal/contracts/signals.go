package contracts

import (
	"fmt"
	"math"
	"time"
)

// SignalKind identifies one of the market signals feeding the composite
type SignalKind string

const (
	SignalRepoSpread      SignalKind = "repo_spread"      // bps
	SignalPriceDivergence SignalKind = "price_divergence" // internal - BVAL, price points
	SignalVolume          SignalKind = "volume"           // notional
	SignalVolatility      SignalKind = "volatility"       // price units
)

// AllSignalKinds returns every kind in fixed order
func AllSignalKinds() []SignalKind {
	return []SignalKind{
		SignalRepoSpread,
		SignalPriceDivergence,
		SignalVolume,
		SignalVolatility,
	}
}

// Valid reports whether k is a known signal kind
func (k SignalKind) Valid() bool {
	switch k {
	case SignalRepoSpread, SignalPriceDivergence, SignalVolume, SignalVolatility:
		return true
	}
	return false
}

// SignalObservation is one raw observation for a security this cycle
type SignalObservation struct {
	CUSIP string     `json:"cusip"`
	Kind  SignalKind `json:"kind"`
	AsOf  time.Time  `json:"as_of"`
	Value float64    `json:"value"`

	// History holds prior values, oldest first (most recent last).
	// The current Value is not part of it.
	History []float64 `json:"history,omitempty"`
}

// Check reports why an observation cannot be used, or nil
func (o SignalObservation) Check() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown signal kind %q", o.Kind)
	}
	if o.AsOf.IsZero() {
		return fmt.Errorf("%s: missing as_of timestamp", o.Kind)
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return fmt.Errorf("%s: non-finite value", o.Kind)
	}
	if o.Kind == SignalVolume && o.Value <= 0 {
		return fmt.Errorf("%s: volume must be positive, got %v", o.Kind, o.Value)
	}
	if o.Kind == SignalVolatility && o.Value < 0 {
		return fmt.Errorf("%s: volatility must be >= 0, got %v", o.Kind, o.Value)
	}
	for i, h := range o.History {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("%s: non-finite history value at %d", o.Kind, i)
		}
	}
	return nil
}

// WeightConfig maps signal kinds to non-negative weights.
// Weights need not sum to 1; a zero weight excludes the signal.
type WeightConfig map[SignalKind]float64

// Positive returns the kinds with weight > 0, in AllSignalKinds order
func (w WeightConfig) Positive() []SignalKind {
	kinds := make([]SignalKind, 0, len(w))
	for _, k := range AllSignalKinds() {
		if w[k] > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Sum returns the total configured weight
func (w WeightConfig) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}
