package s4_confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

var asOf = time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

func at(kind contracts.SignalKind, age time.Duration) contracts.SignalObservation {
	return contracts.SignalObservation{CUSIP: "91282CAA1", Kind: kind, AsOf: asOf.Add(-age), Value: 1}
}

func TestEstimate_FullCoverage(t *testing.T) {
	e := NewEstimator(scoringconfig.Default())

	conf := e.Estimate([]contracts.SignalObservation{
		at(contracts.SignalRepoSpread, time.Hour),
		at(contracts.SignalPriceDivergence, time.Hour),
		at(contracts.SignalVolume, time.Hour),
		at(contracts.SignalVolatility, 0),
	}, asOf)

	assert.Equal(t, 1.0, conf)
}

func TestEstimate_PartialCoverage(t *testing.T) {
	e := NewEstimator(scoringconfig.Default())

	conf := e.Estimate([]contracts.SignalObservation{
		at(contracts.SignalRepoSpread, 0),
		at(contracts.SignalPriceDivergence, 0),
	}, asOf)

	assert.InDelta(t, 0.5, conf, 1e-12)
}

func TestEstimate_StaleDecayCompounds(t *testing.T) {
	e := NewEstimator(scoringconfig.Default())

	conf := e.Estimate([]contracts.SignalObservation{
		at(contracts.SignalRepoSpread, 48*time.Hour),
		at(contracts.SignalPriceDivergence, 25*time.Hour),
		at(contracts.SignalVolume, 24*time.Hour), // 경계값은 fresh
		at(contracts.SignalVolatility, 0),
	}, asOf)

	assert.InDelta(t, 0.81, conf, 1e-12)
}

func TestEstimate_ZeroAvailable(t *testing.T) {
	e := NewEstimator(scoringconfig.Default())
	assert.Equal(t, 0.0, e.Estimate(nil, asOf))
}

func TestEstimate_ZeroWeightKindsIgnored(t *testing.T) {
	cfg := scoringconfig.Default()
	cfg.Weights.Volatility = 0
	e := NewEstimator(cfg)

	conf := e.Estimate([]contracts.SignalObservation{
		at(contracts.SignalRepoSpread, 0),
		at(contracts.SignalVolatility, 72*time.Hour),
	}, asOf)

	// 분모 = 3 (repo, divergence, volume), 제외된 변동성은 감쇠에도 영향 없음
	assert.InDelta(t, 1.0/3.0, conf, 1e-12)
}

func TestEstimate_DuplicateKindCountedOnce(t *testing.T) {
	e := NewEstimator(scoringconfig.Default())

	conf := e.Estimate([]contracts.SignalObservation{
		at(contracts.SignalRepoSpread, 0),
		at(contracts.SignalRepoSpread, 0),
	}, asOf)

	assert.InDelta(t, 0.25, conf, 1e-12)
}
