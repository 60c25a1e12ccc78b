package s2_weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/contracts"
)

var (
	repo = contracts.SignalRepoSpread
	div  = contracts.SignalPriceDivergence
	vol  = contracts.SignalVolume
	volt = contracts.SignalVolatility
)

func sumOf(eff map[contracts.SignalKind]float64) float64 {
	s := 0.0
	for _, w := range eff {
		s += w
	}
	return s
}

func TestResolve_MissingSignals(t *testing.T) {
	// volume/volatility 누락 → 남은 두 시그널로 재정규화
	weights := contracts.WeightConfig{repo: 0.6, div: 0.4, vol: 0.3, volt: 0.3}

	res := Resolve(weights, []contracts.SignalKind{repo, div})
	require.True(t, res.Scoreable)
	assert.InDelta(t, 0.6, res.Effective[repo], 1e-12)
	assert.InDelta(t, 0.4, res.Effective[div], 1e-12)
	assert.Equal(t, []contracts.SignalKind{repo, div}, res.Kinds)
	assert.Equal(t, contracts.ReasonNone, res.Reason)
}

func TestResolve_SumsToOne(t *testing.T) {
	weights := contracts.WeightConfig{repo: 0.4, div: 0.3, vol: 0.2, volt: 0.1}
	subsets := [][]contracts.SignalKind{
		{repo},
		{vol, volt},
		{div, repo, volt},
		{repo, div, vol, volt},
	}

	for _, avail := range subsets {
		res := Resolve(weights, avail)
		require.True(t, res.Scoreable)
		assert.InDelta(t, 1.0, sumOf(res.Effective), 1e-12, "available %v", avail)
	}
}

func TestResolve_ZeroWeightExcluded(t *testing.T) {
	weights := contracts.WeightConfig{repo: 0.5, div: 0, vol: 0.5}

	res := Resolve(weights, []contracts.SignalKind{repo, div, vol})
	require.True(t, res.Scoreable)
	assert.NotContains(t, res.Effective, div)
	assert.InDelta(t, 0.5, res.Effective[repo], 1e-12)
}

func TestResolve_Unscoreable(t *testing.T) {
	weights := contracts.WeightConfig{repo: 0.5, div: 0}

	res := Resolve(weights, nil)
	assert.False(t, res.Scoreable)
	assert.Equal(t, contracts.ReasonNoSignals, res.Reason)

	res = Resolve(weights, []contracts.SignalKind{div, vol})
	assert.False(t, res.Scoreable)
	assert.Equal(t, contracts.ReasonZeroWeight, res.Reason)
	assert.Empty(t, res.Effective)
}

func TestConfiguredKinds(t *testing.T) {
	weights := contracts.WeightConfig{volt: 0.1, repo: 0.4, vol: 0}
	assert.Equal(t, []contracts.SignalKind{repo, volt}, ConfiguredKinds(weights))
}
