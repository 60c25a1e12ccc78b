package s1_normalize

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

var asOf = time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

// snapshotOf builds one security per value, all with the same kind
func snapshotOf(kind contracts.SignalKind, values ...float64) *contracts.Snapshot {
	snap := &contracts.Snapshot{AsOf: asOf}
	for i, v := range values {
		cusip := fmt.Sprintf("91282C%03d", i)
		snap.Securities = append(snap.Securities, contracts.SecurityObservations{
			Security: contracts.Security{CUSIP: cusip},
			Observations: []contracts.SignalObservation{
				{CUSIP: cusip, Kind: kind, AsOf: asOf, Value: v},
			},
		})
	}
	return snap
}

func obs(kind contracts.SignalKind, v float64) contracts.SignalObservation {
	return contracts.SignalObservation{CUSIP: "91282CAA1", Kind: kind, AsOf: asOf, Value: v}
}

func TestBuildCrossSection(t *testing.T) {
	cfg := scoringconfig.Default()
	cs, notes := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 1, 2, 3, 4, 100), cfg)

	st := cs.Stats(contracts.SignalRepoSpread)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, 3.0, st.Median)
	assert.Equal(t, 1.0, st.MAD)
	assert.InDelta(t, 22.0, st.Mean, 1e-9)
	assert.False(t, cs.UsesFallback(contracts.SignalRepoSpread))

	// 관측치가 없는 시그널은 노트 없이 폴백
	assert.Equal(t, 0, cs.Stats(contracts.SignalVolume).Count)
	assert.True(t, cs.UsesFallback(contracts.SignalVolume))
	assert.Empty(t, notes)
}

func TestBuildCrossSection_EvenMedian(t *testing.T) {
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 4, 1, 3, 2), scoringconfig.Default())
	assert.Equal(t, 2.5, cs.Stats(contracts.SignalRepoSpread).Median)
}

func TestBuildCrossSection_FallbackNote(t *testing.T) {
	cs, notes := BuildCrossSection(snapshotOf(contracts.SignalVolume, 1e6, 2e6), scoringconfig.Default())

	assert.True(t, cs.UsesFallback(contracts.SignalVolume))
	require.Len(t, notes, 1)
	assert.Equal(t, NoteFallbackScale, notes[0].Code)
	assert.Equal(t, contracts.SignalVolume, notes[0].Kind)
}

func TestBuildCrossSection_SkipsRejectedSecurities(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(sec *contracts.SecurityObservations)
	}{
		{"malformed observation", func(sec *contracts.SecurityObservations) {
			sec.Observations = append(sec.Observations,
				contracts.SignalObservation{CUSIP: sec.Security.CUSIP, Kind: contracts.SignalVolume, AsOf: asOf, Value: math.NaN()})
		}},
		{"duplicate kind", func(sec *contracts.SecurityObservations) {
			sec.Observations = append(sec.Observations, sec.Observations[0])
		}},
		{"foreign observation", func(sec *contracts.SecurityObservations) {
			sec.Observations[0].CUSIP = "91282CZZ9"
		}},
		{"invalid cusip", func(sec *contracts.SecurityObservations) {
			sec.Security.CUSIP = "91282C000XX"
			sec.Observations[0].CUSIP = "91282C000XX"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 100은 거부된 종목의 값: 통계에 들어가면 중앙값이 바뀜
			snap := snapshotOf(contracts.SignalRepoSpread, 100, 1, 2, 3)
			tt.mutate(&snap.Securities[0])

			cs, notes := BuildCrossSection(snap, scoringconfig.Default())

			st := cs.Stats(contracts.SignalRepoSpread)
			assert.Equal(t, 3, st.Count)
			assert.Equal(t, 2.0, st.Median)
			assert.Equal(t, 0, cs.Stats(contracts.SignalVolume).Count)
			require.Len(t, notes, 1)
			assert.Equal(t, NoteExcludedSecurity, notes[0].Code)
			assert.Equal(t, snap.Securities[0].Security.CUSIP, notes[0].CUSIP)
		})
	}
}

func TestNormalize_RobustZ(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 1, 2, 3, 4, 100), cfg)

	tests := []struct {
		value float64
		want  float64
	}{
		{3, 0},
		{4, 1 / 1.4826 / 3},
		{2, -1 / 1.4826 / 3},
		{100, 1}, // clipped at +3σ
		{-100, -1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.value), func(t *testing.T) {
			got, method := n.Normalize(obs(contracts.SignalRepoSpread, tt.value), cs)
			assert.Equal(t, MethodRobustZ, method)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalize_Direction(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalPriceDivergence, -0.2, -0.1, 0, 0.1, 0.2), cfg)

	// 내부가 > BVAL (양수 괴리) 은 불리
	rich, _ := n.Normalize(obs(contracts.SignalPriceDivergence, 0.2), cs)
	cheap, _ := n.Normalize(obs(contracts.SignalPriceDivergence, -0.2), cs)

	assert.Less(t, rich, 0.0)
	assert.Greater(t, cheap, 0.0)
	assert.InDelta(t, -rich, cheap, 1e-12)
}

func TestNormalize_StdFallbackWhenMADZero(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 5, 5, 5, 5, 9), cfg)

	// mean 5.8, σ 1.6 → z(9) = 2
	got, method := n.Normalize(obs(contracts.SignalRepoSpread, 9), cs)
	assert.Equal(t, MethodStdZ, method)
	assert.InDelta(t, 2.0/3.0, got, 1e-9)
}

func TestNormalize_Flat(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 4, 4, 4), cfg)

	got, method := n.Normalize(obs(contracts.SignalRepoSpread, 4), cs)
	assert.Equal(t, MethodFlat, method)
	assert.Equal(t, 0.0, got)
}

func TestNormalize_FixedBounds(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalRepoSpread, 5), cfg)

	tests := []struct {
		value float64
		want  float64
	}{
		{5, 0},
		{0, -1},
		{10, 1},
		{12, 1},  // clamped
		{-3, -1}, // clamped
		{7.5, 0.5},
	}

	for _, tt := range tests {
		got, method := n.Normalize(obs(contracts.SignalRepoSpread, tt.value), cs)
		assert.Equal(t, MethodFallback, method)
		assert.InDelta(t, tt.want, got, 1e-9, "value %v", tt.value)
	}

	// 방향 -1: 변동성 높을수록 불리
	vol, _ := n.Normalize(obs(contracts.SignalVolatility, 0.75), cs)
	assert.InDelta(t, -0.5, vol, 1e-9)
}

func TestNormalize_Bounded(t *testing.T) {
	cfg := scoringconfig.Default()
	n := NewNormalizer(cfg)
	cs, _ := BuildCrossSection(snapshotOf(contracts.SignalVolume, 1e5, 2e5, 3e5, 4e5, 9e9), cfg)

	for _, v := range []float64{1, 1e5, 3e5, 9e9, 1e12} {
		got, _ := n.Normalize(obs(contracts.SignalVolume, v), cs)
		assert.GreaterOrEqual(t, got, -1.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}
