package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/logger"
)

// daySource serves a snapshot per date; repo spread drifts with the day
type daySource struct {
	missing map[string]bool
}

func (d *daySource) LoadSnapshot(_ context.Context, asOf time.Time) (*contracts.Snapshot, error) {
	if d.missing[asOf.Format("2006-01-02")] {
		return nil, errors.New("no observations")
	}

	snap := &contracts.Snapshot{AsOf: asOf}
	drift := float64(asOf.Day())
	for i, c := range []string{"91282CJL6", "91282CJK8", "91282CJM4"} {
		vals := map[contracts.SignalKind]float64{
			contracts.SignalRepoSpread:      float64(i) + drift*0.1,
			contracts.SignalPriceDivergence: 0.05 * float64(i),
			contracts.SignalVolume:          1e6 * float64(i+1),
			contracts.SignalVolatility:      0.2,
		}
		sec := contracts.SecurityObservations{Security: contracts.Security{CUSIP: c, MaturityDate: asOf.AddDate(5, 0, 0)}}
		for _, k := range contracts.AllSignalKinds() {
			sec.Observations = append(sec.Observations, contracts.SignalObservation{CUSIP: c, Kind: k, AsOf: asOf, Value: vals[k]})
		}
		snap.Securities = append(snap.Securities, sec)
	}
	return snap, nil
}

func TestEngine_Run(t *testing.T) {
	// 2026-03-02 (월) ~ 2026-03-08 (일)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	src := &daySource{missing: map[string]bool{"2026-03-04": true}}

	res, err := NewEngine(src, logger.Nop()).Run(context.Background(), Config{
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, 6),
		CycleOffset:  18*time.Hour + 30*time.Minute,
		SkipWeekends: true,
	}, scoringconfig.Default())
	require.NoError(t, err)

	assert.Len(t, res.Days, 5, "weekdays only")
	assert.Equal(t, 4, res.Cycles)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.Days[2].Error)
	assert.Equal(t, 18, res.Days[0].AsOf.Hour())

	assert.GreaterOrEqual(t, res.Stability, 0.0)
	assert.LessOrEqual(t, res.Stability, 1.0)
	assert.Len(t, res.Final, 3)
	assert.Greater(t, res.MeanComposite, 0.0)
}

func TestEngine_Run_Deterministic(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg := Config{StartDate: start, EndDate: start.AddDate(0, 0, 3), CycleOffset: 18 * time.Hour}

	a, err := NewEngine(&daySource{}, nil).Run(context.Background(), cfg, scoringconfig.Default())
	require.NoError(t, err)
	b, err := NewEngine(&daySource{}, nil).Run(context.Background(), cfg, scoringconfig.Default())
	require.NoError(t, err)

	assert.Equal(t, a.Final, b.Final)
	assert.Equal(t, a.Stability, b.Stability)
	for i := range a.Days {
		assert.Equal(t, a.Days[i].Report.CycleID, b.Days[i].Report.CycleID)
	}
}

func TestEngine_Run_InvalidConfigAborts(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg := scoringconfig.Default()
	cfg.Weights = scoringconfig.SignalWeights{}

	_, err := NewEngine(&daySource{}, nil).Run(context.Background(), Config{StartDate: start, EndDate: start}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, scoringconfig.ErrInvalidConfig)
}

func TestEngine_Run_BadWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := NewEngine(&daySource{}, nil).Run(context.Background(), Config{StartDate: start, EndDate: start.AddDate(0, 0, -1)}, scoringconfig.Default())
	assert.Error(t, err)
}

func TestEngine_Run_InitialCategories(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	initial := contracts.CategoryMap{"91282CJL6": contracts.CategoryFavorable}

	res, err := NewEngine(&daySource{}, nil).Run(context.Background(), Config{
		StartDate: start, EndDate: start, CycleOffset: 18 * time.Hour, Initial: initial,
	}, scoringconfig.Default())
	require.NoError(t, err)

	require.Len(t, res.Days, 1)
	assert.Equal(t, 1, res.Cycles)
	assert.Equal(t, 3, res.Days[0].Report.Total)
	// 이전 등급이 있는 종목만 이동 대상
	assert.LessOrEqual(t, len(res.Days[0].Report.Migrations), 1)
}
