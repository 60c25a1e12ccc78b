package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/metrics"
	"github.com/wonny/tscore/backend/internal/scheduler"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/config"
	"github.com/wonny/tscore/backend/pkg/logger"
	"github.com/wonny/tscore/backend/pkg/redis"
)

var asOf = time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

type fakeSource struct {
	snap *contracts.Snapshot
	err  error
}

func (f *fakeSource) LoadSnapshot(_ context.Context, _ time.Time) (*contracts.Snapshot, error) {
	return f.snap, f.err
}

type fakeCategories struct {
	previous   contracts.CategoryMap
	remembered contracts.CategoryMap
	rememberAt time.Time
}

func (f *fakeCategories) Previous(_ context.Context, _ time.Time) (contracts.CategoryMap, error) {
	return f.previous, nil
}

func (f *fakeCategories) Remember(_ context.Context, at time.Time, m contracts.CategoryMap) error {
	f.rememberAt = at
	f.remembered = m
	return nil
}

type fakeCycles struct {
	saved *brain.CycleResult
	snap  *scoringconfig.CycleSnapshot
	err   error
}

func (f *fakeCycles) SaveCycle(_ context.Context, r *brain.CycleResult, s *scoringconfig.CycleSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved, f.snap = r, s
	return nil
}

type fakeQuality struct {
	cycleID string
}

func (f *fakeQuality) SaveSnapshot(_ context.Context, id string, _ *contracts.DataQualitySnapshot) error {
	f.cycleID = id
	return nil
}

func universe() *contracts.Snapshot {
	snap := &contracts.Snapshot{AsOf: asOf}
	for i, c := range []string{"91282CJL6", "91282CJK8", "91282CJM4"} {
		sec := contracts.SecurityObservations{
			Security: contracts.Security{CUSIP: c, MaturityDate: asOf.AddDate(5, 0, 0)},
		}
		vals := map[contracts.SignalKind]float64{
			contracts.SignalRepoSpread:      float64(4 + i),
			contracts.SignalPriceDivergence: 0.1 * float64(i),
			contracts.SignalVolume:          1e6 * float64(i+1),
			contracts.SignalVolatility:      0.1 + 0.05*float64(i),
		}
		for _, k := range contracts.AllSignalKinds() {
			sec.Observations = append(sec.Observations, contracts.SignalObservation{
				CUSIP: c, Kind: k, AsOf: asOf, Value: vals[k],
			})
		}
		snap.Securities = append(snap.Securities, sec)
	}
	return snap
}

func testConfig(t *testing.T, yamlBody string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	return &config.Config{
		Scoring: config.ScoringConfig{
			ConfigPath:   path,
			Schedule:     "0 30 18 * * 1-5",
			CycleTimeout: time.Minute,
			LockTTL:      time.Minute,
		},
		MetricsEnabled:  true,
		MetricsTextfile: filepath.Join(dir, "metrics", "tscore.prom"),
	}
}

func disabledLocker(t *testing.T) *redis.Locker {
	t.Helper()
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	return redis.NewLocker(client, "tscore-test")
}

func TestScoringCycleJob_RunCycle(t *testing.T) {
	cfg := testConfig(t, "")
	cats := &fakeCategories{previous: contracts.CategoryMap{"91282CJL6": contracts.CategoryHighRisk}}
	cycles := &fakeCycles{}
	qual := &fakeQuality{}

	job := NewScoringCycleJob(cfg, ScoringCycleDeps{
		Source:     &fakeSource{snap: universe()},
		Categories: cats,
		Cycles:     cycles,
		Quality:    qual,
		Locker:     disabledLocker(t),
		Recorder:   metrics.New(),
		Logger:     logger.Nop(),
	})

	assert.Equal(t, "scoring_cycle", job.Name())
	assert.Equal(t, "0 30 18 * * 1-5", job.Schedule())

	out, err := job.RunCycle(context.Background(), asOf)
	require.NoError(t, err)

	require.NotNil(t, out.Result)
	assert.Len(t, out.Result.Scores, 3)
	assert.Equal(t, 3, out.Quality.ValidSecurities)
	assert.Equal(t, 3, out.Report.Scoreable)

	require.NotNil(t, cycles.saved)
	assert.Equal(t, out.Result.CycleID, cycles.saved.CycleID)
	assert.Equal(t, out.Result.ConfigHash, cycles.snap.ConfigHash)
	assert.Equal(t, out.Result.CycleID, qual.cycleID)

	assert.Equal(t, out.Result.Next, cats.remembered)
	assert.True(t, cats.rememberAt.Equal(asOf))

	data, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tscore_cycles_total{status="success"} 1`)
}

func TestScoringCycleJob_Deterministic(t *testing.T) {
	cfg := testConfig(t, "")
	newJob := func() *ScoringCycleJob {
		return NewScoringCycleJob(cfg, ScoringCycleDeps{
			Source:     &fakeSource{snap: universe()},
			Categories: &fakeCategories{},
		})
	}

	a, err := newJob().RunCycle(context.Background(), asOf)
	require.NoError(t, err)
	b, err := newJob().RunCycle(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, a.Result.CycleID, b.Result.CycleID)
	assert.Equal(t, a.Result.Scores, b.Result.Scores)
}

func TestScoringCycleJob_InvalidConfigIsPermanent(t *testing.T) {
	cfg := testConfig(t, "weights:\n  repo_spred: 1\n")
	cycles := &fakeCycles{}
	rec := metrics.New()

	job := NewScoringCycleJob(cfg, ScoringCycleDeps{
		Source:     &fakeSource{snap: universe()},
		Categories: &fakeCategories{},
		Cycles:     cycles,
		Recorder:   rec,
	})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, scheduler.IsPermanent(err))
	assert.ErrorIs(t, err, scoringconfig.ErrInvalidConfig)
	assert.Nil(t, cycles.saved)

	data, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tscore_cycles_total{status="invalid_config"} 1`)
}

func TestScoringCycleJob_SourceErrorIsRetryable(t *testing.T) {
	cfg := testConfig(t, "")
	job := NewScoringCycleJob(cfg, ScoringCycleDeps{
		Source:     &fakeSource{err: errors.New("db down")},
		Categories: &fakeCategories{},
	})

	_, err := job.RunCycle(context.Background(), asOf)
	require.Error(t, err)
	assert.False(t, scheduler.IsPermanent(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestScoringCycleJob_SaveErrorSkipsRemember(t *testing.T) {
	cfg := testConfig(t, "")
	cats := &fakeCategories{}

	job := NewScoringCycleJob(cfg, ScoringCycleDeps{
		Source:     &fakeSource{snap: universe()},
		Categories: cats,
		Cycles:     &fakeCycles{err: errors.New("tx aborted")},
	})

	_, err := job.RunCycle(context.Background(), asOf)
	require.Error(t, err)
	assert.Nil(t, cats.remembered, "categories are only remembered after commit")
}

func TestScoringCycleJob_DryRunSkipsRemember(t *testing.T) {
	cfg := testConfig(t, "")
	cats := &fakeCategories{}

	job := NewScoringCycleJob(cfg, ScoringCycleDeps{
		Source:     &fakeSource{snap: universe()},
		Categories: cats,
	})

	out, err := job.RunCycle(context.Background(), asOf)
	require.NoError(t, err)
	assert.Len(t, out.Result.Next, 3)
	assert.Nil(t, cats.remembered, "uncommitted cycles never become previous categories")
}
