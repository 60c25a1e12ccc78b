package audit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/config"
	"github.com/wonny/tscore/backend/pkg/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, &config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1}})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func TestRepository_SaveCycleAndLoad(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.Pool)
	ctx := context.Background()

	cycleAsOf := time.Now().UTC().Truncate(time.Second).AddDate(10, 0, 0)
	result := &brain.CycleResult{
		CycleID:    brain.CycleID(cycleAsOf, "test-hash"),
		AsOf:       cycleAsOf,
		ConfigHash: "test-hash",
		Scores: []contracts.CompositeScore{
			{
				CUSIP: "AAAAAAAA1", AsOf: cycleAsOf, Composite: 58, Confidence: 0.5,
				Category: contracts.CategoryNeutral, Scoreable: true,
				SubScores:        map[contracts.SignalKind]float64{contracts.SignalRepoSpread: 0.4},
				EffectiveWeights: map[contracts.SignalKind]float64{contracts.SignalRepoSpread: 1},
				RawValues:        map[contracts.SignalKind]float64{contracts.SignalRepoSpread: 6.35},
			},
			contracts.Unscoreable("AAAAAAAA2", cycleAsOf, contracts.ReasonNoSignals, "no observations"),
			// 잘못된 식별자도 그대로 보관
			contracts.Unscoreable("AAAAAAAA3XX", cycleAsOf, contracts.ReasonMalformedObservation, "invalid CUSIP"),
		},
		Stats:    brain.CycleStats{Total: 3, Scoreable: 1, Unscoreable: 2},
		Duration: 1500 * time.Millisecond,
	}
	snap, err := scoringconfig.NewCycleSnapshot(scoringconfig.Default(), []byte("meta: {}\n"))
	require.NoError(t, err)

	require.NoError(t, repo.SaveCycle(ctx, result, snap))
	// 같은 사이클 재저장은 덮어쓰기
	require.NoError(t, repo.SaveCycle(ctx, result, snap))

	rec, err := repo.GetCycle(ctx, result.CycleID)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.TotalCount)
	assert.Equal(t, 1, rec.ScoreableCount)
	assert.Equal(t, 1500*time.Millisecond, rec.Duration)

	scores, err := repo.GetScores(ctx, result.CycleID)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, 6.35, scores[0].RawValues[contracts.SignalRepoSpread])
	assert.Equal(t, "AAAAAAAA1", scores[0].CUSIP)
	assert.Equal(t, contracts.ReasonNoSignals, scores[1].Reason)
	assert.Nil(t, scores[1].SubScores)
	assert.Equal(t, "AAAAAAAA3XX", scores[2].CUSIP)
	assert.Equal(t, contracts.ReasonMalformedObservation, scores[2].Reason)

	prev, err := repo.LoadPreviousCategories(ctx, cycleAsOf.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, contracts.CategoryNeutral, prev["AAAAAAAA1"])
	assert.Equal(t, contracts.CategoryInsufficientData, prev["AAAAAAAA2"])
	assert.Equal(t, contracts.CategoryInsufficientData, prev["AAAAAAAA3XX"])

	_, err = db.Pool.Exec(ctx, `DELETE FROM scoring.cycles WHERE cycle_id = $1`, result.CycleID)
	require.NoError(t, err)
}

func TestRepository_GetCycleNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.Pool)

	_, err := repo.GetCycle(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleNotFound))
}
