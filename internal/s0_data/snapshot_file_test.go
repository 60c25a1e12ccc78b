package s0_data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tscore/backend/internal/contracts"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSnapshotFile(t *testing.T) {
	path := writeFile(t, `{
		"as_of": "2026-03-02T21:00:00Z",
		"securities": [
			{
				"security": {"cusip": " 91282cjl6 ", "maturity_date": "2033-11-15T00:00:00Z", "coupon_rate": 0.045},
				"observations": [
					{"kind": "repo_spread", "value": 6.35, "history": [5, 5.5, 6]},
					{"cusip": "91282cjl6", "kind": "volume", "as_of": "2026-03-01T21:00:00Z", "value": 2500000}
				]
			}
		]
	}`)

	snap, err := LoadSnapshotFile(path)
	require.NoError(t, err)
	require.Len(t, snap.Securities, 1)

	asOf := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	sec := snap.Securities[0]
	assert.Equal(t, "91282CJL6", sec.Security.CUSIP)
	require.Len(t, sec.Observations, 2)

	repo := sec.Observations[0]
	assert.Equal(t, "91282CJL6", repo.CUSIP, "empty cusip inherits the security's")
	assert.True(t, repo.AsOf.Equal(asOf), "missing as_of inherits the snapshot's")
	assert.Equal(t, []float64{5, 5.5, 6}, repo.History)

	vol := sec.Observations[1]
	assert.Equal(t, "91282CJL6", vol.CUSIP)
	assert.True(t, vol.AsOf.Equal(asOf.Add(-24*time.Hour)), "explicit as_of is kept")
}

func TestLoadSnapshotFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSnapshotFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		_, err := LoadSnapshotFile(writeFile(t, `{"as_of": `))
		assert.Error(t, err)
	})

	t.Run("missing as_of", func(t *testing.T) {
		_, err := LoadSnapshotFile(writeFile(t, `{"securities": []}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "as_of is required")
	})
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	snap := &contracts.Snapshot{
		AsOf: asOf,
		Securities: []contracts.SecurityObservations{{
			Security: contracts.Security{CUSIP: "91282CJL6"},
			Observations: []contracts.SignalObservation{
				{CUSIP: "91282CJL6", Kind: contracts.SignalVolatility, AsOf: asOf, Value: 0.12},
			},
		}},
	}

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, snap))

	got, err := LoadSnapshotFile(path)
	require.NoError(t, err)
	assert.True(t, got.AsOf.Equal(asOf))
	assert.Equal(t, 0.12, got.Securities[0].Observations[0].Value)
}

func TestStaticSource(t *testing.T) {
	snap := &contracts.Snapshot{AsOf: time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)}

	got, err := NewStaticSource(snap).LoadSnapshot(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Same(t, snap, got)

	_, err = NewStaticSource(nil).LoadSnapshot(context.Background(), time.Now())
	assert.Error(t, err)
}
