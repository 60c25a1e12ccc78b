package s0_data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// LoadSnapshotFile reads a JSON observation snapshot (CLI / replay input).
// CUSIPs are upper-cased; an observation without as_of inherits the snapshot's.
func LoadSnapshotFile(path string) (*contracts.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap contracts.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.AsOf.IsZero() {
		return nil, fmt.Errorf("snapshot %s: as_of is required", path)
	}

	Normalize(&snap)
	return &snap, nil
}

// Normalize canonicalizes identifiers in place
func Normalize(snap *contracts.Snapshot) {
	for i := range snap.Securities {
		sec := &snap.Securities[i]
		sec.Security.CUSIP = contracts.NormalizeCUSIP(sec.Security.CUSIP)

		for j := range sec.Observations {
			obs := &sec.Observations[j]
			if obs.CUSIP == "" {
				obs.CUSIP = sec.Security.CUSIP
			} else {
				obs.CUSIP = contracts.NormalizeCUSIP(obs.CUSIP)
			}
			if obs.AsOf.IsZero() {
				obs.AsOf = snap.AsOf
			}
		}
	}
}

// WriteJSON writes v as indented JSON (snapshot export, score output)
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// StaticSource serves one already-loaded snapshot (file replay).
// The snapshot's own as_of is used as the cycle time.
type StaticSource struct {
	snap *contracts.Snapshot
}

var _ contracts.SnapshotSource = (*StaticSource)(nil)

// NewStaticSource wraps a loaded snapshot as a SnapshotSource
func NewStaticSource(snap *contracts.Snapshot) *StaticSource {
	return &StaticSource{snap: snap}
}

// LoadSnapshot returns the wrapped snapshot; asOf is ignored
func (s *StaticSource) LoadSnapshot(_ context.Context, _ time.Time) (*contracts.Snapshot, error) {
	if s.snap == nil {
		return nil, fmt.Errorf("static source: no snapshot loaded")
	}
	return s.snap, nil
}
