package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// Repository handles data quality snapshot persistence
// ⭐ SSOT: S0 품질 스냅샷 저장/조회
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot saves a data quality snapshot keyed by cycle
func (r *Repository) SaveSnapshot(ctx context.Context, cycleID string, snapshot *contracts.DataQualitySnapshot) error {
	coverageJSON, err := json.Marshal(snapshot.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	notesJSON, err := json.Marshal(snapshot.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	query := `
		INSERT INTO scoring.data_quality_snapshots (
			cycle_id, as_of, total_securities, valid_securities,
			coverage, quality_score, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id) DO UPDATE SET
			total_securities = EXCLUDED.total_securities,
			valid_securities = EXCLUDED.valid_securities,
			coverage = EXCLUDED.coverage,
			quality_score = EXCLUDED.quality_score,
			notes = EXCLUDED.notes
	`

	_, err = r.pool.Exec(ctx, query,
		cycleID,
		snapshot.AsOf,
		snapshot.TotalSecurities,
		snapshot.ValidSecurities,
		coverageJSON,
		snapshot.QualityScore,
		notesJSON,
	)
	if err != nil {
		return fmt.Errorf("save quality snapshot: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent quality snapshot
func (r *Repository) GetLatest(ctx context.Context) (*contracts.DataQualitySnapshot, error) {
	query := `
		SELECT as_of, total_securities, valid_securities, coverage, quality_score, notes
		FROM scoring.data_quality_snapshots
		ORDER BY as_of DESC
		LIMIT 1
	`

	snapshot := &contracts.DataQualitySnapshot{}
	var coverageJSON, notesJSON []byte

	err := r.pool.QueryRow(ctx, query).Scan(
		&snapshot.AsOf,
		&snapshot.TotalSecurities,
		&snapshot.ValidSecurities,
		&coverageJSON,
		&snapshot.QualityScore,
		&notesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("get latest quality snapshot: %w", err)
	}

	if err := json.Unmarshal(coverageJSON, &snapshot.Coverage); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &snapshot.Notes); err != nil {
			return nil, fmt.Errorf("unmarshal notes: %w", err)
		}
	}

	return snapshot, nil
}

// PruneBefore deletes quality snapshots with as_of before cutoff
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scoring.data_quality_snapshots WHERE as_of < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune quality snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
