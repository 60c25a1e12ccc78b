package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// ErrCycleNotFound is returned when a cycle ID has no stored record
var ErrCycleNotFound = errors.New("cycle not found")

// CycleRecord is the stored header of one committed cycle
type CycleRecord struct {
	CycleID        string        `json:"cycle_id"`
	AsOf           time.Time     `json:"as_of"`
	ConfigHash     string        `json:"config_hash"`
	ConfigYAML     string        `json:"config_yaml,omitempty"`
	TotalCount     int           `json:"total_count"`
	ScoreableCount int           `json:"scoreable_count"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Repository handles score persistence
// ⭐ SSOT: 사이클/점수 저장·조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new score repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveCycle commits a cycle header and all its scores in one transaction.
// Re-saving the same cycle ID replaces the previous rows.
func (r *Repository) SaveCycle(ctx context.Context, result *brain.CycleResult, snapshot *scoringconfig.CycleSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	configYAML := ""
	if snapshot != nil {
		configYAML = snapshot.ConfigYAML
	}

	cycleQuery := `
		INSERT INTO scoring.cycles (
			cycle_id, as_of, config_hash, config_yaml,
			total_count, scoreable_count, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id) DO UPDATE SET
			config_yaml = EXCLUDED.config_yaml,
			total_count = EXCLUDED.total_count,
			scoreable_count = EXCLUDED.scoreable_count,
			duration_ms = EXCLUDED.duration_ms,
			created_at = NOW()
	`

	_, err = tx.Exec(ctx, cycleQuery,
		result.CycleID, result.AsOf, result.ConfigHash, configYAML,
		result.Stats.Total, result.Stats.Scoreable, result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM scoring.composite_scores WHERE cycle_id = $1`, result.CycleID); err != nil {
		return fmt.Errorf("failed to clear previous scores: %w", err)
	}

	scoreQuery := `
		INSERT INTO scoring.composite_scores (
			cycle_id, cusip, as_of, composite, confidence, category, trend_bonus,
			scoreable, reason, detail, sub_scores, effective_weights, raw_values
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	batch := &pgx.Batch{}
	for _, s := range result.Scores {
		subJSON, weightJSON, rawJSON, err := marshalExplain(s)
		if err != nil {
			return fmt.Errorf("cusip %s: %w", s.CUSIP, err)
		}

		batch.Queue(scoreQuery,
			result.CycleID, s.CUSIP, s.AsOf, s.Composite, s.Confidence, string(s.Category), s.TrendBonus,
			s.Scoreable, string(s.Reason), s.Detail, subJSON, weightJSON, rawJSON,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to save score %s: %w", result.Scores[i].CUSIP, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to flush scores: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}

	return nil
}

// marshalExplain encodes the explainability maps (nil stays SQL NULL)
func marshalExplain(s contracts.CompositeScore) ([]byte, []byte, []byte, error) {
	enc := func(m map[contracts.SignalKind]float64) ([]byte, error) {
		if m == nil {
			return nil, nil
		}
		return json.Marshal(m)
	}

	sub, err := enc(s.SubScores)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal sub scores: %w", err)
	}
	weights, err := enc(s.EffectiveWeights)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal effective weights: %w", err)
	}
	raw, err := enc(s.RawValues)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal raw values: %w", err)
	}
	return sub, weights, raw, nil
}

// LoadPreviousCategories returns the category map of the latest cycle
// strictly before the given time. An empty map means no prior cycle.
func (r *Repository) LoadPreviousCategories(ctx context.Context, before time.Time) (contracts.CategoryMap, error) {
	query := `
		SELECT s.cusip, s.category
		FROM scoring.composite_scores s
		JOIN (
			SELECT cycle_id
			FROM scoring.cycles
			WHERE as_of < $1
			ORDER BY as_of DESC, created_at DESC
			LIMIT 1
		) c ON c.cycle_id = s.cycle_id
	`

	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous categories: %w", err)
	}
	defer rows.Close()

	out := make(contracts.CategoryMap)
	for rows.Next() {
		var cusip, category string
		if err := rows.Scan(&cusip, &category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out[contracts.NormalizeCUSIP(cusip)] = contracts.RiskCategory(category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// GetCycle retrieves one cycle header
func (r *Repository) GetCycle(ctx context.Context, cycleID string) (*CycleRecord, error) {
	query := `
		SELECT cycle_id::text, as_of, config_hash, config_yaml,
			total_count, scoreable_count, duration_ms, created_at
		FROM scoring.cycles
		WHERE cycle_id = $1
	`

	var rec CycleRecord
	var durationMs int64

	err := r.pool.QueryRow(ctx, query, cycleID).Scan(
		&rec.CycleID, &rec.AsOf, &rec.ConfigHash, &rec.ConfigYAML,
		&rec.TotalCount, &rec.ScoreableCount, &durationMs, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCycleNotFound, cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}

	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

// ListCycles returns the most recent cycle headers, newest first
func (r *Repository) ListCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	query := `
		SELECT cycle_id::text, as_of, config_hash,
			total_count, scoreable_count, duration_ms, created_at
		FROM scoring.cycles
		ORDER BY as_of DESC, created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]CycleRecord, 0, limit)
	for rows.Next() {
		var rec CycleRecord
		var durationMs int64
		if err := rows.Scan(
			&rec.CycleID, &rec.AsOf, &rec.ConfigHash,
			&rec.TotalCount, &rec.ScoreableCount, &durationMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		cycles = append(cycles, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return cycles, nil
}

// GetScores retrieves all scores of one cycle, ordered by CUSIP
func (r *Repository) GetScores(ctx context.Context, cycleID string) ([]contracts.CompositeScore, error) {
	query := `
		SELECT cusip, as_of, composite, confidence, category, trend_bonus,
			scoreable, reason, detail, sub_scores, effective_weights, raw_values
		FROM scoring.composite_scores
		WHERE cycle_id = $1
		ORDER BY cusip
	`

	rows, err := r.pool.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make([]contracts.CompositeScore, 0)
	for rows.Next() {
		var (
			s                            contracts.CompositeScore
			category, reason             string
			subJSON, weightJSON, rawJSON []byte
		)
		if err := rows.Scan(
			&s.CUSIP, &s.AsOf, &s.Composite, &s.Confidence, &category, &s.TrendBonus,
			&s.Scoreable, &reason, &s.Detail, &subJSON, &weightJSON, &rawJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		s.CUSIP = contracts.NormalizeCUSIP(s.CUSIP)
		s.Category = contracts.RiskCategory(category)
		s.Reason = contracts.ReasonCode(reason)

		for _, f := range []struct {
			data []byte
			dest *map[contracts.SignalKind]float64
		}{
			{subJSON, &s.SubScores},
			{weightJSON, &s.EffectiveWeights},
			{rawJSON, &s.RawValues},
		} {
			if len(f.data) == 0 {
				continue
			}
			if err := json.Unmarshal(f.data, f.dest); err != nil {
				return nil, fmt.Errorf("failed to unmarshal explain data for %s: %w", s.CUSIP, err)
			}
		}

		scores = append(scores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return scores, nil
}

// PruneBefore deletes cycles (and their scores) with as_of before cutoff
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scoring.cycles WHERE as_of < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cycles: %w", err)
	}
	return tag.RowsAffected(), nil
}
