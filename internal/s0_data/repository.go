package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// Repository reads and writes market observations
// ⭐ SSOT: 관측치 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool

	lookback     time.Duration // as_of 기준 조회 구간
	historyDepth int           // 현재값 제외 이력 개수
}

var _ contracts.SnapshotSource = (*Repository)(nil)

// NewRepository creates a new observation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:         pool,
		lookback:     30 * 24 * time.Hour,
		historyDepth: 20,
	}
}

// WithHistory overrides the lookback window and history depth
func (r *Repository) WithHistory(lookback time.Duration, depth int) *Repository {
	r.lookback = lookback
	r.historyDepth = depth
	return r
}

// LoadSnapshot builds the point-in-time snapshot at asOf.
// Per (security, kind) the newest observation at or before asOf is the
// current value; older ones inside the lookback form History, oldest first.
// Active securities without observations are included with none.
func (r *Repository) LoadSnapshot(ctx context.Context, asOf time.Time) (*contracts.Snapshot, error) {
	secQuery := `
		SELECT cusip, maturity_date, coupon_rate
		FROM market.securities
		WHERE active AND maturity_date > $1
		ORDER BY cusip
	`

	rows, err := r.pool.Query(ctx, secQuery, asOf)
	if err != nil {
		return nil, fmt.Errorf("query securities: %w", err)
	}

	snap := &contracts.Snapshot{AsOf: asOf}
	index := make(map[string]int)
	for rows.Next() {
		var s contracts.Security
		if err := rows.Scan(&s.CUSIP, &s.MaturityDate, &s.CouponRate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan security: %w", err)
		}
		s.CUSIP = contracts.NormalizeCUSIP(s.CUSIP)
		index[s.CUSIP] = len(snap.Securities)
		snap.Securities = append(snap.Securities, contracts.SecurityObservations{Security: s})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate securities: %w", err)
	}

	obsQuery := `
		SELECT cusip, kind, observed_at, value
		FROM (
			SELECT o.cusip, o.kind, o.observed_at, o.value,
				ROW_NUMBER() OVER (PARTITION BY o.cusip, o.kind ORDER BY o.observed_at DESC) AS rn
			FROM market.signal_observations o
			WHERE o.observed_at <= $1 AND o.observed_at > $2
		) t
		WHERE rn <= $3
		ORDER BY cusip, kind, observed_at ASC
	`

	rows, err = r.pool.Query(ctx, obsQuery, asOf, asOf.Add(-r.lookback), r.historyDepth+1)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	// (cusip, kind) 그룹 내 오름차순 → 마지막 행이 현재값
	var cur *contracts.SignalObservation
	flush := func() {
		if cur == nil {
			return
		}
		if i, ok := index[cur.CUSIP]; ok {
			snap.Securities[i].Observations = append(snap.Securities[i].Observations, *cur)
		}
		cur = nil
	}

	for rows.Next() {
		var (
			cusip, kind string
			observedAt  time.Time
			value       float64
		)
		if err := rows.Scan(&cusip, &kind, &observedAt, &value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		cusip = contracts.NormalizeCUSIP(cusip)

		if cur != nil && cur.CUSIP == cusip && string(cur.Kind) == kind {
			cur.History = append(cur.History, cur.Value)
			cur.Value = value
			cur.AsOf = observedAt
			continue
		}

		flush()
		cur = &contracts.SignalObservation{
			CUSIP: cusip,
			Kind:  contracts.SignalKind(kind),
			AsOf:  observedAt,
			Value: value,
		}
	}
	flush()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return snap, nil
}

// SaveSnapshot upserts securities and observations (import / replay seeding).
// History values are not stored; only each observation's current value.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *contracts.Snapshot) error {
	if snap == nil || len(snap.Securities) == 0 {
		return nil
	}

	secQuery := `
		INSERT INTO market.securities (cusip, maturity_date, coupon_rate, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (cusip) DO UPDATE SET
			maturity_date = EXCLUDED.maturity_date,
			coupon_rate = EXCLUDED.coupon_rate,
			active = TRUE
	`
	obsQuery := `
		INSERT INTO market.signal_observations (cusip, kind, observed_at, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cusip, kind, observed_at) DO UPDATE SET
			value = EXCLUDED.value
	`

	// Batch insert using transactions
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sec := range snap.Securities {
		s := sec.Security
		if _, err := tx.Exec(ctx, secQuery, s.CUSIP, s.MaturityDate, s.CouponRate); err != nil {
			return fmt.Errorf("upsert security %s: %w", s.CUSIP, err)
		}
		for _, obs := range sec.Observations {
			if err := obs.Check(); err != nil {
				return fmt.Errorf("observation for %s: %w", s.CUSIP, err)
			}
			if _, err := tx.Exec(ctx, obsQuery, s.CUSIP, string(obs.Kind), obs.AsOf, obs.Value); err != nil {
				return fmt.Errorf("upsert %s %s: %w", s.CUSIP, obs.Kind, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
