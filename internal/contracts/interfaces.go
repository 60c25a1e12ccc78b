package contracts

import (
	"context"
	"time"
)

// SnapshotSource supplies the per-cycle observation set (S0)
// ⭐ SSOT: 관측치 공급 인터페이스
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, asOf time.Time) (*Snapshot, error)
}

// CategoryStore threads previous-cycle categories between cycles
// ⭐ SSOT: 이전 사이클 카테고리 저장/조회 인터페이스
type CategoryStore interface {
	Previous(ctx context.Context, before time.Time) (CategoryMap, error)
	Remember(ctx context.Context, asOf time.Time, categories CategoryMap) error
}
