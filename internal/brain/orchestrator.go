package brain

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/s1_normalize"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/logger"
)

// ErrCycleTimeout is returned when a cycle misses its deadline.
// The late result is discarded; nothing from it may be committed.
var ErrCycleTimeout = errors.New("scoring cycle exceeded deadline")

// cycleNamespace seeds deterministic cycle IDs (UUIDv5)
var cycleNamespace = uuid.MustParse("3b0c7f4e-2d61-4c8a-9f35-6a1e0d9b52c7")

// Note code for repeated securities in one snapshot
const NoteDuplicateSecurity = "DUPLICATE_SECURITY"

// CycleInput is everything one batch cycle consumes
type CycleInput struct {
	Snapshot *contracts.Snapshot
	Previous contracts.CategoryMap // 이전 사이클 등급 (없으면 nil)
}

// CycleStats summarizes a cycle's output
type CycleStats struct {
	Total         int `json:"total"`
	Scoreable     int `json:"scoreable"`
	Unscoreable   int `json:"unscoreable"`
	LowConfidence int `json:"low_confidence"`
}

// CycleResult holds the results of one scoring cycle
type CycleResult struct {
	CycleID    string
	AsOf       time.Time
	ConfigHash string
	Scores     []contracts.CompositeScore // CUSIP 오름차순
	Next       contracts.CategoryMap      // 다음 사이클의 Previous
	Notes      []contracts.DataQualityNote
	Stats      CycleStats
	Duration   time.Duration
}

// scoreFunc scores one security against the shared cycle state
type scoreFunc func(sec contracts.SecurityObservations, cs *s1_normalize.CrossSection, prev contracts.CategoryMap) contracts.CompositeScore

// Orchestrator coordinates S1 → S5 for one batch cycle
// ⭐ SSOT: 스코어링 사이클 조율은 여기서만
type Orchestrator struct {
	logger *logger.Logger

	// 테스트에서 교체 가능 (nil = 기본 파이프라인)
	scoreOverride scoreFunc
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{logger: log}
}

// CycleID derives the deterministic ID of a cycle from its as-of time and
// configuration hash. Same inputs → same ID.
func CycleID(asOf time.Time, configHash string) string {
	name := asOf.UTC().Format(time.RFC3339Nano) + "|" + configHash
	return uuid.NewSHA1(cycleNamespace, []byte(name)).String()
}

// Run executes one scoring cycle.
// The only error is an invalid configuration (wraps scoringconfig.ErrInvalidConfig);
// every per-security fault becomes an unscoreable record instead.
func (o *Orchestrator) Run(ctx context.Context, in CycleInput, cfg *scoringconfig.Config) (*CycleResult, error) {
	startTime := time.Now()

	// 1. 설정 검증 (유일한 치명적 오류)
	if err := scoringconfig.Validate(cfg); err != nil {
		o.logger.WithError(err).Error("Scoring config rejected")
		return nil, fmt.Errorf("validate scoring config: %w", err)
	}
	hash, err := scoringconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: hash: %v", scoringconfig.ErrInvalidConfig, err)
	}

	snapshot := in.Snapshot
	if snapshot == nil {
		snapshot = &contracts.Snapshot{}
	}

	result := &CycleResult{
		CycleID:    CycleID(snapshot.AsOf, hash),
		AsOf:       snapshot.AsOf,
		ConfigHash: hash,
	}
	log := o.logger.WithCycle(result.CycleID)

	log.WithFields(map[string]interface{}{
		"as_of":      snapshot.AsOf.Format(time.RFC3339),
		"securities": snapshot.Count(),
		"config_id":  cfg.Meta.ConfigID,
		"workers":    cfg.Engine.Workers,
	}).Info("Starting scoring cycle")

	// 2. 종목 정렬 + 중복 제거 → 출력 순서 고정
	securities, dupNotes := uniqueSecurities(snapshot.Securities)
	result.Notes = append(result.Notes, dupNotes...)

	// 3. 횡단면 통계 (동기화 지점: 모든 워커 시작 전 완료)
	cs, notes := s1_normalize.BuildCrossSection(&contracts.Snapshot{AsOf: snapshot.AsOf, Securities: securities}, cfg)
	result.Notes = append(result.Notes, notes...)
	for _, n := range result.Notes {
		log.WithFields(map[string]interface{}{
			"code":  n.Code,
			"kind":  n.Kind,
			"cusip": n.CUSIP,
		}).Warn(n.Message)
	}

	// 4. 종목별 스코어링 (bounded worker pool, 슬롯별 단독 쓰기)
	score := o.scoreOverride
	if score == nil {
		score = newPipeline(cfg, snapshot.AsOf).score
	}

	scores := make([]contracts.CompositeScore, len(securities))
	var g errgroup.Group
	g.SetLimit(cfg.Engine.Workers)

	for i := range securities {
		i := i
		g.Go(func() error {
			scores[i] = o.scoreIsolated(log, score, securities[i], cs, in.Previous, snapshot.AsOf)
			return nil
		})
	}
	_ = g.Wait() // 워커는 에러를 반환하지 않음

	// 5. 결과 조립
	result.Scores = scores
	result.Next = contracts.CategoriesOf(scores)
	result.Stats = summarize(scores)
	result.Duration = time.Since(startTime)

	log.WithFields(map[string]interface{}{
		"total":          result.Stats.Total,
		"scoreable":      result.Stats.Scoreable,
		"unscoreable":    result.Stats.Unscoreable,
		"low_confidence": result.Stats.LowConfidence,
		"duration":       result.Duration.String(),
	}).Info("Scoring cycle completed")

	return result, nil
}

// RunWithDeadline runs a cycle and gives up after timeout.
// On timeout it returns ErrCycleTimeout and the eventual result is dropped.
func (o *Orchestrator) RunWithDeadline(ctx context.Context, in CycleInput, cfg *scoringconfig.Config, timeout time.Duration) (*CycleResult, error) {
	type outcome struct {
		result *CycleResult
		err    error
	}

	done := make(chan outcome, 1) // 타임아웃 후에도 고루틴이 막히지 않도록 버퍼 1
	go func() {
		res, err := o.Run(ctx, in, cfg)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		o.logger.WithField("timeout", timeout.String()).Error("Scoring cycle timed out, result discarded")
		return nil, fmt.Errorf("%w (%s)", ErrCycleTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// scoreIsolated runs score for one security and converts a panic into
// an INTERNAL_ERROR record so the rest of the cycle is unaffected
func (o *Orchestrator) scoreIsolated(
	log *logger.Logger,
	score scoreFunc,
	sec contracts.SecurityObservations,
	cs *s1_normalize.CrossSection,
	prev contracts.CategoryMap,
	asOf time.Time,
) (out contracts.CompositeScore) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"cusip": sec.Security.CUSIP,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Security scoring panicked")
			out = contracts.Unscoreable(sec.Security.CUSIP, asOf, contracts.ReasonInternalError, fmt.Sprint(r))
		}
	}()

	out = score(sec, cs, prev)
	if !out.Scoreable {
		log.WithFields(map[string]interface{}{
			"cusip":  out.CUSIP,
			"reason": out.Reason,
			"detail": out.Detail,
		}).Warn("Security unscoreable")
	}
	return out
}

// uniqueSecurities sorts by CUSIP and keeps the first entry per CUSIP
func uniqueSecurities(in []contracts.SecurityObservations) ([]contracts.SecurityObservations, []contracts.DataQualityNote) {
	sorted := make([]contracts.SecurityObservations, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Security.CUSIP < sorted[j].Security.CUSIP
	})

	var notes []contracts.DataQualityNote
	out := make([]contracts.SecurityObservations, 0, len(sorted))
	for _, sec := range sorted {
		if len(out) > 0 && sec.Security.CUSIP == out[len(out)-1].Security.CUSIP {
			notes = append(notes, contracts.DataQualityNote{
				CUSIP:   sec.Security.CUSIP,
				Code:    NoteDuplicateSecurity,
				Message: "security listed more than once, keeping first entry",
			})
			continue
		}
		out = append(out, sec)
	}
	return out, notes
}

func summarize(scores []contracts.CompositeScore) CycleStats {
	st := CycleStats{Total: len(scores)}
	for _, s := range scores {
		switch {
		case !s.Scoreable:
			st.Unscoreable++
		case s.Reason == contracts.ReasonLowConfidence:
			st.Scoreable++
			st.LowConfidence++
		default:
			st.Scoreable++
		}
	}
	return st
}
