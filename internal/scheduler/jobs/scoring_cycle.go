package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tscore/backend/internal/audit"
	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/metrics"
	"github.com/wonny/tscore/backend/internal/s0_data/quality"
	"github.com/wonny/tscore/backend/internal/scheduler"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/config"
	"github.com/wonny/tscore/backend/pkg/logger"
	"github.com/wonny/tscore/backend/pkg/redis"
)

// CycleStore persists a committed cycle
type CycleStore interface {
	SaveCycle(ctx context.Context, result *brain.CycleResult, snapshot *scoringconfig.CycleSnapshot) error
}

// QualityStore persists the pre-cycle data quality snapshot
type QualityStore interface {
	SaveSnapshot(ctx context.Context, cycleID string, snapshot *contracts.DataQualitySnapshot) error
}

// ScoringCycleDeps wires the job's collaborators.
// Only Source and Categories are required; nil stores skip persistence.
// Without Cycles the run is a dry run and Categories is only read.
type ScoringCycleDeps struct {
	Source     contracts.SnapshotSource
	Categories contracts.CategoryStore
	Cycles     CycleStore
	Quality    QualityStore
	Locker     *redis.Locker
	Recorder   *metrics.Recorder
	Logger     *logger.Logger
}

// CycleOutcome is everything one cycle produced
type CycleOutcome struct {
	Result   *brain.CycleResult
	Quality  *contracts.DataQualitySnapshot
	Report   *audit.CycleReport
	Snapshot *scoringconfig.CycleSnapshot
}

// ScoringCycleJob runs the batch scoring cycle
// Schedule: weekdays 6:30 PM (after end-of-day observations land)
type ScoringCycleJob struct {
	schedule   string
	configPath string
	timeout    time.Duration
	lockTTL    time.Duration
	textfile   string // 빈 값 = 메트릭 파일 미작성

	deps         ScoringCycleDeps
	orchestrator *brain.Orchestrator
	gate         *quality.Gate
	reporter     *audit.Reporter
	logger       *logger.Logger
	clock        func() time.Time
}

// NewScoringCycleJob creates a new scoring cycle job
func NewScoringCycleJob(cfg *config.Config, deps ScoringCycleDeps) *ScoringCycleJob {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	textfile := ""
	if cfg.MetricsEnabled {
		textfile = cfg.MetricsTextfile
	}

	return &ScoringCycleJob{
		schedule:     cfg.Scoring.Schedule,
		configPath:   cfg.Scoring.ConfigPath,
		timeout:      cfg.Scoring.CycleTimeout,
		lockTTL:      cfg.Scoring.LockTTL,
		textfile:     textfile,
		deps:         deps,
		orchestrator: brain.NewOrchestrator(log),
		gate:         quality.NewGate(0),
		reporter:     audit.NewReporter(log.Zerolog()),
		logger:       log,
		clock:        time.Now,
	}
}

// Name returns the job name
func (j *ScoringCycleJob) Name() string {
	return "scoring_cycle"
}

// Schedule returns the cron schedule
func (j *ScoringCycleJob) Schedule() string {
	return j.schedule
}

// Run executes one cycle as of now
func (j *ScoringCycleJob) Run(ctx context.Context) error {
	_, err := j.RunCycle(ctx, j.clock().UTC())
	return err
}

// RunCycle executes one cycle as of asOf:
// config → lock → snapshot → quality → previous → score → persist → metrics.
// Nothing is committed unless the cycle completes inside the deadline.
func (j *ScoringCycleJob) RunCycle(ctx context.Context, asOf time.Time) (*CycleOutcome, error) {
	log := j.logger.WithField("as_of", asOf.Format(time.RFC3339))

	// ===== 1. Scoring config =====
	cfg, raw, err := scoringconfig.Load(j.configPath)
	if err != nil {
		j.recordFailure(metrics.StatusInvalidConfig)
		return nil, scheduler.Permanent(fmt.Errorf("load scoring config: %w", err))
	}
	for _, w := range scoringconfig.Warn(cfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	// ===== 2. Cycle lock =====
	if j.deps.Locker != nil {
		lock, err := j.deps.Locker.Acquire(ctx, redis.CycleLockKey(asOf), j.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			j.recordFailure(metrics.StatusSkipped)
			return nil, fmt.Errorf("%w: %v", scheduler.ErrSkipped, err)
		}
		if err != nil {
			j.recordFailure(metrics.StatusError)
			return nil, fmt.Errorf("acquire cycle lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release cycle lock")
			}
		}()
	}

	// ===== 3. Snapshot + quality =====
	snap, err := j.deps.Source.LoadSnapshot(ctx, asOf)
	if err != nil {
		j.recordFailure(metrics.StatusError)
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	q := j.gate.Check(snap)
	for _, n := range q.Notes {
		log.WithFields(map[string]interface{}{
			"code":  n.Code,
			"kind":  n.Kind,
			"cusip": n.CUSIP,
		}).Warn(n.Message)
	}
	if j.deps.Recorder != nil {
		j.deps.Recorder.RecordCoverage(q)
	}

	// ===== 4. Previous categories =====
	previous, err := j.deps.Categories.Previous(ctx, snap.AsOf)
	if err != nil {
		j.recordFailure(metrics.StatusError)
		return nil, fmt.Errorf("load previous categories: %w", err)
	}

	// ===== 5. Score =====
	result, err := j.orchestrator.RunWithDeadline(ctx, brain.CycleInput{Snapshot: snap, Previous: previous}, cfg, j.timeout)
	switch {
	case errors.Is(err, scoringconfig.ErrInvalidConfig):
		j.recordFailure(metrics.StatusInvalidConfig)
		return nil, scheduler.Permanent(err)
	case errors.Is(err, brain.ErrCycleTimeout):
		j.recordFailure(metrics.StatusTimeout)
		return nil, err
	case err != nil:
		j.recordFailure(metrics.StatusError)
		return nil, fmt.Errorf("run cycle: %w", err)
	}

	cycleSnap, err := scoringconfig.NewCycleSnapshot(cfg, raw)
	if err != nil {
		j.recordFailure(metrics.StatusError)
		return nil, fmt.Errorf("snapshot scoring config: %w", err)
	}

	// ===== 6. Persist =====
	// ⭐ SSOT: 저장된 사이클만 다음 사이클의 이전 등급이 된다
	committed := false
	if j.deps.Cycles != nil {
		if err := j.deps.Cycles.SaveCycle(ctx, result, cycleSnap); err != nil {
			j.recordFailure(metrics.StatusError)
			return nil, fmt.Errorf("save cycle: %w", err)
		}
		committed = true
	}
	if j.deps.Quality != nil {
		if err := j.deps.Quality.SaveSnapshot(ctx, result.CycleID, q); err != nil {
			log.WithError(err).Warn("Failed to save quality snapshot")
		}
	}
	if committed {
		if err := j.deps.Categories.Remember(ctx, result.AsOf, result.Next); err != nil {
			log.WithError(err).Warn("Failed to remember categories")
		}
	}

	// ===== 7. Report + metrics =====
	report := j.reporter.Generate(result, previous).WithCoverage(q)
	j.reporter.Log(report)

	if j.deps.Recorder != nil {
		j.deps.Recorder.RecordCycle(result.Scores, result.Duration, j.clock())
		j.flushMetrics()
	}

	return &CycleOutcome{
		Result:   result,
		Quality:  q,
		Report:   report,
		Snapshot: cycleSnap,
	}, nil
}

// recordFailure counts a failed cycle and flushes the textfile
func (j *ScoringCycleJob) recordFailure(status string) {
	if j.deps.Recorder == nil {
		return
	}
	j.deps.Recorder.RecordFailure(status)
	j.flushMetrics()
}

func (j *ScoringCycleJob) flushMetrics() {
	if j.textfile == "" {
		return
	}
	if err := j.deps.Recorder.WriteTextfile(j.textfile); err != nil {
		j.logger.WithError(err).Warn("Failed to write metrics textfile")
	}
}
