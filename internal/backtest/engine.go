package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/tscore/backend/internal/audit"
	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
	"github.com/wonny/tscore/backend/pkg/logger"
)

// Engine replays scoring cycles over historical snapshots.
// Categories are threaded day to day exactly as in production, nothing is persisted.
// ⭐ SSOT: 과거 구간 재실행은 여기서만
type Engine struct {
	orchestrator *brain.Orchestrator
	source       contracts.SnapshotSource
	reporter     *audit.Reporter
	logger       *logger.Logger
}

// Config holds replay configuration
type Config struct {
	StartDate    time.Time
	EndDate      time.Time     // inclusive
	CycleOffset  time.Duration // 날짜 기준 사이클 시각 (예: 18h30m)
	SkipWeekends bool
	Initial      contracts.CategoryMap // 첫 사이클의 Previous (nil = 이력 없음)
}

// DayResult is one replayed cycle
type DayResult struct {
	AsOf   time.Time          `json:"as_of"`
	Report *audit.CycleReport `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Result holds replay results
type Result struct {
	Config   Config        `json:"-"`
	Duration time.Duration `json:"duration"`

	Cycles int `json:"cycles"`
	Failed int `json:"failed"`

	// 등급 안정성: 전일 대비 등급이 유지된 종목 비율
	Stability       float64 `json:"stability"`
	TotalMigrations int     `json:"total_migrations"`
	Upgrades        int     `json:"upgrades"`
	Downgrades      int     `json:"downgrades"`

	// 일별 평균 점수의 평균/표준편차
	MeanComposite   float64 `json:"mean_composite"`
	StdDevComposite float64 `json:"std_dev_composite"`

	Days  []DayResult           `json:"days"`
	Final contracts.CategoryMap `json:"final"`
}

// NewEngine creates a new replay engine
func NewEngine(source contracts.SnapshotSource, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		orchestrator: brain.NewOrchestrator(log),
		source:       source,
		reporter:     audit.NewReporter(log.Zerolog()),
		logger:       log,
	}
}

// Run replays every cycle date in the window.
// An invalid config aborts the replay; a failed day is recorded and the
// previous categories carry over to the next day unchanged.
func (e *Engine) Run(ctx context.Context, config Config, cfg *scoringconfig.Config) (*Result, error) {
	if config.EndDate.Before(config.StartDate) {
		return nil, fmt.Errorf("end date %s before start date %s",
			config.EndDate.Format("2006-01-02"), config.StartDate.Format("2006-01-02"))
	}

	e.logger.WithFields(map[string]interface{}{
		"start_date": config.StartDate.Format("2006-01-02"),
		"end_date":   config.EndDate.Format("2006-01-02"),
	}).Info("Starting replay")

	startTime := time.Now()
	result := &Result{
		Config: config,
		Days:   make([]DayResult, 0),
	}

	previous := config.Initial
	if previous == nil {
		previous = contracts.CategoryMap{}
	}

	var kept, compared int
	dailyMeans := make([]float64, 0)

	for day := truncateDay(config.StartDate); !day.After(truncateDay(config.EndDate)); day = day.AddDate(0, 0, 1) {
		if config.SkipWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		asOf := day.Add(config.CycleOffset)
		dr := DayResult{AsOf: asOf}

		res, err := e.runDay(ctx, asOf, previous, cfg)
		if errors.Is(err, scoringconfig.ErrInvalidConfig) {
			return nil, err
		}
		if err != nil {
			result.Failed++
			dr.Error = err.Error()
			result.Days = append(result.Days, dr)
			e.logger.WithError(err).WithField("as_of", asOf.Format(time.RFC3339)).Warn("Replay day failed")
			continue
		}

		report := e.reporter.Generate(res, previous)
		dr.Report = report
		result.Days = append(result.Days, dr)
		result.Cycles++

		for _, s := range res.Scores {
			if prev, ok := previous.Get(s.CUSIP); ok {
				compared++
				if prev == s.Category {
					kept++
				}
			}
		}
		result.TotalMigrations += len(report.Migrations)
		result.Upgrades += report.Upgrades
		result.Downgrades += report.Downgrades
		if report.Distribution != nil {
			dailyMeans = append(dailyMeans, report.Distribution.Mean)
		}

		previous = res.Next
	}

	if compared > 0 {
		result.Stability = float64(kept) / float64(compared)
	}
	if len(dailyMeans) > 0 {
		result.MeanComposite, result.StdDevComposite = stat.PopMeanStdDev(dailyMeans, nil)
	}
	result.Final = previous
	result.Duration = time.Since(startTime)

	e.logger.WithFields(map[string]interface{}{
		"duration":   result.Duration.Seconds(),
		"cycles":     result.Cycles,
		"failed":     result.Failed,
		"stability":  fmt.Sprintf("%.1f%%", result.Stability*100),
		"migrations": result.TotalMigrations,
	}).Info("Replay completed")

	return result, nil
}

// runDay loads one snapshot and scores it
func (e *Engine) runDay(ctx context.Context, asOf time.Time, previous contracts.CategoryMap, cfg *scoringconfig.Config) (*brain.CycleResult, error) {
	snap, err := e.source.LoadSnapshot(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return e.orchestrator.Run(ctx, brain.CycleInput{Snapshot: snap, Previous: previous}, cfg)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
