package audit

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/tscore/backend/internal/brain"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/s1_normalize"
)

// =============================================================================
// Cycle Reporter
// =============================================================================

// Reporter summarizes a finished cycle for logs and CLI output
// ⭐ SSOT: 사이클 리포팅은 여기서만
type Reporter struct {
	log zerolog.Logger
}

// NewReporter creates a cycle reporter
func NewReporter(log zerolog.Logger) *Reporter {
	return &Reporter{
		log: log.With().Str("component", "audit.reporter").Logger(),
	}
}

// =============================================================================
// Report Types
// =============================================================================

// CycleReport describes the score distribution and category movement of one cycle
type CycleReport struct {
	CycleID      string                           `json:"cycle_id"`
	AsOf         time.Time                        `json:"as_of"`
	ConfigHash   string                           `json:"config_hash"`
	Total        int                              `json:"total"`
	Scoreable    int                              `json:"scoreable"`
	Distribution *ScoreDistribution               `json:"distribution,omitempty"`
	Categories   map[contracts.RiskCategory]int   `json:"categories"`
	Reasons      map[contracts.ReasonCode]int     `json:"reasons,omitempty"`
	Migrations   []Migration                      `json:"migrations,omitempty"`
	Upgrades     int                              `json:"upgrades"`
	Downgrades   int                              `json:"downgrades"`
	Coverage     map[contracts.SignalKind]float64 `json:"coverage,omitempty"`
	Duration     time.Duration                    `json:"duration"`
}

// ScoreDistribution summarizes composites of scoreable securities
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Migration is a category change between consecutive cycles
type Migration struct {
	CUSIP string                 `json:"cusip"`
	From  contracts.RiskCategory `json:"from"`
	To    contracts.RiskCategory `json:"to"`
}

// =============================================================================
// Report Generation
// =============================================================================

// Generate builds the report; previous is the category map the cycle ran with
func (r *Reporter) Generate(result *brain.CycleResult, previous contracts.CategoryMap) *CycleReport {
	report := &CycleReport{
		CycleID:    result.CycleID,
		AsOf:       result.AsOf,
		ConfigHash: result.ConfigHash,
		Total:      len(result.Scores),
		Categories: make(map[contracts.RiskCategory]int),
		Reasons:    make(map[contracts.ReasonCode]int),
		Duration:   result.Duration,
	}

	composites := make([]float64, 0, len(result.Scores))
	for _, s := range result.Scores {
		report.Categories[s.Category]++
		if s.Reason != contracts.ReasonNone {
			report.Reasons[s.Reason]++
		}
		if s.Scoreable {
			report.Scoreable++
			composites = append(composites, s.Composite)
		}

		prev, ok := previous.Get(s.CUSIP)
		if !ok || prev == s.Category {
			continue
		}
		report.Migrations = append(report.Migrations, Migration{CUSIP: s.CUSIP, From: prev, To: s.Category})

		// INSUFFICIENT_DATA 전환은 등급 이동으로 보지 않음
		from, to := prev.Rank(), s.Category.Rank()
		if from < 0 || to < 0 {
			continue
		}
		if to < from {
			report.Upgrades++
		} else {
			report.Downgrades++
		}
	}

	report.Distribution = distribution(composites)
	return report
}

// WithCoverage attaches the pre-cycle data quality coverage
func (c *CycleReport) WithCoverage(q *contracts.DataQualitySnapshot) *CycleReport {
	if q != nil {
		c.Coverage = q.Coverage
	}
	return c
}

// Log writes the report summary at Info
func (r *Reporter) Log(report *CycleReport) {
	ev := r.log.Info().
		Str("cycle_id", report.CycleID).
		Time("as_of", report.AsOf).
		Int("total", report.Total).
		Int("scoreable", report.Scoreable).
		Int("migrations", len(report.Migrations)).
		Int("upgrades", report.Upgrades).
		Int("downgrades", report.Downgrades).
		Dur("duration", report.Duration)

	if d := report.Distribution; d != nil {
		ev = ev.Float64("mean", d.Mean).Float64("median", d.Median).Float64("std_dev", d.StdDev)
	}

	ev.Msg("Cycle report")
}

// distribution computes summary statistics, nil for an empty sample
func distribution(values []float64) *ScoreDistribution {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return &ScoreDistribution{
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: s1_normalize.Median(sorted),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}
