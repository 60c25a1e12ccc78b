package s1_normalize

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// Note codes emitted while building the cross-section
const (
	NoteFallbackScale       = "FALLBACK_SCALE"
	NoteExcludedSecurity    = "EXCLUDED_SECURITY"
)

// KindStats holds the cross-sectional distribution of one signal kind
type KindStats struct {
	Kind   contracts.SignalKind `json:"kind"`
	Count  int                  `json:"count"`
	Median float64              `json:"median"`
	MAD    float64              `json:"mad"` // median absolute deviation (unscaled)
	Mean   float64              `json:"mean"`
	StdDev float64              `json:"std_dev"` // population
}

// CrossSection is the per-cycle statistics snapshot shared by all workers.
// Built once before scoring starts and never mutated afterwards.
type CrossSection struct {
	AsOf     time.Time
	minCount int
	stats    map[contracts.SignalKind]KindStats
}

// Stats returns the statistics for a kind (zero Count if absent)
func (cs *CrossSection) Stats(kind contracts.SignalKind) KindStats {
	if s, ok := cs.stats[kind]; ok {
		return s
	}
	return KindStats{Kind: kind}
}

// UsesFallback reports whether the kind is scaled by fixed reference bounds
func (cs *CrossSection) UsesFallback(kind contracts.SignalKind) bool {
	return cs.Stats(kind).Count < cs.minCount
}

// BuildCrossSection computes per-kind statistics over the whole snapshot.
// Securities rejected by Admit contribute nothing, so the statistics cover
// exactly the securities that can be scored.
func BuildCrossSection(snapshot *contracts.Snapshot, cfg *scoringconfig.Config) (*CrossSection, []contracts.DataQualityNote) {
	cs := &CrossSection{
		AsOf:     snapshot.AsOf,
		minCount: cfg.Normalization.MinCrossSection,
		stats:    make(map[contracts.SignalKind]KindStats, 4),
	}

	var notes []contracts.DataQualityNote
	values := make(map[contracts.SignalKind][]float64, 4)

	for _, sec := range snapshot.Securities {
		byKind, reason, detail := sec.Admit()
		if reason != contracts.ReasonNone {
			notes = append(notes, contracts.DataQualityNote{
				CUSIP:   sec.Security.CUSIP,
				Code:    NoteExcludedSecurity,
				Message: fmt.Sprintf("%s: %s", reason, detail),
			})
			continue
		}
		for _, kind := range contracts.AllSignalKinds() {
			if obs, ok := byKind[kind]; ok {
				values[kind] = append(values[kind], obs.Value)
			}
		}
	}

	for _, kind := range contracts.AllSignalKinds() {
		xs := values[kind]
		cs.stats[kind] = computeStats(kind, xs)

		if len(xs) > 0 && len(xs) < cs.minCount {
			notes = append(notes, contracts.DataQualityNote{
				Kind: kind,
				Code: NoteFallbackScale,
				Message: fmt.Sprintf("only %d observations (< %d), using fixed reference bounds",
					len(xs), cs.minCount),
			})
		}
	}

	return cs, notes
}

func computeStats(kind contracts.SignalKind, xs []float64) KindStats {
	s := KindStats{Kind: kind, Count: len(xs)}
	if len(xs) == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.PopMeanStdDev(xs, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}

	s.Median = Median(xs)
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - s.Median)
	}
	s.MAD = Median(dev)

	return s
}

// Median of xs (average of the two middle values for even length)
// ⭐ SSOT: 리포트 분포도 이 중앙값을 사용
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
