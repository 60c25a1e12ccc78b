package quality

import (
	"fmt"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// Note codes produced by Check
const (
	NoteInvalidCUSIP     = "INVALID_CUSIP"
	NoteBadObservation   = "BAD_OBSERVATION"
	NoteNoObservations   = "NO_OBSERVATIONS"
	NoteLowCoverage      = "LOW_COVERAGE"
	NoteDuplicateSignal  = "DUPLICATE_SIGNAL"
	defaultCoverageFloor = 0.5
)

// Gate audits a snapshot before a cycle runs.
// Informative only: the engine scores whatever it is given.
type Gate struct {
	coverageFloor float64 // 시그널별 커버리지 경고 기준
}

// NewGate creates a quality gate; floor <= 0 uses the default (50%)
func NewGate(coverageFloor float64) *Gate {
	if coverageFloor <= 0 {
		coverageFloor = defaultCoverageFloor
	}
	return &Gate{coverageFloor: coverageFloor}
}

// Check summarizes coverage and input problems of a snapshot
// ⭐ SSOT: S0 입력 품질 검증
func (g *Gate) Check(snap *contracts.Snapshot) *contracts.DataQualitySnapshot {
	out := &contracts.DataQualitySnapshot{
		AsOf:            snap.AsOf,
		TotalSecurities: len(snap.Securities),
		Coverage:        make(map[contracts.SignalKind]float64, 4),
	}

	counts := make(map[contracts.SignalKind]int, 4)
	for _, sec := range snap.Securities {
		cusip := sec.Security.CUSIP
		valid := true

		if !contracts.ValidCUSIP(cusip) {
			out.Notes = append(out.Notes, contracts.DataQualityNote{
				CUSIP: cusip, Code: NoteInvalidCUSIP, Message: "CUSIP must be 9 alphanumeric characters",
			})
			valid = false
		}
		if len(sec.Observations) == 0 {
			out.Notes = append(out.Notes, contracts.DataQualityNote{
				CUSIP: cusip, Code: NoteNoObservations, Message: "no signal observations",
			})
			valid = false
		}

		seen := make(map[contracts.SignalKind]bool, len(sec.Observations))
		for _, obs := range sec.Observations {
			if err := obs.Check(); err != nil {
				out.Notes = append(out.Notes, contracts.DataQualityNote{
					Kind: obs.Kind, CUSIP: cusip, Code: NoteBadObservation, Message: err.Error(),
				})
				valid = false
				continue
			}
			if seen[obs.Kind] {
				out.Notes = append(out.Notes, contracts.DataQualityNote{
					Kind: obs.Kind, CUSIP: cusip, Code: NoteDuplicateSignal, Message: "signal observed more than once",
				})
				valid = false
				continue
			}
			seen[obs.Kind] = true
			counts[obs.Kind]++
		}

		if valid {
			out.ValidSecurities++
		}
	}

	for _, k := range contracts.AllSignalKinds() {
		rate := 0.0
		if out.TotalSecurities > 0 {
			rate = float64(counts[k]) / float64(out.TotalSecurities)
		}
		out.Coverage[k] = rate

		if out.TotalSecurities > 0 && rate < g.coverageFloor {
			out.Notes = append(out.Notes, contracts.DataQualityNote{
				Kind:    k,
				Code:    NoteLowCoverage,
				Message: fmt.Sprintf("coverage %.1f%% below %.1f%%", rate*100, g.coverageFloor*100),
			})
		}
	}

	// 품질 점수 = 유효 종목 비율 × 평균 커버리지
	if out.TotalSecurities > 0 {
		out.QualityScore = float64(out.ValidSecurities) / float64(out.TotalSecurities) * out.CoverageRate()
	}

	return out
}
