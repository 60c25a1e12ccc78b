package contracts

import "time"

// DataQualityNote is a non-fatal observation about cycle inputs
type DataQualityNote struct {
	Kind    SignalKind `json:"kind,omitempty"`
	CUSIP   string     `json:"cusip,omitempty"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// DataQualitySnapshot summarizes input coverage before a cycle runs
// ⭐ SSOT: S0 입력 품질 정보 전달
type DataQualitySnapshot struct {
	AsOf            time.Time              `json:"as_of"`
	TotalSecurities int                    `json:"total_securities"`
	ValidSecurities int                    `json:"valid_securities"`
	Coverage        map[SignalKind]float64 `json:"coverage"`      // 시그널별 커버리지
	QualityScore    float64                `json:"quality_score"` // 0.0 ~ 1.0
	Notes           []DataQualityNote      `json:"notes,omitempty"`
}

// IsValid checks if the snapshot has anything worth scoring
func (d *DataQualitySnapshot) IsValid() bool {
	return d.ValidSecurities > 0
}

// CoverageRate returns the average coverage rate across signal kinds
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}

	return total / float64(len(d.Coverage))
}
