package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Security is immutable reference data for a Treasury note or bond
type Security struct {
	CUSIP        string    `json:"cusip"`
	MaturityDate time.Time `json:"maturity_date"`
	CouponRate   float64   `json:"coupon_rate"` // decimal, 0.0425 = 4.25%
}

// NormalizeCUSIP upper-cases and trims a CUSIP identifier
func NormalizeCUSIP(cusip string) string {
	return strings.ToUpper(strings.TrimSpace(cusip))
}

// ValidCUSIP checks the 9-character CUSIP format
func ValidCUSIP(cusip string) bool {
	if len(cusip) != 9 {
		return false
	}
	for _, r := range cusip {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') && r != '*' && r != '@' && r != '#' {
			return false
		}
	}
	return true
}

// SecurityObservations groups one security's observations for a cycle
type SecurityObservations struct {
	Security     Security            `json:"security"`
	Observations []SignalObservation `json:"observations"`
}

// Admit checks one security's observations and indexes them by kind.
// A non-empty reason rejects the whole security: invalid CUSIP, a malformed
// or foreign observation, or a kind observed more than once.
// ⭐ SSOT: 횡단면 통계와 종목 스코어링이 같은 규칙을 사용
func (s SecurityObservations) Admit() (map[SignalKind]SignalObservation, ReasonCode, string) {
	cusip := s.Security.CUSIP
	if !ValidCUSIP(cusip) {
		return nil, ReasonMalformedObservation, fmt.Sprintf("invalid CUSIP %q", cusip)
	}

	byKind := make(map[SignalKind]SignalObservation, len(s.Observations))
	for _, obs := range s.Observations {
		if err := obs.Check(); err != nil {
			return nil, ReasonMalformedObservation, err.Error()
		}
		if obs.CUSIP != "" && NormalizeCUSIP(obs.CUSIP) != cusip {
			return nil, ReasonMalformedObservation,
				fmt.Sprintf("%s observation belongs to %s", obs.Kind, obs.CUSIP)
		}
		if _, dup := byKind[obs.Kind]; dup {
			return nil, ReasonDuplicateSignal, fmt.Sprintf("%s observed more than once", obs.Kind)
		}
		byKind[obs.Kind] = obs
	}
	return byKind, ReasonNone, ""
}

// Snapshot is the point-in-time observation set for one batch cycle
// ⭐ SSOT: 수집기 → 스코어링 엔진 입력 전달
type Snapshot struct {
	AsOf       time.Time              `json:"as_of"`
	Securities []SecurityObservations `json:"securities"`
}

// Count returns the number of securities in the universe
func (s *Snapshot) Count() int {
	return len(s.Securities)
}

// Contains checks if a CUSIP is part of the universe
func (s *Snapshot) Contains(cusip string) bool {
	for _, sec := range s.Securities {
		if sec.Security.CUSIP == cusip {
			return true
		}
	}
	return false
}

// ObservationsOf returns all observations of one kind across the universe
func (s *Snapshot) ObservationsOf(kind SignalKind) []SignalObservation {
	out := make([]SignalObservation, 0, len(s.Securities))
	for _, sec := range s.Securities {
		for _, obs := range sec.Observations {
			if obs.Kind == kind {
				out = append(out, obs)
			}
		}
	}
	return out
}
