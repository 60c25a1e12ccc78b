package scoringconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// ErrInvalidConfig is the only fatal error a scoring cycle can return
var ErrInvalidConfig = errors.New("invalid scoring config")

// ValidationError 검증 실패 (사이클 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match any ValidationError
func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator reports field names by their yaml key
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks all required constraints
// 실패 시 ValidationError 반환 (errors.Is(err, ErrInvalidConfig) == true)
func Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationError{"config", "required"}
	}

	// === 태그 검증 (gte, oneof, gt) ===
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{fieldPath(fe.Namespace()), tagMessage(fe)}
		}
		return ValidationError{"config", err.Error()}
	}

	// === Weights ===
	if cfg.Weights.Sum() <= 0 {
		return ValidationError{"weights", "at least one weight must be > 0"}
	}
	for _, k := range contracts.AllSignalKinds() {
		w := cfg.Weights.ByKind(k)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return ValidationError{"weights." + string(k), "must be finite"}
		}
	}

	// === Normalization ===
	for _, k := range contracts.AllSignalKinds() {
		b := cfg.Normalization.FallbackBounds.ByKind(k)
		if !(b.Min < b.Max) {
			return ValidationError{
				Field:   "normalization.fallback_bounds." + string(k),
				Message: "min must be < max",
			}
		}
	}

	// === Composite ===
	if !(cfg.Composite.ScoreMin < cfg.Composite.ScoreMax) {
		return ValidationError{"composite", "score_min must be < score_max"}
	}

	// === Categorization ===
	// score_min < caution_min < neutral_min < favorable_min < score_max
	c := cfg.Categorization
	if !(cfg.Composite.ScoreMin < c.CautionMin) {
		return ValidationError{"categorization.caution_min", "must be > composite.score_min"}
	}
	if !(c.CautionMin < c.NeutralMin) {
		return ValidationError{"categorization.neutral_min", "must be > caution_min"}
	}
	if !(c.NeutralMin < c.FavorableMin) {
		return ValidationError{"categorization.favorable_min", "must be > neutral_min"}
	}
	if !(c.FavorableMin < cfg.Composite.ScoreMax) {
		return ValidationError{"categorization.favorable_min", "must be < composite.score_max"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 가중치 합 != 1: 리졸버가 정규화하므로 동작에는 영향 없음
	if sum := cfg.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		warnings = append(warnings, Warning{
			Code:    "WEIGHTS_NOT_NORMALIZED",
			Message: fmt.Sprintf("weights sum to %.4f, effective weights will be rescaled", sum),
		})
	}

	for _, k := range contracts.AllSignalKinds() {
		if cfg.Weights.ByKind(k) == 0 {
			warnings = append(warnings, Warning{
				Code:    "SIGNAL_EXCLUDED",
				Message: fmt.Sprintf("%s has weight 0 and is excluded from composite and confidence", k),
			})
		}
	}

	if cfg.Normalization.MinCrossSection < 3 {
		warnings = append(warnings, Warning{
			Code:    "SMALL_CROSS_SECTION",
			Message: "min_cross_section < 3: median/MAD unstable",
		})
	}

	if cfg.Confidence.Freshness < time.Hour {
		warnings = append(warnings, Warning{
			Code:    "SHORT_FRESHNESS",
			Message: "freshness < 1h: most end-of-day signals will be treated as stale",
		})
	}

	// 가장 좁은 밴드의 절반 이상이면 재분류가 거의 일어나지 않음
	c := cfg.Categorization
	narrowest := math.Min(c.NeutralMin-c.CautionMin, c.FavorableMin-c.NeutralMin)
	if c.HysteresisBand*2 >= narrowest {
		warnings = append(warnings, Warning{
			Code:    "WIDE_HYSTERESIS",
			Message: fmt.Sprintf("hysteresis_band %.2f is at least half of the narrowest band (%.2f)", c.HysteresisBand, narrowest),
		})
	}

	if cfg.Trend.BonusPerSignal > cfg.Trend.MaxTotalBonus {
		warnings = append(warnings, Warning{
			Code:    "BONUS_CAPPED",
			Message: "bonus_per_signal > max_total_bonus: a single trend hits the cap",
		})
	}

	return warnings
}

// === Helper Functions ===

// fieldPath strips the root struct name: "Config.weights.volume" → "weights.volume"
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
