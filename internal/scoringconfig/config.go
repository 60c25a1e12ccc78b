package scoringconfig

import (
	"time"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// Config is the full scoring engine configuration.
// Defaults live in the `default` tags; a YAML file only overrides them.
type Config struct {
	Meta           Meta           `yaml:"meta" json:"meta"`
	Weights        SignalWeights  `yaml:"weights" json:"weights"`
	Direction      Directions     `yaml:"direction" json:"direction"`
	Normalization  Normalization  `yaml:"normalization" json:"normalization"`
	Composite      Composite      `yaml:"composite" json:"composite"`
	Trend          Trend          `yaml:"trend" json:"trend"`
	Confidence     Confidence     `yaml:"confidence" json:"confidence"`
	Categorization Categorization `yaml:"categorization" json:"categorization"`
	Engine         Engine         `yaml:"engine" json:"engine"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id" default:"treasury_rv" validate:"required"`
	Version  string `yaml:"version" json:"version" default:"1.0.0"`
}

// SignalWeights 시그널별 가중치 (합이 1일 필요 없음, 0 = 제외)
type SignalWeights struct {
	RepoSpread      float64 `yaml:"repo_spread" json:"repo_spread" default:"0.4" validate:"gte=0"`
	PriceDivergence float64 `yaml:"price_divergence" json:"price_divergence" default:"0.3" validate:"gte=0"`
	Volume          float64 `yaml:"volume" json:"volume" default:"0.2" validate:"gte=0"`
	Volatility      float64 `yaml:"volatility" json:"volatility" default:"0.1" validate:"gte=0"`
}

// ByKind returns the configured weight for a signal kind
func (w SignalWeights) ByKind(kind contracts.SignalKind) float64 {
	switch kind {
	case contracts.SignalRepoSpread:
		return w.RepoSpread
	case contracts.SignalPriceDivergence:
		return w.PriceDivergence
	case contracts.SignalVolume:
		return w.Volume
	case contracts.SignalVolatility:
		return w.Volatility
	}
	return 0
}

// Sum returns the sum of all weights
func (w SignalWeights) Sum() float64 {
	return w.RepoSpread + w.PriceDivergence + w.Volume + w.Volatility
}

// WeightConfig converts the typed weights into the engine's kind map
func (w SignalWeights) WeightConfig() contracts.WeightConfig {
	out := make(contracts.WeightConfig, 4)
	for _, k := range contracts.AllSignalKinds() {
		out[k] = w.ByKind(k)
	}
	return out
}

// Directions 시그널별 부호 (+1: 클수록 유리, -1: 작을수록 유리)
type Directions struct {
	RepoSpread      int `yaml:"repo_spread" json:"repo_spread" default:"1" validate:"oneof=-1 1"`
	PriceDivergence int `yaml:"price_divergence" json:"price_divergence" default:"-1" validate:"oneof=-1 1"`
	Volume          int `yaml:"volume" json:"volume" default:"1" validate:"oneof=-1 1"`
	Volatility      int `yaml:"volatility" json:"volatility" default:"-1" validate:"oneof=-1 1"`
}

// ByKind returns the sign multiplier for a signal kind
func (d Directions) ByKind(kind contracts.SignalKind) float64 {
	switch kind {
	case contracts.SignalRepoSpread:
		return float64(d.RepoSpread)
	case contracts.SignalPriceDivergence:
		return float64(d.PriceDivergence)
	case contracts.SignalVolume:
		return float64(d.Volume)
	case contracts.SignalVolatility:
		return float64(d.Volatility)
	}
	return 1
}

// Normalization S1: cross-sectional robust z-score
type Normalization struct {
	MinCrossSection int            `yaml:"min_cross_section" json:"min_cross_section" default:"3" validate:"gte=1"`
	ZScoreClip      float64        `yaml:"zscore_clip" json:"zscore_clip" default:"3" validate:"gt=0"`
	MADScale        float64        `yaml:"mad_scale" json:"mad_scale" default:"1.4826" validate:"gt=0"`
	FallbackBounds  FallbackBounds `yaml:"fallback_bounds" json:"fallback_bounds"`
}

// Bounds is a fixed reference scale [Min, Max] for one signal kind
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// FallbackBounds are used when the cross-section is too small to z-score
type FallbackBounds struct {
	RepoSpread      Bounds `yaml:"repo_spread" json:"repo_spread"`           // bps
	PriceDivergence Bounds `yaml:"price_divergence" json:"price_divergence"` // price points
	Volume          Bounds `yaml:"volume" json:"volume"`                     // notional
	Volatility      Bounds `yaml:"volatility" json:"volatility"`             // price units
}

// SetDefaults fills unset bounds (creasty/defaults Setter)
func (b *FallbackBounds) SetDefaults() {
	if b.RepoSpread == (Bounds{}) {
		b.RepoSpread = Bounds{Min: 0, Max: 10}
	}
	if b.PriceDivergence == (Bounds{}) {
		b.PriceDivergence = Bounds{Min: -0.5, Max: 0.5}
	}
	if b.Volume == (Bounds{}) {
		b.Volume = Bounds{Min: 0, Max: 5_000_000}
	}
	if b.Volatility == (Bounds{}) {
		b.Volatility = Bounds{Min: 0, Max: 1}
	}
}

// ByKind returns the reference bounds for a signal kind
func (b FallbackBounds) ByKind(kind contracts.SignalKind) Bounds {
	switch kind {
	case contracts.SignalRepoSpread:
		return b.RepoSpread
	case contracts.SignalPriceDivergence:
		return b.PriceDivergence
	case contracts.SignalVolume:
		return b.Volume
	case contracts.SignalVolatility:
		return b.Volatility
	}
	return Bounds{}
}

// Composite S3: declared output bound
type Composite struct {
	ScoreMin float64 `yaml:"score_min" json:"score_min" default:"0"`
	ScoreMax float64 `yaml:"score_max" json:"score_max" default:"100"`
}

// Mid returns the center of the declared bound
func (c Composite) Mid() float64 {
	return (c.ScoreMin + c.ScoreMax) / 2
}

// HalfRange returns half the width of the declared bound
func (c Composite) HalfRange() float64 {
	return (c.ScoreMax - c.ScoreMin) / 2
}

// Trend S3: trend-consistency bonus
type Trend struct {
	MinHistory           int     `yaml:"min_history" json:"min_history" default:"5" validate:"gte=2"`
	ConsistencyThreshold float64 `yaml:"consistency_threshold" json:"consistency_threshold" default:"0.7" validate:"gt=0,lte=1"`
	BonusPerSignal       float64 `yaml:"bonus_per_signal" json:"bonus_per_signal" default:"2" validate:"gte=0"`
	MaxTotalBonus        float64 `yaml:"max_total_bonus" json:"max_total_bonus" default:"5" validate:"gte=0"`
}

// Confidence S4: coverage and recency
type Confidence struct {
	Freshness  time.Duration `yaml:"freshness" json:"freshness" default:"24h" validate:"gt=0"`
	StaleDecay float64       `yaml:"stale_decay" json:"stale_decay" default:"0.9" validate:"gt=0,lte=1"`
}

// Categorization S5: threshold bands and hysteresis
type Categorization struct {
	FavorableMin       float64 `yaml:"favorable_min" json:"favorable_min" default:"65"`
	NeutralMin         float64 `yaml:"neutral_min" json:"neutral_min" default:"45"`
	CautionMin         float64 `yaml:"caution_min" json:"caution_min" default:"30"`
	HysteresisBand     float64 `yaml:"hysteresis_band" json:"hysteresis_band" default:"2" validate:"gte=0"`
	LowConfidenceFloor float64 `yaml:"low_confidence_floor" json:"low_confidence_floor" default:"0.3" validate:"gte=0,lte=1"`
}

// Engine 실행 옵션
type Engine struct {
	Workers int `yaml:"workers" json:"workers" default:"8" validate:"gte=1"`
}

// CycleSnapshot 사이클 설정 스냅샷 (재현성용)
type CycleSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	ConfigID   string    `json:"config_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
