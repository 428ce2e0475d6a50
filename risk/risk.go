package risk

import (
	"errors"

	"github.com/MrEthical07/goGuard/fingerprint"
)

// Level classifies an assessment score.
type Level uint8

const (
	// LevelLow requires no action.
	LevelLow Level = iota
	// LevelMedium flags the session; it stays fully usable.
	LevelMedium
	// LevelHigh forces rotation.
	LevelHigh
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Weights is the score contribution of each changed dimension.
type Weights struct {
	ClientAddress  int `mapstructure:"client_address" yaml:"client_address"`
	UserAgent      int `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage int `mapstructure:"accept_language" yaml:"accept_language"`
	AcceptEncoding int `mapstructure:"accept_encoding" yaml:"accept_encoding"`
}

// Thresholds are exclusive lower bounds: a score must be strictly
// greater than Medium to be medium risk and strictly greater than High
// to be high risk.
type Thresholds struct {
	Medium int `mapstructure:"medium" yaml:"medium"`
	High   int `mapstructure:"high" yaml:"high"`
}

// DefaultWeights returns address 30, user agent 25, language 15,
// encoding 10.
func DefaultWeights() Weights {
	return Weights{
		ClientAddress:  30,
		UserAgent:      25,
		AcceptLanguage: 15,
		AcceptEncoding: 10,
	}
}

// DefaultThresholds returns medium 50, high 75.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 50, High: 75}
}

// Assessment is the result of comparing two fingerprints.
type Assessment struct {
	Score   int
	Level   Level
	Reasons []string
	Changed []fingerprint.Field
}

var (
	// ErrNegativeWeight is returned when any weight is below zero.
	ErrNegativeWeight = errors.New("risk weight must be >= 0")
	// ErrThresholdOrder is returned when High is below Medium or either is negative.
	ErrThresholdOrder = errors.New("risk thresholds must satisfy 0 <= medium <= high")
)

// Engine scores fingerprint drift. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	weights    Weights
	thresholds Thresholds
}

// NewEngine validates w and t and returns an Engine.
func NewEngine(w Weights, t Thresholds) (*Engine, error) {
	if w.ClientAddress < 0 || w.UserAgent < 0 || w.AcceptLanguage < 0 || w.AcceptEncoding < 0 {
		return nil, ErrNegativeWeight
	}
	if t.Medium < 0 || t.High < t.Medium {
		return nil, ErrThresholdOrder
	}
	return &Engine{weights: w, thresholds: t}, nil
}

// Default returns an Engine with the default weights and thresholds.
func Default() *Engine {
	return &Engine{weights: DefaultWeights(), thresholds: DefaultThresholds()}
}

// Thresholds returns the configured thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Score compares stored against current. Each changed dimension adds its
// weight once.
func (e *Engine) Score(stored, current fingerprint.Fingerprint) Assessment {
	changed := fingerprint.Diff(stored, current)

	a := Assessment{Changed: changed}
	if len(changed) == 0 {
		return a
	}

	a.Reasons = make([]string, 0, len(changed))
	for _, f := range changed {
		a.Score += e.weight(f)
		a.Reasons = append(a.Reasons, f.String()+"_changed")
	}
	a.Level = e.Classify(a.Score)
	return a
}

// Classify maps a score to a Level.
func (e *Engine) Classify(score int) Level {
	switch {
	case score > e.thresholds.High:
		return LevelHigh
	case score > e.thresholds.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

func (e *Engine) weight(f fingerprint.Field) int {
	switch f {
	case fingerprint.FieldClientAddress:
		return e.weights.ClientAddress
	case fingerprint.FieldUserAgent:
		return e.weights.UserAgent
	case fingerprint.FieldAcceptLanguage:
		return e.weights.AcceptLanguage
	case fingerprint.FieldAcceptEncoding:
		return e.weights.AcceptEncoding
	default:
		return 0
	}
}
