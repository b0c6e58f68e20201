package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
)

// Input is everything a curve may look at for one approved record.
type Input struct {
	Position    int
	ListSize    int
	Requirement int
	Progress    int
}

// Curve maps one approved record to its score contribution. Implementations
// must be pure and monotonic: a better position or more progress never
// yields less.
type Curve interface {
	Contribution(in Input) float64
}

// CurveFunc adapts a function to Curve.
type CurveFunc func(in Input) float64

// Contribution calls f.
func (f CurveFunc) Contribution(in Input) float64 { return f(in) }

// Built-in curve names.
const (
	CurveExponential = "exponential"
	CurveLinear      = "linear"
)

// Default curve parameters.
const (
	defaultMaxPoints  = 250.0
	defaultDecay      = 0.05
	defaultPartialMin = 0.1
	defaultPartialMax = 0.5
)

// CurveConfig selects and parameterises a built-in curve.
type CurveConfig struct {
	Name       string
	MaxPoints  float64
	Decay      float64
	PartialMin float64
	PartialMax float64
	// MainListSize limits partial progress to the first N positions.
	MainListSize int
	// ExtendedListSize gives nothing beyond the first N positions.
	ExtendedListSize int
}

func (c CurveConfig) withDefaults() CurveConfig {
	if c.Name == "" {
		c.Name = CurveExponential
	}
	if c.MaxPoints <= 0 {
		c.MaxPoints = defaultMaxPoints
	}
	if c.Decay <= 0 {
		c.Decay = defaultDecay
	}
	if c.PartialMin <= 0 && c.PartialMax <= 0 {
		c.PartialMin, c.PartialMax = defaultPartialMin, defaultPartialMax
	}
	return c
}

// NewCurve builds the configured curve.
func NewCurve(cfg CurveConfig) (Curve, error) {
	cfg = cfg.withDefaults()
	if cfg.PartialMin < 0 || cfg.PartialMax < cfg.PartialMin || cfg.PartialMax > 1 {
		return nil, fmt.Errorf("%w: partial weights must satisfy 0 <= min <= max <= 1", ErrInvalidCurve)
	}
	if cfg.MainListSize < 0 || cfg.ExtendedListSize < 0 {
		return nil, fmt.Errorf("%w: list cutoffs must not be negative", ErrInvalidCurve)
	}

	var full func(in Input) float64
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case CurveExponential:
		full = func(in Input) float64 {
			return cfg.MaxPoints * math.Exp(-cfg.Decay*float64(in.Position-1))
		}
	case CurveLinear:
		full = func(in Input) float64 {
			if in.ListSize <= 0 {
				return 0
			}
			return cfg.MaxPoints * float64(in.ListSize-in.Position+1) / float64(in.ListSize)
		}
	default:
		return nil, fmt.Errorf("%w: unknown curve %q", ErrInvalidCurve, cfg.Name)
	}

	return CurveFunc(func(in Input) float64 {
		if in.Position < 1 || in.Progress < in.Requirement || in.Progress > model.MaxProgress {
			return 0
		}
		if cfg.ExtendedListSize > 0 && in.Position > cfg.ExtendedListSize {
			return 0
		}
		if in.Progress == model.MaxProgress {
			return full(in)
		}
		if cfg.MainListSize > 0 && in.Position > cfg.MainListSize {
			return 0
		}
		return full(in) * partialFactor(cfg, in)
	}), nil
}

// partialFactor interpolates between PartialMin at the requirement and
// PartialMax just below completion.
func partialFactor(cfg CurveConfig, in Input) float64 {
	span := model.MaxProgress - in.Requirement
	if span <= 0 {
		return cfg.PartialMax
	}
	t := float64(in.Progress-in.Requirement) / float64(span)
	return cfg.PartialMin + (cfg.PartialMax-cfg.PartialMin)*t
}
