package train

import (
	"errors"
	"fmt"
)

// Variant selects the parameterization of the model.
type Variant string

const (
	// Plain uses one weight per index.
	Plain Variant = "plain"
	// TwoChannel uses a positive and a negative channel per index and
	// propagates coefficients through the derivation graph.
	TwoChannel Variant = "two-channel"
)

// Config holds training hyperparameters.
type Config struct {
	// Threshold is the expansion threshold t.
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	LearningRate float64 `yaml:"learningRate" json:"learningRate"`
	// Decay anneals the learning rate as lr/(1+decay*step).
	Decay float64 `yaml:"decay" json:"decay"`
	L2    float64 `yaml:"l2" json:"l2"`
	// BatchSize <= 0 uses the full training set every step.
	BatchSize     int `yaml:"batchSize" json:"batchSize"`
	MaxIterations int `yaml:"maxIterations" json:"maxIterations"`
	// MaxExamples stops training after this many example visits (0 = unbounded).
	MaxExamples int `yaml:"maxExamples" json:"maxExamples"`
	// Tolerance stops training once the weight change norm falls below it.
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`
	MinIterations int     `yaml:"minIterations" json:"minIterations"`
	// Patience is the number of evaluations without improvement of more than
	// EvalEpsilon before training stops.
	Patience    int     `yaml:"patience" json:"patience"`
	EvalEvery   int     `yaml:"evalEvery" json:"evalEvery"`
	EvalEpsilon float64 `yaml:"evalEpsilon" json:"evalEpsilon"`
	Variant     Variant `yaml:"variant" json:"variant"`
	// ExpandEvery runs expansion every n steps (0 disables expansion).
	ExpandEvery int `yaml:"expandEvery" json:"expandEvery"`
	// MaxExpansionsPerStep bounds expansions per expansion step, strongest first (0 = unbounded).
	MaxExpansionsPerStep int   `yaml:"maxExpansionsPerStep" json:"maxExpansionsPerStep"`
	Seed                 int64 `yaml:"seed" json:"seed"`
	Workers              int   `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.75,
		LearningRate:  0.5,
		Decay:         0.01,
		L2:            1e-4,
		BatchSize:     0,
		MaxIterations: 200,
		Tolerance:     1e-5,
		MinIterations: 5,
		Patience:      3,
		EvalEvery:     10,
		EvalEpsilon:   1e-4,
		Variant:       TwoChannel,
		ExpandEvery:   5,
		Seed:          1,
		Workers:       1,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid training config")

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	switch {
	case c.Variant != Plain && c.Variant != TwoChannel:
		return fmt.Errorf("%w: variant %q", ErrInvalidConfig, c.Variant)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learningRate must be > 0", ErrInvalidConfig)
	case c.Threshold < 0:
		return fmt.Errorf("%w: threshold must be >= 0", ErrInvalidConfig)
	case c.L2 < 0 || c.Decay < 0:
		return fmt.Errorf("%w: l2 and decay must be >= 0", ErrInvalidConfig)
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: maxIterations must be > 0", ErrInvalidConfig)
	}
	return nil
}
