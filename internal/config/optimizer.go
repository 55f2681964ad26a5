package config

import (
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/pkg/constants"
)

// OptimizerConfig defines the allocation run parameters.
type OptimizerConfig struct {
	TargetTotal float64 `yaml:"targetTotal,omitempty" mapstructure:"targetTotal"`
	// SmoothnessWeight is a pointer so that an explicit 0 is kept.
	SmoothnessWeight *float64  `yaml:"smoothnessWeight,omitempty" mapstructure:"smoothnessWeight"`
	Tolerance        float64   `yaml:"tolerance,omitempty" mapstructure:"tolerance"`
	MaxIterations    int       `yaml:"maxIterations,omitempty" mapstructure:"maxIterations"`
	Penalty          float64   `yaml:"penalty,omitempty" mapstructure:"penalty"`
	RecordLimit      int       `yaml:"recordLimit,omitempty" mapstructure:"recordLimit"`
	Timeout          string    `yaml:"timeout,omitempty" mapstructure:"timeout"`
	SweepWeights     []float64 `yaml:"sweepWeights,omitempty" mapstructure:"sweepWeights"`
	SweepWorkers     int       `yaml:"sweepWorkers,omitempty" mapstructure:"sweepWorkers"`
}

// Normalize fills unset values with defaults. Values that are set but
// invalid are left for Validate to report.
func (o *OptimizerConfig) Normalize() {
	if o == nil {
		return
	}
	if o.TargetTotal == 0 {
		o.TargetTotal = constants.DefaultTargetTotal
	}
	if o.SmoothnessWeight == nil {
		weight := constants.DefaultSmoothnessWeight
		o.SmoothnessWeight = &weight
	}
	if o.Tolerance == 0 {
		o.Tolerance = constants.DefaultTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = constants.DefaultMaxIterations
	}
	if o.Penalty == 0 {
		o.Penalty = constants.DefaultPenalty
	}
	if o.RecordLimit == 0 {
		o.RecordLimit = constants.DefaultRecordLimit
	}
	if o.SweepWorkers == 0 {
		o.SweepWorkers = constants.DefaultSweepWorkers
	}
}

// Validate returns an error when the optimizer configuration is unusable.
func (o *OptimizerConfig) Validate() error {
	if o == nil {
		return fmt.Errorf("optimizer configuration cannot be nil")
	}

	o.Normalize()

	if !(o.TargetTotal > 0) || math.IsInf(o.TargetTotal, 1) {
		return fmt.Errorf("optimizer target total %g must be positive", o.TargetTotal)
	}
	if !(*o.SmoothnessWeight >= 0) || math.IsInf(*o.SmoothnessWeight, 1) {
		return fmt.Errorf("optimizer smoothness weight %g must not be negative", *o.SmoothnessWeight)
	}
	if !(o.Tolerance > 0) {
		return fmt.Errorf("optimizer tolerance %g must be positive", o.Tolerance)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("optimizer max iterations %d must be at least 1", o.MaxIterations)
	}
	if !(o.Penalty > 0) {
		return fmt.Errorf("optimizer penalty %g must be positive", o.Penalty)
	}
	if o.RecordLimit < 2 {
		return fmt.Errorf("optimizer record limit %d must be at least 2", o.RecordLimit)
	}
	if o.SweepWorkers < 1 {
		return fmt.Errorf("optimizer sweep workers %d must be at least 1", o.SweepWorkers)
	}
	for _, w := range o.SweepWeights {
		if !(w >= 0) {
			return fmt.Errorf("optimizer sweep weight %g must not be negative", w)
		}
	}
	if _, err := o.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// Settings converts the configuration into per-run solver settings.
func (o *OptimizerConfig) Settings() allocation.Settings {
	o.Normalize()
	return allocation.Settings{
		TargetTotal:      o.TargetTotal,
		SmoothnessWeight: *o.SmoothnessWeight,
		Tolerance:        o.Tolerance,
		MaxIterations:    o.MaxIterations,
		Penalty:          o.Penalty,
	}
}

// TimeoutDuration parses the per-run timeout. Empty means no timeout.
func (o *OptimizerConfig) TimeoutDuration() (time.Duration, error) {
	return parseOptionalDuration("optimizer timeout", o.Timeout)
}
