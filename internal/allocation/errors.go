package allocation

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrNumericInstability = errors.New("numeric instability")
	ErrInfeasibleResult   = errors.New("infeasible result")
)

// ConfigurationError reports an invalid series or setting. It is returned
// before any numeric work starts.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s (got %v)", e.Field, e.Reason, e.Value)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NumericInstabilityError aborts a run when the banded system loses positive
// definiteness or the simplex projection cannot restore the total.
type NumericInstabilityError struct {
	Stage  string
	Index  int
	Reason string
}

func (e *NumericInstabilityError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("numeric instability in %s at index %d: %s", e.Stage, e.Index, e.Reason)
	}
	return fmt.Sprintf("numeric instability in %s: %s", e.Stage, e.Reason)
}

// Is matches ErrNumericInstability.
func (e *NumericInstabilityError) Is(target error) bool {
	return target == ErrNumericInstability
}

// InfeasibleResultError is returned when the final allocation violates the
// constraints by more than the numerical slack.
type InfeasibleResultError struct {
	Reason    string
	Sum       float64
	Target    float64
	Min       float64
	Tolerance float64
}

func (e *InfeasibleResultError) Error() string {
	return fmt.Sprintf("infeasible allocation: %s (sum %.9g, target %.9g, min %.9g, slack %.3g)",
		e.Reason, e.Sum, e.Target, e.Min, e.Tolerance)
}

// Is matches ErrInfeasibleResult.
func (e *InfeasibleResultError) Is(target error) bool {
	return target == ErrInfeasibleResult
}
