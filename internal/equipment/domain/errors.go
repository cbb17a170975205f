package equipment

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a missing equipment record.
var ErrNotFound = errors.New("equipment: not found")

// ErrNotAnInverter indicates a frequency adjustment on a non-inverter unit.
var ErrNotAnInverter = errors.New("equipment: not an inverter")

// InvalidTransitionError reports a start/stop attempted from an ineligible
// status. The equipment is left untouched.
type InvalidTransitionError struct {
	ID     string
	From   Status
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("equipment %s: cannot %s from status %s", e.ID, e.Action, e.From)
}

// InterlockActiveError reports a motor start denied by the interlock gate.
type InterlockActiveError struct {
	Remaining time.Duration
}

func (e *InterlockActiveError) Error() string {
	return fmt.Sprintf("interlock active: wait %ds before next motor start", int(e.Remaining.Seconds()))
}

// InvalidFrequencyError reports a setpoint outside the inverter's band.
type InvalidFrequencyError struct {
	Target float64
	Min    float64
	Max    float64
}

func (e *InvalidFrequencyError) Error() string {
	return fmt.Sprintf("invalid frequency %.2f Hz: must be between %.2f and %.2f Hz", e.Target, e.Min, e.Max)
}
