package application

import (
	"sync"
	"time"

	equipment "plant-scada/internal/equipment/domain"
)

// DefaultInterlockWindow is the dead time between motor starts, protecting
// the feeder transformer from overlapping inrush draws.
const DefaultInterlockWindow = 5 * time.Second

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// InterlockGate serializes motor starts across the whole plant. It owns a
// single shared value, the timestamp of the most recent motor start; the
// check-then-stamp in Admit runs under one lock so two racing motors cannot
// both pass the gate.
type InterlockGate struct {
	mu             sync.Mutex
	window         time.Duration
	clock          Clock
	lastMotorStart time.Time
	startHistory   map[string]time.Time
}

// NewInterlockGate constructs a gate with the given dead-time window.
func NewInterlockGate(window time.Duration, clock Clock) *InterlockGate {
	if window <= 0 {
		window = DefaultInterlockWindow
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &InterlockGate{
		window:       window,
		clock:        clock,
		startHistory: make(map[string]time.Time),
	}
}

// Admit atomically checks the gate and, when admitted, records the start.
// Non-motor types are always admitted; their starts are kept in the
// per-equipment history but do not move the shared motor timestamp.
func (g *InterlockGate) Admit(eq *equipment.Equipment) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if eq.Type == equipment.TypeMotor && !g.lastMotorStart.IsZero() {
		elapsed := now.Sub(g.lastMotorStart)
		if elapsed < g.window {
			return &equipment.InterlockActiveError{Remaining: g.window - elapsed}
		}
	}

	g.startHistory[eq.ID] = now
	if eq.Type == equipment.TypeMotor {
		g.lastMotorStart = now
	}
	return nil
}

// CanStart reports, without mutating the gate, whether eq would be admitted
// right now. For denied motors it also returns the remaining wait.
func (g *InterlockGate) CanStart(eq *equipment.Equipment) (bool, time.Duration) {
	if eq.Type != equipment.TypeMotor {
		return true, 0
	}
	remaining := g.RemainingTime()
	return remaining == 0, remaining
}

// RemainingTime is the time left in the dead-time window, clamped to >= 0.
func (g *InterlockGate) RemainingTime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastMotorStart.IsZero() {
		return 0
	}
	remaining := g.window - g.clock.Now().Sub(g.lastMotorStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LastMotorStart returns the shared motor start timestamp, zero when none.
func (g *InterlockGate) LastMotorStart() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastMotorStart
}

// LastStart returns the recorded start time for one equipment.
func (g *InterlockGate) LastStart(equipmentID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts, ok := g.startHistory[equipmentID]
	return ts, ok
}

// Reset clears the gate state. Intended for tests.
func (g *InterlockGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastMotorStart = time.Time{}
	g.startHistory = make(map[string]time.Time)
}
