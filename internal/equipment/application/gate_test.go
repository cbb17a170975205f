package application

import (
	"errors"
	"testing"
	"time"

	equipment "plant-scada/internal/equipment/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestInterlockGate_SecondMotorDeniedInsideWindow(t *testing.T) {
	clock := newFakeClock()
	gate := NewInterlockGate(5*time.Second, clock)
	first := &equipment.Equipment{ID: "motor-001", Type: equipment.TypeMotor}
	second := &equipment.Equipment{ID: "motor-002", Type: equipment.TypeMotor}

	if err := gate.Admit(first); err != nil {
		t.Fatalf("first motor should be admitted: %v", err)
	}

	clock.advance(2 * time.Second)
	err := gate.Admit(second)
	if err == nil {
		t.Fatal("second motor should be denied inside the window")
	}
	var interlockErr *equipment.InterlockActiveError
	if !errors.As(err, &interlockErr) {
		t.Fatalf("expected InterlockActiveError, got %T", err)
	}
	if interlockErr.Remaining != 3*time.Second {
		t.Fatalf("expected 3s remaining, got %v", interlockErr.Remaining)
	}
}

func TestInterlockGate_AdmitsAfterWindowElapses(t *testing.T) {
	clock := newFakeClock()
	gate := NewInterlockGate(5*time.Second, clock)
	first := &equipment.Equipment{ID: "motor-001", Type: equipment.TypeMotor}
	second := &equipment.Equipment{ID: "motor-002", Type: equipment.TypeMotor}

	if err := gate.Admit(first); err != nil {
		t.Fatalf("first motor: %v", err)
	}
	clock.advance(5 * time.Second)
	if err := gate.Admit(second); err != nil {
		t.Fatalf("second motor should pass after the window: %v", err)
	}
	if got := gate.LastMotorStart(); !got.Equal(clock.now) {
		t.Fatalf("shared timestamp not advanced: %v", got)
	}
}

func TestInterlockGate_NonMotorBypasses(t *testing.T) {
	clock := newFakeClock()
	gate := NewInterlockGate(5*time.Second, clock)
	motor := &equipment.Equipment{ID: "motor-001", Type: equipment.TypeMotor}
	transformer := &equipment.Equipment{ID: "transformer-001", Type: equipment.TypeTransformer}

	if err := gate.Admit(motor); err != nil {
		t.Fatalf("motor: %v", err)
	}
	clock.advance(time.Second)
	if err := gate.Admit(transformer); err != nil {
		t.Fatalf("transformer should bypass the motor interlock: %v", err)
	}
	if shared := gate.LastMotorStart(); shared.Equal(clock.now) {
		t.Fatal("non-motor start must not move the shared motor timestamp")
	}
	if _, ok := gate.LastStart("transformer-001"); !ok {
		t.Fatal("non-motor start should still be recorded in history")
	}
}

func TestInterlockGate_RemainingTimeNeverNegative(t *testing.T) {
	clock := newFakeClock()
	gate := NewInterlockGate(5*time.Second, clock)
	motor := &equipment.Equipment{ID: "motor-001", Type: equipment.TypeMotor}

	if got := gate.RemainingTime(); got != 0 {
		t.Fatalf("expected 0 before any start, got %v", got)
	}
	if err := gate.Admit(motor); err != nil {
		t.Fatalf("motor: %v", err)
	}
	clock.advance(time.Minute)
	if got := gate.RemainingTime(); got != 0 {
		t.Fatalf("expected 0 after window elapsed, got %v", got)
	}
}

func TestInterlockGate_CanStartIsReadOnly(t *testing.T) {
	clock := newFakeClock()
	gate := NewInterlockGate(5*time.Second, clock)
	motor := &equipment.Equipment{ID: "motor-001", Type: equipment.TypeMotor}

	ok, remaining := gate.CanStart(motor)
	if !ok || remaining != 0 {
		t.Fatalf("expected clear gate, got ok=%v remaining=%v", ok, remaining)
	}
	if !gate.LastMotorStart().IsZero() {
		t.Fatal("CanStart must not stamp the gate")
	}
}
