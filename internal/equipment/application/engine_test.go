package application

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	alarmapp "plant-scada/internal/alarms/application"
	alarms "plant-scada/internal/alarms/domain"
	equipment "plant-scada/internal/equipment/domain"
	"plant-scada/internal/equipment/infrastructure/memory"
	"plant-scada/internal/observability/inrushlog"
)

type stubSink struct {
	mu       sync.Mutex
	created  []alarms.Event
	resolved []string
}

func (s *stubSink) Create(_ context.Context, eq *equipment.Equipment, severity alarms.Severity, typ alarms.Type, message string, _ *alarmapp.CreateParams) (*alarms.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := alarms.Event{
		ID:          "al-" + message,
		EquipmentID: eq.ID,
		Severity:    severity,
		Type:        typ,
		Message:     message,
	}
	s.created = append(s.created, event)
	return &event, nil
}

func (s *stubSink) AutoResolve(_ context.Context, eq *equipment.Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, eq.ID)
	return nil
}

func (s *stubSink) byType(typ alarms.Type) []alarms.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []alarms.Event
	for _, event := range s.created {
		if event.Type == typ {
			out = append(out, event)
		}
	}
	return out
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "test ", log.LstdFlags)
}

func newTestEngine(t *testing.T, units ...*equipment.Equipment) (*Engine, *memory.Repository, *stubSink, *fakeClock) {
	t.Helper()
	repo := memory.NewRepository()
	for _, eq := range units {
		if err := repo.Save(context.Background(), eq); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	clock := newFakeClock()
	sink := &stubSink{}
	gate := NewInterlockGate(5*time.Second, clock)
	engine, err := NewEngine(repo, gate, sink, testLogger(),
		WithEngineClock(clock),
		WithTransitionDelays(0, 0),
		WithInrushLog(inrushlog.NewRing(inrushlog.DefaultCapacity)),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, repo, sink, clock
}

func stoppedMotor(id string) *equipment.Equipment {
	return &equipment.Equipment{
		ID: id, Name: id, Type: equipment.TypeMotor,
		Status:         equipment.StatusStopped,
		NominalCurrent: 45, Voltage: 380,
		ActivePower: 22, ReactivePower: 10,
		Motor: &equipment.MotorSpec{Poles: 4, InsulationClass: "F"},
	}
}

func TestEngineStart_HappyPath(t *testing.T) {
	engine, repo, sink, _ := newTestEngine(t, stoppedMotor("motor-001"))

	eq, err := engine.Start(context.Background(), "motor-001")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if eq.Status != equipment.StatusRunning {
		t.Fatalf("expected RUNNING, got %s", eq.Status)
	}
	if math.Abs(eq.Current-36) > 1e-9 {
		t.Fatalf("expected current 36 A (80%% of nominal), got %v", eq.Current)
	}
	wantPower := 45 * 380 * math.Sqrt(3) / 1000 * 0.8
	if math.Abs(eq.Power-wantPower) > 1e-9 {
		t.Fatalf("expected power %v kW, got %v", wantPower, eq.Power)
	}
	wantPF := 22 / math.Sqrt(22*22+10*10)
	if math.Abs(eq.PowerFactor-wantPF) > 1e-9 {
		t.Fatalf("expected power factor %v, got %v", wantPF, eq.PowerFactor)
	}

	stored, err := repo.Get(context.Background(), "motor-001")
	if err != nil || stored == nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Status != equipment.StatusRunning {
		t.Fatalf("stored status %s", stored.Status)
	}
	if got := sink.byType(alarms.TypeSystem); len(got) != 1 {
		t.Fatalf("expected one SYSTEM start alarm, got %d", len(got))
	}
}

func TestEngineStart_InvalidTransition(t *testing.T) {
	running := stoppedMotor("motor-001")
	running.Status = equipment.StatusRunning
	running.Current = 36
	engine, repo, sink, _ := newTestEngine(t, running)

	_, err := engine.Start(context.Background(), "motor-001")
	var transitionErr *equipment.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	stored, _ := repo.Get(context.Background(), "motor-001")
	if stored.Status != equipment.StatusRunning || stored.Current != 36 {
		t.Fatal("failed start must not mutate the equipment")
	}
	if len(sink.created) != 0 {
		t.Fatalf("failed start must not raise alarms, got %d", len(sink.created))
	}
}

func TestEngineStart_UnknownEquipment(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	_, err := engine.Start(context.Background(), "ghost")
	if !errors.Is(err, equipment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEngineStart_InterlockBlocksSecondMotor(t *testing.T) {
	engine, _, _, clock := newTestEngine(t, stoppedMotor("motor-001"), stoppedMotor("motor-002"))

	if _, err := engine.Start(context.Background(), "motor-001"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	clock.advance(time.Second)
	_, err := engine.Start(context.Background(), "motor-002")
	var interlockErr *equipment.InterlockActiveError
	if !errors.As(err, &interlockErr) {
		t.Fatalf("expected InterlockActiveError, got %v", err)
	}
	clock.advance(5 * time.Second)
	if _, err := engine.Start(context.Background(), "motor-002"); err != nil {
		t.Fatalf("start after window: %v", err)
	}
}

func TestEngineStart_HighInrushAlarm(t *testing.T) {
	capacitor := &equipment.Equipment{
		ID: "capacitor-001", Name: "bank", Type: equipment.TypeCapacitor,
		Status:         equipment.StatusStopped,
		NominalCurrent: 1, Voltage: 380, CapacitanceUF: 150,
	}
	engine, _, sink, _ := newTestEngine(t, capacitor)

	if _, err := engine.Start(context.Background(), "capacitor-001"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	inrushAlarms := sink.byType(alarms.TypeInrushHigh)
	if len(inrushAlarms) != 1 {
		t.Fatalf("expected one INRUSH_HIGH alarm, got %d", len(inrushAlarms))
	}
	if inrushAlarms[0].Severity != alarms.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", inrushAlarms[0].Severity)
	}
	if got := sink.byType(alarms.TypeSystem); len(got) != 1 {
		t.Fatal("high inrush must not block the start itself")
	}
}

func TestEngineStop(t *testing.T) {
	running := stoppedMotor("motor-001")
	running.Status = equipment.StatusRunning
	running.Current = 36
	running.Power = 20
	running.Motor.RPM = 1780
	running.Motor.Torque = 110
	engine, repo, _, _ := newTestEngine(t, running)

	eq, err := engine.Stop(context.Background(), "motor-001")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if eq.Status != equipment.StatusStopped {
		t.Fatalf("expected STOPPED, got %s", eq.Status)
	}
	if eq.Current != 0 || eq.Power != 0 || eq.ActivePower != 0 || eq.ReactivePower != 0 {
		t.Fatal("stop must zero the live electrical values")
	}
	if eq.Motor.RPM != 0 || eq.Motor.Torque != 0 {
		t.Fatal("stop must zero motor rpm and torque")
	}

	stored, _ := repo.Get(context.Background(), "motor-001")
	if stored.Status != equipment.StatusStopped {
		t.Fatalf("stored status %s", stored.Status)
	}

	_, err = engine.Stop(context.Background(), "motor-001")
	var transitionErr *equipment.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidTransitionError on double stop, got %v", err)
	}
}

func TestEngineEmergencyStopAll(t *testing.T) {
	var units []*equipment.Equipment
	for _, id := range []string{"motor-001", "motor-002", "motor-003"} {
		eq := stoppedMotor(id)
		eq.Status = equipment.StatusRunning
		eq.Current = 36
		units = append(units, eq)
	}
	idle := stoppedMotor("motor-004")
	trafo := &equipment.Equipment{
		ID: "transformer-001", Type: equipment.TypeTransformer,
		Status: equipment.StatusStopped, NominalCurrent: 120, Voltage: 380,
		Transformer: &equipment.TransformerSpec{OilLevel: 0.9},
	}
	units = append(units, idle, trafo)
	engine, repo, sink, clock := newTestEngine(t, units...)

	if err := engine.EmergencyStopAll(context.Background()); err != nil {
		t.Fatalf("EmergencyStopAll: %v", err)
	}
	if !engine.EmergencyActive() {
		t.Fatal("emergency latch should be set")
	}

	emergencyAlarms := sink.byType(alarms.TypeEmergencyStop)
	if len(emergencyAlarms) != 3 {
		t.Fatalf("expected 3 EMERGENCY_STOP alarms, got %d", len(emergencyAlarms))
	}
	for _, event := range emergencyAlarms {
		if event.Severity != alarms.SeverityCritical {
			t.Fatalf("expected CRITICAL, got %s", event.Severity)
		}
	}
	all, _ := repo.ListAll(context.Background())
	for _, eq := range all {
		if eq.Status == equipment.StatusRunning {
			t.Fatalf("unit %s still running", eq.ID)
		}
		if eq.Current != 0 || eq.Power != 0 {
			t.Fatalf("unit %s not zeroed", eq.ID)
		}
	}

	clock.advance(time.Minute)
	if _, err := engine.Start(context.Background(), "motor-004"); err != nil {
		t.Fatalf("restart after emergency: %v", err)
	}
	if engine.EmergencyActive() {
		t.Fatal("latch should clear on successful start")
	}
}

func TestAdjustInverterFrequency(t *testing.T) {
	inverter := &equipment.Equipment{
		ID: "inverter-001", Type: equipment.TypeInverter,
		Status:         equipment.StatusRunning,
		NominalCurrent: 25, Voltage: 380,
		Inverter: &equipment.InverterSpec{
			FrequencySetpoint: 50, OutputFrequency: 50,
			MinFrequency: 20, MaxFrequency: 60, MotorPoles: 4,
		},
	}
	engine, _, _, _ := newTestEngine(t, inverter, stoppedMotor("motor-001"))

	eq, err := engine.AdjustInverterFrequency(context.Background(), "inverter-001", 55)
	if err != nil {
		t.Fatalf("AdjustInverterFrequency: %v", err)
	}
	if eq.Inverter.FrequencySetpoint != 55 || eq.Inverter.OutputFrequency != 55 {
		t.Fatalf("setpoint/output not applied: %+v", eq.Inverter)
	}

	_, err = engine.AdjustInverterFrequency(context.Background(), "inverter-001", 75)
	var freqErr *equipment.InvalidFrequencyError
	if !errors.As(err, &freqErr) {
		t.Fatalf("expected InvalidFrequencyError, got %v", err)
	}

	_, err = engine.AdjustInverterFrequency(context.Background(), "motor-001", 55)
	if !errors.Is(err, equipment.ErrNotAnInverter) {
		t.Fatalf("expected ErrNotAnInverter, got %v", err)
	}
}

func TestCheckThresholds(t *testing.T) {
	overloaded := stoppedMotor("motor-001")
	overloaded.Status = equipment.StatusRunning
	overloaded.Current = 54 // 120% of nominal
	overloaded.Temperature = 85

	vibrating := stoppedMotor("motor-002")
	vibrating.Status = equipment.StatusRunning
	vibrating.Current = 30
	vibrating.Motor.VibrationLevel = 8.5

	trafo := &equipment.Equipment{
		ID: "transformer-001", Type: equipment.TypeTransformer,
		Status: equipment.StatusRunning, NominalCurrent: 120, Voltage: 380, Current: 100,
		Transformer: &equipment.TransformerSpec{OilLevel: 0.55, OilTemperature: 98},
	}
	healthy := stoppedMotor("motor-003")

	engine, _, sink, _ := newTestEngine(t, overloaded, vibrating, trafo, healthy)

	if err := engine.CheckThresholds(context.Background()); err != nil {
		t.Fatalf("CheckThresholds: %v", err)
	}

	if got := sink.byType(alarms.TypeOverload); len(got) != 1 {
		t.Fatalf("expected 1 overload alarm, got %d", len(got))
	}
	if got := sink.byType(alarms.TypeOvertemperature); len(got) != 1 {
		t.Fatalf("expected 1 overtemperature alarm, got %d", len(got))
	}
	if got := sink.byType(alarms.TypeVibration); len(got) != 1 {
		t.Fatalf("expected 1 vibration alarm, got %d", len(got))
	}
	if got := sink.byType(alarms.TypeLowOilLevel); len(got) != 1 {
		t.Fatalf("expected 1 low oil level alarm, got %d", len(got))
	}
	if got := sink.byType(alarms.TypeHighOilTemperature); len(got) != 1 {
		t.Fatalf("expected 1 high oil temperature alarm, got %d", len(got))
	}
	if len(sink.resolved) != 4 {
		t.Fatalf("auto-resolve should run for every unit, got %d", len(sink.resolved))
	}
}

func TestCheckThresholds_MotorOverheatByClass(t *testing.T) {
	motor := stoppedMotor("motor-001")
	motor.Status = equipment.StatusRunning
	motor.Current = 30
	motor.Motor.InsulationClass = "A" // limit 105
	motor.Temperature = 110
	engine, _, sink, _ := newTestEngine(t, motor)

	if err := engine.CheckThresholds(context.Background()); err != nil {
		t.Fatalf("CheckThresholds: %v", err)
	}
	events := sink.byType(alarms.TypeOvertemperature)
	// 110 > 80 generic and 110 > 105 class limit
	if len(events) != 2 {
		t.Fatalf("expected generic plus class overtemperature alarms, got %d", len(events))
	}
	critical := 0
	for _, event := range events {
		if event.Severity == alarms.SeverityCritical {
			critical++
		}
	}
	if critical != 1 {
		t.Fatalf("expected exactly one CRITICAL class alarm, got %d", critical)
	}
}
