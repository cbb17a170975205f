package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	alarmapp "plant-scada/internal/alarms/application"
	alarms "plant-scada/internal/alarms/domain"
	equipment "plant-scada/internal/equipment/domain"
	"plant-scada/internal/observability/inrushlog"
	"plant-scada/internal/observability/metrics"
)

// Transition delays simulating the physical start/stop ramp.
const (
	DefaultStartupDelay  = 100 * time.Millisecond
	DefaultShutdownDelay = 50 * time.Millisecond
)

// Threshold constants for the periodic sweep.
const (
	overloadThresholdPercent = 110.0
	overtempThresholdCelsius = 80.0

	inrushAlarmFactor = 12.0
	runningLoadFactor = 0.8
)

// AlarmSink is the slice of the alarm lifecycle the engine drives.
type AlarmSink interface {
	Create(ctx context.Context, eq *equipment.Equipment, severity alarms.Severity, typ alarms.Type, message string, params *alarmapp.CreateParams) (*alarms.Event, error)
	AutoResolve(ctx context.Context, eq *equipment.Equipment) error
}

// InrushLog receives inrush event records for observability.
type InrushLog interface {
	Add(entry inrushlog.Entry)
}

// Engine orchestrates equipment start/stop transitions, the interlock gate,
// the inrush model and threshold-driven alarms. Operations on different
// equipment run concurrently; operations on the same equipment id are
// serialized through a per-equipment lock.
type Engine struct {
	repo  equipment.Repository
	gate  *InterlockGate
	sink  AlarmSink
	ring  InrushLog
	clock Clock

	startupDelay  time.Duration
	shutdownDelay time.Duration
	logger        *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	latchMu         sync.Mutex
	emergencyActive bool
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithTransitionDelays overrides the simulated ramp delays.
func WithTransitionDelays(startup, shutdown time.Duration) EngineOption {
	return func(e *Engine) {
		if startup >= 0 {
			e.startupDelay = startup
		}
		if shutdown >= 0 {
			e.shutdownDelay = shutdown
		}
	}
}

// WithEngineClock assigns a clock.
func WithEngineClock(clock Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithInrushLog assigns the inrush event recorder.
func WithInrushLog(ring InrushLog) EngineOption {
	return func(e *Engine) {
		e.ring = ring
	}
}

// NewEngine constructs a control engine.
func NewEngine(repo equipment.Repository, gate *InterlockGate, sink AlarmSink, logger *log.Logger, opts ...EngineOption) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("engine: nil repository")
	}
	if gate == nil {
		return nil, errors.New("engine: nil interlock gate")
	}
	if sink == nil {
		return nil, errors.New("engine: nil alarm sink")
	}
	engine := &Engine{
		repo:          repo,
		gate:          gate,
		sink:          sink,
		clock:         systemClock{},
		startupDelay:  DefaultStartupDelay,
		shutdownDelay: DefaultShutdownDelay,
		logger:        logger,
		locks:         make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Start runs the start sequence for one equipment: precondition check,
// interlock admission, inrush computation, STARTING, ramp delay, RUNNING.
// The inrush alarm is informational and never blocks the start.
func (e *Engine) Start(ctx context.Context, id string) (*equipment.Equipment, error) {
	began := e.clock.Now()
	eq, err := e.start(ctx, id)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		var interlockErr *equipment.InterlockActiveError
		if errors.As(err, &interlockErr) {
			result = metrics.ResultDenied
			metrics.IncInterlockDenial()
		}
	}
	metrics.ObserveStart(result, e.clock.Now().Sub(began))
	return eq, err
}

func (e *Engine) start(ctx context.Context, id string) (*equipment.Equipment, error) {
	unlock := e.lock(id)
	defer unlock()

	eq, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, equipment.ErrNotFound
	}
	if !eq.CanStart() {
		return nil, &equipment.InvalidTransitionError{ID: id, From: eq.Status, Action: "start"}
	}
	if err := e.gate.Admit(eq); err != nil {
		return nil, err
	}

	inrush := eq.InrushCurrent()
	e.recordInrush(eq, inrush)

	if eq.NominalCurrent > 0 && inrush > eq.NominalCurrent*inrushAlarmFactor {
		factor := inrush / eq.NominalCurrent
		threshold := eq.NominalCurrent * inrushAlarmFactor
		_, _ = e.sink.Create(ctx, eq, alarms.SeverityCritical, alarms.TypeInrushHigh,
			fmt.Sprintf("inrush current too high: %.2f A (%.1fx nominal)", inrush, factor),
			&alarmapp.CreateParams{Value: &inrush, Threshold: &threshold})
	}

	eq.Status = equipment.StatusStarting
	eq.UpdatedAt = e.clock.Now()
	if err := e.repo.Save(ctx, eq); err != nil {
		return nil, err
	}

	if err := e.wait(ctx, e.startupDelay); err != nil {
		return nil, err
	}

	eq.Status = equipment.StatusRunning
	eq.Current = eq.NominalCurrent * runningLoadFactor
	eq.Power = eq.NominalCurrent * eq.Voltage * math.Sqrt(3) / 1000 * runningLoadFactor
	eq.UpdatePowerFactor()
	eq.UpdatedAt = e.clock.Now()
	if err := e.repo.Save(ctx, eq); err != nil {
		return nil, err
	}

	e.latchMu.Lock()
	e.emergencyActive = false
	e.latchMu.Unlock()

	_, _ = e.sink.Create(ctx, eq, alarms.SeverityInfo, alarms.TypeSystem, "equipment started", nil)
	if e.logger != nil {
		e.logger.Printf("equipment started: %s (%s)", eq.Name, eq.ID)
	}
	return eq, nil
}

// Stop runs the stop sequence: STOPPING, ramp delay, STOPPED with live
// electrical values zeroed.
func (e *Engine) Stop(ctx context.Context, id string) (*equipment.Equipment, error) {
	unlock := e.lock(id)
	defer unlock()

	eq, err := e.repo.Get(ctx, id)
	if err != nil {
		metrics.IncStop(metrics.ResultError)
		return nil, err
	}
	if eq == nil {
		metrics.IncStop(metrics.ResultError)
		return nil, equipment.ErrNotFound
	}
	if !eq.CanStop() {
		metrics.IncStop(metrics.ResultError)
		return nil, &equipment.InvalidTransitionError{ID: id, From: eq.Status, Action: "stop"}
	}

	eq.Status = equipment.StatusStopping
	eq.UpdatedAt = e.clock.Now()
	if err := e.repo.Save(ctx, eq); err != nil {
		metrics.IncStop(metrics.ResultError)
		return nil, err
	}

	if err := e.wait(ctx, e.shutdownDelay); err != nil {
		metrics.IncStop(metrics.ResultError)
		return nil, err
	}

	eq.Status = equipment.StatusStopped
	zeroLiveValues(eq)
	eq.UpdatedAt = e.clock.Now()
	if err := e.repo.Save(ctx, eq); err != nil {
		metrics.IncStop(metrics.ResultError)
		return nil, err
	}

	_, _ = e.sink.Create(ctx, eq, alarms.SeverityInfo, alarms.TypeSystem, "equipment stopped", nil)
	if e.logger != nil {
		e.logger.Printf("equipment stopped: %s (%s)", eq.Name, eq.ID)
	}
	metrics.IncStop(metrics.ResultSuccess)
	return eq, nil
}

// EmergencyStopAll force-stops every RUNNING unit. It bypasses the interlock
// gate and the normal precondition checks and never fails on them; a store
// failure on one unit does not abort the rest.
func (e *Engine) EmergencyStopAll(ctx context.Context) error {
	metrics.IncEmergencyStop()
	e.latchMu.Lock()
	e.emergencyActive = true
	e.latchMu.Unlock()
	if e.logger != nil {
		e.logger.Printf("EMERGENCY STOP activated")
	}

	running, err := e.repo.ListByStatus(ctx, equipment.StatusRunning)
	if err != nil {
		return err
	}
	var firstErr error
	for _, eq := range running {
		unlock := e.lock(eq.ID)
		eq.Status = equipment.StatusStopped
		zeroLiveValues(eq)
		eq.UpdatedAt = e.clock.Now()
		if err := e.repo.Save(ctx, eq); err != nil {
			unlock()
			if firstErr == nil {
				firstErr = err
			}
			if e.logger != nil {
				e.logger.Printf("emergency stop save failed: %s: %v", eq.ID, err)
			}
			continue
		}
		unlock()
		_, _ = e.sink.Create(ctx, eq, alarms.SeverityCritical, alarms.TypeEmergencyStop, "emergency stop activated", nil)
	}
	return firstErr
}

// AdjustInverterFrequency validates and applies a frequency setpoint. When
// the inverter is running, the live output frequency and the derived motor
// speed follow the setpoint immediately.
func (e *Engine) AdjustInverterFrequency(ctx context.Context, id string, targetHz float64) (*equipment.Equipment, error) {
	unlock := e.lock(id)
	defer unlock()

	eq, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, equipment.ErrNotFound
	}
	if eq.Type != equipment.TypeInverter || eq.Inverter == nil {
		return nil, equipment.ErrNotAnInverter
	}
	inv := eq.Inverter
	if !inv.FrequencyValid(targetHz) {
		return nil, &equipment.InvalidFrequencyError{Target: targetHz, Min: inv.MinFrequency, Max: inv.MaxFrequency}
	}

	inv.FrequencySetpoint = targetHz
	if eq.IsRunning() {
		inv.OutputFrequency = targetHz
		if eq.Motor != nil {
			eq.Motor.RPM = inv.MotorSpeed()
		}
	}
	eq.UpdatedAt = e.clock.Now()
	if err := e.repo.Save(ctx, eq); err != nil {
		return nil, err
	}
	return eq, nil
}

// CheckThresholds sweeps every equipment, raising threshold alarms and then
// auto-resolving the ones whose condition has cleared. One equipment's
// failure never aborts the sweep.
func (e *Engine) CheckThresholds(ctx context.Context) error {
	began := e.clock.Now()
	all, err := e.repo.ListAll(ctx)
	if err != nil {
		metrics.ObserveSweep(metrics.ResultError, e.clock.Now().Sub(began))
		return err
	}

	running := 0
	var firstErr error
	for _, eq := range all {
		if eq.IsRunning() {
			running++
		}
		if err := e.checkOne(ctx, eq); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if e.logger != nil {
				e.logger.Printf("threshold check failed: %s: %v", eq.ID, err)
			}
		}
	}
	metrics.SetRunningUnits(running)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	}
	metrics.ObserveSweep(result, e.clock.Now().Sub(began))
	return firstErr
}

func (e *Engine) checkOne(ctx context.Context, eq *equipment.Equipment) error {
	if eq.NominalCurrent > 0 {
		load := eq.LoadPercent()
		if load > overloadThresholdPercent {
			threshold := overloadThresholdPercent
			if _, err := e.sink.Create(ctx, eq, alarms.SeverityHigh, alarms.TypeOverload,
				fmt.Sprintf("overload: %.1f%% of nominal current", load),
				&alarmapp.CreateParams{Value: &load, Threshold: &threshold}); err != nil {
				return err
			}
		}
	}

	if eq.Temperature > overtempThresholdCelsius {
		temp := eq.Temperature
		threshold := overtempThresholdCelsius
		if _, err := e.sink.Create(ctx, eq, alarms.SeverityHigh, alarms.TypeOvertemperature,
			fmt.Sprintf("high temperature: %.1f °C", temp),
			&alarmapp.CreateParams{Value: &temp, Threshold: &threshold}); err != nil {
			return err
		}
	}

	switch eq.Type {
	case equipment.TypeMotor:
		if err := e.checkMotor(ctx, eq); err != nil {
			return err
		}
	case equipment.TypeTransformer:
		if err := e.checkTransformer(ctx, eq); err != nil {
			return err
		}
	}

	return e.sink.AutoResolve(ctx, eq)
}

func (e *Engine) checkMotor(ctx context.Context, eq *equipment.Equipment) error {
	motor := eq.Motor
	if motor == nil {
		return nil
	}
	if limit := motor.OverheatLimit(); eq.Temperature > limit {
		temp := eq.Temperature
		if _, err := e.sink.Create(ctx, eq, alarms.SeverityCritical, alarms.TypeOvertemperature,
			fmt.Sprintf("motor overheated: %.1f °C (class %s limit exceeded)", temp, motor.InsulationClass),
			&alarmapp.CreateParams{Value: &temp, Threshold: &limit}); err != nil {
			return err
		}
	}
	if motor.HasExcessiveVibration() {
		vib := motor.VibrationLevel
		threshold := equipment.MaxVibration
		if _, err := e.sink.Create(ctx, eq, alarms.SeverityMedium, alarms.TypeVibration,
			fmt.Sprintf("excessive vibration: %.2f mm/s", vib),
			&alarmapp.CreateParams{Value: &vib, Threshold: &threshold}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkTransformer(ctx context.Context, eq *equipment.Equipment) error {
	trafo := eq.Transformer
	if trafo == nil {
		return nil
	}
	if trafo.OilLevelLow() {
		level := trafo.OilLevel * 100
		threshold := 70.0
		if _, err := e.sink.Create(ctx, eq, alarms.SeverityHigh, alarms.TypeLowOilLevel,
			fmt.Sprintf("low oil level: %.1f%%", level),
			&alarmapp.CreateParams{Value: &level, Threshold: &threshold}); err != nil {
			return err
		}
	}
	if trafo.OilTemperatureHigh() {
		temp := trafo.OilTemperature
		threshold := 95.0
		if _, err := e.sink.Create(ctx, eq, alarms.SeverityHigh, alarms.TypeHighOilTemperature,
			fmt.Sprintf("high oil temperature: %.1f °C", temp),
			&alarmapp.CreateParams{Value: &temp, Threshold: &threshold}); err != nil {
			return err
		}
	}
	return nil
}

// EmergencyActive reports whether the emergency stop latch is set. The latch
// clears on the next successful start.
func (e *Engine) EmergencyActive() bool {
	if e == nil {
		return false
	}
	e.latchMu.Lock()
	defer e.latchMu.Unlock()
	return e.emergencyActive
}

// Gate exposes the interlock gate for status reporting.
func (e *Engine) Gate() *InterlockGate {
	return e.gate
}

func (e *Engine) recordInrush(eq *equipment.Equipment, inrush float64) {
	factor := 0.0
	if eq.NominalCurrent > 0 {
		factor = inrush / eq.NominalCurrent
	}
	alarm := eq.NominalCurrent > 0 && inrush > eq.NominalCurrent*inrushAlarmFactor
	metrics.IncInrushEvent(alarm)
	if e.ring == nil {
		return
	}
	e.ring.Add(inrushlog.Entry{
		Timestamp:      e.clock.Now(),
		EquipmentID:    eq.ID,
		EquipmentName:  eq.Name,
		InrushCurrent:  inrush,
		NominalCurrent: eq.NominalCurrent,
		InrushFactor:   factor,
		Alarm:          alarm,
	})
}

// wait blocks for the transition delay, honoring process shutdown.
func (e *Engine) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) lock(id string) func() {
	e.mu.Lock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func zeroLiveValues(eq *equipment.Equipment) {
	eq.Current = 0
	eq.Power = 0
	eq.ActivePower = 0
	eq.ReactivePower = 0
	if eq.Motor != nil {
		eq.Motor.RPM = 0
		eq.Motor.Torque = 0
	}
	if eq.Inverter != nil {
		eq.Inverter.OutputFrequency = 0
	}
}
