package application

import (
	"context"
	"errors"
	"time"

	equipment "plant-scada/internal/equipment/domain"
	"plant-scada/internal/observability/metrics"
)

const (
	defaultBusVoltage = 380.0

	basePowerFactor       = 0.95
	motorFactorPenalty    = 0.05
	inverterFactorPenalty = 0.03
	capacitorFactorBoost  = 0.15
	minPlantPowerFactor   = 0.70
	maxPlantPowerFactor   = 0.99
)

// PlantStatus is a point-in-time summary of the whole plant.
type PlantStatus struct {
	Timestamp                 time.Time      `json:"timestamp"`
	TotalUnits                int            `json:"totalUnits"`
	RunningUnits              int            `json:"runningUnits"`
	StatusCounts              map[string]int `json:"statusCounts"`
	TotalCurrent              float64        `json:"totalCurrent"`
	TotalPower                float64        `json:"totalPower"`
	AverageVoltage            float64        `json:"averageVoltage"`
	PlantPowerFactor          float64        `json:"plantPowerFactor"`
	InterlockActive           bool           `json:"interlockActive"`
	InterlockRemainingSeconds float64        `json:"interlockRemainingSeconds"`
	EmergencyActive           bool           `json:"emergencyActive"`
	ActiveAlarms              int64          `json:"activeAlarms"`
}

// AlarmCounter exposes the active alarm count to the status readout.
type AlarmCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// StatusService aggregates equipment, interlock and alarm state.
type StatusService struct {
	repo   equipment.Repository
	engine *Engine
	alarms AlarmCounter
	clock  Clock
}

// NewStatusService constructs a status service.
func NewStatusService(repo equipment.Repository, engine *Engine, alarms AlarmCounter) (*StatusService, error) {
	if repo == nil {
		return nil, errors.New("status service: nil repository")
	}
	if engine == nil {
		return nil, errors.New("status service: nil engine")
	}
	return &StatusService{repo: repo, engine: engine, alarms: alarms, clock: systemClock{}}, nil
}

// Snapshot computes the current plant status.
func (s *StatusService) Snapshot(ctx context.Context) (*PlantStatus, error) {
	if s == nil {
		return nil, errors.New("status service: nil service")
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	status := &PlantStatus{
		Timestamp:    s.clock.Now(),
		TotalUnits:   len(list),
		StatusCounts: make(map[string]int),
	}

	var voltageSum float64
	var voltageCount int
	for _, eq := range list {
		status.StatusCounts[string(eq.Status)]++
		if !eq.IsRunning() {
			continue
		}
		status.RunningUnits++
		status.TotalCurrent += eq.Current
		status.TotalPower += eq.Power
		if eq.Voltage > 0 {
			voltageSum += eq.Voltage
			voltageCount++
		}
	}
	if voltageCount > 0 {
		status.AverageVoltage = voltageSum / float64(voltageCount)
	} else {
		status.AverageVoltage = defaultBusVoltage
	}
	status.PlantPowerFactor = plantPowerFactor(list)

	gate := s.engine.Gate()
	remaining := gate.RemainingTime()
	status.InterlockActive = remaining > 0
	status.InterlockRemainingSeconds = remaining.Seconds()
	status.EmergencyActive = s.engine.EmergencyActive()

	if s.alarms != nil {
		count, err := s.alarms.CountActive(ctx)
		if err == nil {
			status.ActiveAlarms = count
			metrics.SetActiveAlarms(count)
		}
	}
	return status, nil
}

// plantPowerFactor models the aggregate power factor of the bus: each
// running motor and inverter drags it down, a running capacitor bank
// compensates, and the result is clamped to a plausible band.
func plantPowerFactor(list []*equipment.Equipment) float64 {
	factor := basePowerFactor
	capacitorRunning := false
	for _, eq := range list {
		if !eq.IsRunning() {
			continue
		}
		switch eq.Type {
		case equipment.TypeMotor:
			factor -= motorFactorPenalty
		case equipment.TypeInverter:
			factor -= inverterFactorPenalty
		case equipment.TypeCapacitor:
			capacitorRunning = true
		}
	}
	if capacitorRunning {
		factor += capacitorFactorBoost
	}
	if factor < minPlantPowerFactor {
		factor = minPlantPowerFactor
	}
	if factor > maxPlantPowerFactor {
		factor = maxPlantPowerFactor
	}
	return factor
}
