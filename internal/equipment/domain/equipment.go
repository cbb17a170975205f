package equipment

import (
	"context"
	"math"
	"time"
)

// Type discriminates equipment kinds.
type Type string

const (
	TypeMotor       Type = "MOTOR"
	TypeTransformer Type = "TRANSFORMER"
	TypeCapacitor   Type = "CAPACITOR"
	TypeInverter    Type = "INVERTER"
	TypeOther       Type = "OTHER"
)

// Valid returns true when the type is part of the catalog.
func (t Type) Valid() bool {
	switch t {
	case TypeMotor, TypeTransformer, TypeCapacitor, TypeInverter, TypeOther:
		return true
	default:
		return false
	}
}

// Status is the operating state of an equipment.
type Status string

const (
	StatusStopped     Status = "STOPPED"
	StatusIdle        Status = "IDLE"
	StatusStarting    Status = "STARTING"
	StatusRunning     Status = "RUNNING"
	StatusStopping    Status = "STOPPING"
	StatusWarning     Status = "WARNING"
	StatusAlarm       Status = "ALARM"
	StatusFault       Status = "FAULT"
	StatusMaintenance Status = "MAINTENANCE"
	StatusOffline     Status = "OFFLINE"
)

// Operational returns true for states where the unit is energized.
func (s Status) Operational() bool {
	return s == StatusRunning || s == StatusStarting || s == StatusWarning
}

// MotorSpec carries motor nameplate and live values.
type MotorSpec struct {
	RPM                float64 `json:"rpm"`
	Poles              int     `json:"poles"`
	RatedPowerKW       float64 `json:"rated_power_kw"`
	RatedVoltage       float64 `json:"rated_voltage"`
	RatedFrequency     float64 `json:"rated_frequency"`
	InsulationClass    string  `json:"insulation_class"`
	StartingType       string  `json:"starting_type"`
	Torque             float64 `json:"torque"`
	VibrationLevel     float64 `json:"vibration_level"`
	BearingTemperature float64 `json:"bearing_temperature"`
}

// TransformerSpec carries transformer nameplate and live values.
type TransformerSpec struct {
	PrimaryVoltage   float64 `json:"primary_voltage"`
	SecondaryVoltage float64 `json:"secondary_voltage"`
	RatedPowerKVA    float64 `json:"rated_power_kva"`
	ConnectionType   string  `json:"connection_type"`
	CoolingType      string  `json:"cooling_type"`
	OilLevel         float64 `json:"oil_level"`
	OilTemperature   float64 `json:"oil_temperature"`
	WindingTempPri   float64 `json:"winding_temperature_primary"`
	WindingTempSec   float64 `json:"winding_temperature_secondary"`
	TapPosition      int     `json:"tap_position"`
}

// InverterSpec carries frequency inverter configuration and live values.
type InverterSpec struct {
	OutputFrequency   float64 `json:"output_frequency"`
	FrequencySetpoint float64 `json:"frequency_setpoint"`
	MinFrequency      float64 `json:"min_frequency"`
	MaxFrequency      float64 `json:"max_frequency"`
	AccelerationRamp  float64 `json:"acceleration_ramp"`
	DecelerationRamp  float64 `json:"deceleration_ramp"`
	MotorPoles        int     `json:"motor_poles"`
	MotorRatedCurrent float64 `json:"motor_rated_current"`
}

// Equipment is a plant unit with its live measurement set. Exactly one of the
// spec payloads matching Type is non-nil; all type-specific logic dispatches
// on Type.
type Equipment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         Type   `json:"type"`
	Status       Status `json:"status"`
	Location     string `json:"location,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`

	NominalCurrent float64 `json:"nominal_current"`
	Current        float64 `json:"current"`
	Voltage        float64 `json:"voltage"`
	Power          float64 `json:"power"`
	Temperature    float64 `json:"temperature"`
	ActivePower    float64 `json:"active_power"`
	ReactivePower  float64 `json:"reactive_power"`
	PowerFactor    float64 `json:"power_factor"`
	CapacitanceUF  float64 `json:"capacitance_uf,omitempty"`

	Motor       *MotorSpec       `json:"motor,omitempty"`
	Transformer *TransformerSpec `json:"transformer,omitempty"`
	Inverter    *InverterSpec    `json:"inverter,omitempty"`

	InstallationDate time.Time `json:"installation_date,omitempty"`
	LastMaintenance  time.Time `json:"last_maintenance,omitempty"`
	NextMaintenance  time.Time `json:"next_maintenance,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsRunning reports whether the unit is in RUNNING state.
func (e *Equipment) IsRunning() bool {
	return e != nil && e.Status == StatusRunning
}

// CanStart reports whether a start transition is admissible.
func (e *Equipment) CanStart() bool {
	return e != nil && (e.Status == StatusStopped || e.Status == StatusIdle)
}

// CanStop reports whether a stop transition is admissible.
func (e *Equipment) CanStop() bool {
	return e != nil && (e.Status == StatusRunning || e.Status == StatusWarning)
}

// LoadPercent is the current draw as a percentage of nominal.
func (e *Equipment) LoadPercent() float64 {
	if e == nil || e.NominalCurrent <= 0 {
		return 0
	}
	return e.Current / e.NominalCurrent * 100
}

// UpdatePowerFactor recomputes the power factor from active/reactive power.
// Falls back to 1.0 when active power is not positive.
func (e *Equipment) UpdatePowerFactor() {
	if e == nil {
		return
	}
	if e.ActivePower <= 0 {
		e.PowerFactor = 1.0
		return
	}
	apparent := math.Sqrt(e.ActivePower*e.ActivePower + e.ReactivePower*e.ReactivePower)
	if apparent <= 0 {
		e.PowerFactor = 1.0
		return
	}
	e.PowerFactor = e.ActivePower / apparent
}

// OverheatLimit returns the motor overheat threshold in °C for the unit's
// insulation class. Class F is assumed when unset or unknown.
func (m *MotorSpec) OverheatLimit() float64 {
	if m == nil {
		return 155
	}
	switch m.InsulationClass {
	case "A":
		return 105
	case "E":
		return 120
	case "B":
		return 130
	case "F":
		return 155
	case "H":
		return 180
	default:
		return 155
	}
}

// MaxVibration is the ISO 10816-3 zone C limit in mm/s.
const MaxVibration = 7.1

// HasExcessiveVibration reports whether measured vibration exceeds the limit.
func (m *MotorSpec) HasExcessiveVibration() bool {
	return m != nil && m.VibrationLevel > MaxVibration
}

// OilLevelLow reports whether the oil level dropped below 70%.
func (t *TransformerSpec) OilLevelLow() bool {
	return t != nil && t.OilLevel < 0.70
}

// OilTemperatureHigh reports whether oil temperature exceeds 95 °C.
func (t *TransformerSpec) OilTemperatureHigh() bool {
	return t != nil && t.OilTemperature > 95.0
}

// FrequencyValid reports whether hz lies inside the configured band.
func (i *InverterSpec) FrequencyValid(hz float64) bool {
	return i != nil && hz >= i.MinFrequency && hz <= i.MaxFrequency
}

// MotorSpeed derives rpm from the live output frequency: n = 120·f/p.
func (i *InverterSpec) MotorSpeed() float64 {
	if i == nil || i.MotorPoles <= 0 {
		return 0
	}
	return 120.0 * i.OutputFrequency / float64(i.MotorPoles)
}

// Repository is the persistence contract for equipment. Saves must be visible
// to subsequent reads within the same process.
type Repository interface {
	Get(ctx context.Context, id string) (*Equipment, error)
	Save(ctx context.Context, eq *Equipment) error
	ListAll(ctx context.Context) ([]*Equipment, error)
	ListByStatus(ctx context.Context, status Status) ([]*Equipment, error)
	ListByType(ctx context.Context, typ Type) ([]*Equipment, error)
}
