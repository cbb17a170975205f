package history

import (
	"context"
	"time"

	equipment "plant-scada/internal/equipment/domain"
)

// Sample sources.
const (
	SourceAutomatic = "automatic"
	SourceSample    = "sample"
	SourceManual    = "manual"
)

// DefaultQualityIndex is assigned when the acquisition path reports no issue.
const DefaultQualityIndex = 100

// Sample is a point-in-time copy of an equipment's measurement set.
type Sample struct {
	ID          string    `json:"id"`
	EquipmentID string    `json:"equipment_id"`
	Timestamp   time.Time `json:"timestamp"`

	Current       float64 `json:"current"`
	Voltage       float64 `json:"voltage"`
	Power         float64 `json:"power"`
	Temperature   float64 `json:"temperature"`
	ActivePower   float64 `json:"active_power"`
	ReactivePower float64 `json:"reactive_power"`
	PowerFactor   float64 `json:"power_factor"`

	RPM            *float64 `json:"rpm,omitempty"`
	Torque         *float64 `json:"torque,omitempty"`
	Frequency      *float64 `json:"frequency,omitempty"`
	OilTemperature *float64 `json:"oil_temperature,omitempty"`
	OilLevel       *float64 `json:"oil_level,omitempty"`

	QualityIndex int       `json:"quality_index"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromEquipment copies the live measurement set of eq into a sample stamped
// at ts. Type-specific fields follow the Type discriminant.
func FromEquipment(eq *equipment.Equipment, ts time.Time) *Sample {
	s := &Sample{
		EquipmentID:   eq.ID,
		Timestamp:     ts,
		Current:       eq.Current,
		Voltage:       eq.Voltage,
		Power:         eq.Power,
		Temperature:   eq.Temperature,
		ActivePower:   eq.ActivePower,
		ReactivePower: eq.ReactivePower,
		PowerFactor:   eq.PowerFactor,
		QualityIndex:  DefaultQualityIndex,
		Source:        SourceAutomatic,
	}
	if eq.Type == equipment.TypeMotor && eq.Motor != nil {
		rpm, torque := eq.Motor.RPM, eq.Motor.Torque
		s.RPM = &rpm
		s.Torque = &torque
	}
	if eq.Type == equipment.TypeInverter && eq.Inverter != nil {
		freq := eq.Inverter.OutputFrequency
		s.Frequency = &freq
	}
	if eq.Type == equipment.TypeTransformer && eq.Transformer != nil {
		oilTemp, oilLevel := eq.Transformer.OilTemperature, eq.Transformer.OilLevel
		s.OilTemperature = &oilTemp
		s.OilLevel = &oilLevel
	}
	return s
}

// Repository is the persistence contract for the sample stream. Samples are
// append-mostly; DeleteBefore returns the number of removed rows.
type Repository interface {
	Append(ctx context.Context, sample *Sample) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]*Sample, error)
	ListByEquipmentAndRange(ctx context.Context, equipmentID string, from, to time.Time) ([]*Sample, error)
}
