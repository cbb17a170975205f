package alarms

import (
	"context"
	"time"
)

// Severity orders alarms by operational urgency.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Priority returns the numeric rank used for sorting and tie-breaks.
func (s Severity) Priority() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// Valid returns true for catalog severities.
func (s Severity) Valid() bool {
	return s.Priority() > 0
}

// Type is the fixed alarm type catalog.
type Type string

const (
	TypeOvercurrent         Type = "OVERCURRENT"
	TypeOvervoltage         Type = "OVERVOLTAGE"
	TypeUndervoltage        Type = "UNDERVOLTAGE"
	TypeOvertemperature     Type = "OVERTEMPERATURE"
	TypeOverload            Type = "OVERLOAD"
	TypeVibration           Type = "VIBRATION"
	TypeLowOilLevel         Type = "LOW_OIL_LEVEL"
	TypeHighOilTemperature  Type = "HIGH_OIL_TEMPERATURE"
	TypeCommunicationFailed Type = "COMMUNICATION_FAILURE"
	TypeEmergencyStop       Type = "EMERGENCY_STOP"
	TypeInrushHigh          Type = "INRUSH_HIGH"
	TypePowerFactorLow      Type = "POWER_FACTOR_LOW"
	TypeFrequencyOutOfRange Type = "FREQUENCY_OUT_OF_RANGE"
	TypeFault               Type = "FAULT"
	TypeMaintenanceDue      Type = "MAINTENANCE_DUE"
	TypeSystem              Type = "SYSTEM"
	TypeOther               Type = "OTHER"
)

// Event is one alarm record. EquipmentID is empty for system-wide alarms.
// ResolvedAt, once set, never reverts; Acknowledged only goes false to true.
type Event struct {
	ID            string    `json:"id"`
	EquipmentID   string    `json:"equipment_id,omitempty"`
	EquipmentName string    `json:"equipment_name,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Severity      Severity  `json:"severity"`
	Type          Type      `json:"type"`
	Message       string    `json:"message"`
	Description   string    `json:"description,omitempty"`
	Value         *float64  `json:"value,omitempty"`
	Threshold     *float64  `json:"threshold,omitempty"`

	Acknowledged   bool      `json:"acknowledged"`
	AcknowledgedBy string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Active reports whether the alarm is still unresolved.
func (e *Event) Active() bool {
	return e != nil && e.ResolvedAt.IsZero()
}

// Duration is the time the alarm has been (or was) open.
func (e *Event) Duration(now time.Time) time.Duration {
	if e == nil {
		return 0
	}
	end := e.ResolvedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(e.Timestamp)
}

// Filter selects alarms for the query operations.
type Filter struct {
	EquipmentID    string
	OnlyActive     bool
	Unacknowledged bool
	From           time.Time
	To             time.Time
}

// Repository is the persistence contract for alarm events.
type Repository interface {
	Save(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter Filter) ([]*Event, error)
	CountActive(ctx context.Context) (int64, error)
	CountActiveBySeverity(ctx context.Context, severity Severity) (int64, error)
}
