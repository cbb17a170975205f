package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	alarms "plant-scada/internal/alarms/domain"
	equipment "plant-scada/internal/equipment/domain"
	"plant-scada/internal/observability/metrics"
)

// Hysteresis bounds for auto-resolution: a condition must clear past these
// before the alarm closes, to avoid flapping.
const (
	overcurrentClearFactor = 1.05
	overtempClearCelsius   = 75.0
	overloadClearPercent   = 100.0
)

// Notifier publishes alarm lifecycle events (created, acknowledged, resolved).
type Notifier interface {
	Notify(ctx context.Context, event LifecycleEvent)
}

// LifecycleEvent is one alarm lifecycle update.
type LifecycleEvent struct {
	Type  string       `json:"type"`
	Alarm alarms.Event `json:"alarm"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// CreateParams carries optional detail for Create.
type CreateParams struct {
	Description string
	Value       *float64
	Threshold   *float64
}

// Service manages the alarm lifecycle: creation, acknowledgment, resolution,
// auto-resolution, and the triage queries.
type Service struct {
	repo     alarms.Repository
	notifier Notifier
	clock    Clock
	logger   *log.Logger
}

// ServiceOption customizes the alarm service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs an alarm service.
func NewService(repo alarms.Repository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alarms: nil repository")
	}
	service := &Service{
		repo:   repo,
		clock:  systemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create records a new alarm. eq may be nil for system-wide alarms. Creation
// always succeeds barring a store failure.
func (s *Service) Create(ctx context.Context, eq *equipment.Equipment, severity alarms.Severity, typ alarms.Type, message string, params *CreateParams) (*alarms.Event, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	now := s.clock.Now()
	event := &alarms.Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		Severity:  severity,
		Type:      typ,
		Message:   message,
		CreatedAt: now,
	}
	if eq != nil {
		event.EquipmentID = eq.ID
		event.EquipmentName = eq.Name
	}
	if params != nil {
		event.Description = params.Description
		event.Value = params.Value
		event.Threshold = params.Threshold
	}
	if err := s.repo.Save(ctx, event); err != nil {
		return nil, err
	}
	if s.logger != nil {
		origin := "system"
		if event.EquipmentName != "" {
			origin = event.EquipmentName
		}
		s.logger.Printf("alarm created: %s %s %q (%s)", event.Severity, event.Type, event.Message, origin)
	}
	s.notify(ctx, "created", *event)
	return event, nil
}

// Acknowledge marks the alarm as seen by an operator. The acknowledged flag
// only moves false to true.
func (s *Service) Acknowledge(ctx context.Context, alarmID, operator string) (*alarms.Event, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	event, err := s.repo.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, alarms.ErrNotFound
	}
	if event.Acknowledged {
		return nil, alarms.ErrAlreadyAcknowledged
	}
	event.Acknowledged = true
	event.AcknowledgedBy = operator
	event.AcknowledgedAt = s.clock.Now()
	if err := s.repo.Save(ctx, event); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("alarm acknowledged by %s: %s %s", operator, event.Type, event.Message)
	}
	s.notify(ctx, "acknowledged", *event)
	return event, nil
}

// Resolve stamps the alarm resolved. ResolvedAt never reverts once set.
func (s *Service) Resolve(ctx context.Context, alarmID string) (*alarms.Event, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	event, err := s.repo.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, alarms.ErrNotFound
	}
	if !event.ResolvedAt.IsZero() {
		return nil, alarms.ErrAlreadyResolved
	}
	event.ResolvedAt = s.clock.Now()
	if err := s.repo.Save(ctx, event); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("alarm resolved: %s %s (open %s)", event.Type, event.Message, event.ResolvedAt.Sub(event.Timestamp).Round(time.Second))
	}
	s.notify(ctx, "resolved", *event)
	return event, nil
}

// AutoResolve closes active alarms on eq whose triggering condition has
// cleared with hysteresis. Only overcurrent, overtemperature and overload are
// ever auto-resolved; everything else stays open for an operator.
func (s *Service) AutoResolve(ctx context.Context, eq *equipment.Equipment) error {
	if s == nil {
		return errors.New("alarms: nil service")
	}
	if eq == nil {
		return errors.New("alarms: nil equipment")
	}
	active, err := s.repo.List(ctx, alarms.Filter{EquipmentID: eq.ID, OnlyActive: true})
	if err != nil {
		return err
	}
	for _, event := range active {
		cleared := false
		switch event.Type {
		case alarms.TypeOvercurrent:
			cleared = eq.NominalCurrent > 0 && eq.Current <= eq.NominalCurrent*overcurrentClearFactor
		case alarms.TypeOvertemperature:
			cleared = eq.Temperature <= overtempClearCelsius
		case alarms.TypeOverload:
			cleared = eq.LoadPercent() <= overloadClearPercent
		}
		if !cleared {
			continue
		}
		if _, err := s.Resolve(ctx, event.ID); err != nil && !errors.Is(err, alarms.ErrAlreadyResolved) {
			return err
		}
	}
	return nil
}

// Get returns one alarm by id.
func (s *Service) Get(ctx context.Context, alarmID string) (*alarms.Event, error) {
	event, err := s.repo.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, alarms.ErrNotFound
	}
	return event, nil
}

// ListActive returns unresolved alarms in triage order.
func (s *Service) ListActive(ctx context.Context) ([]*alarms.Event, error) {
	return s.list(ctx, alarms.Filter{OnlyActive: true})
}

// ListUnacknowledged returns active alarms no operator has seen yet.
func (s *Service) ListUnacknowledged(ctx context.Context) ([]*alarms.Event, error) {
	return s.list(ctx, alarms.Filter{OnlyActive: true, Unacknowledged: true})
}

// ListByEquipment returns all alarms for one equipment.
func (s *Service) ListByEquipment(ctx context.Context, equipmentID string) ([]*alarms.Event, error) {
	return s.list(ctx, alarms.Filter{EquipmentID: equipmentID})
}

// ListByRange returns alarms with timestamps inside [from, to).
func (s *Service) ListByRange(ctx context.Context, from, to time.Time) ([]*alarms.Event, error) {
	return s.list(ctx, alarms.Filter{From: from, To: to})
}

// CountActive returns the number of unresolved alarms.
func (s *Service) CountActive(ctx context.Context) (int64, error) {
	return s.repo.CountActive(ctx)
}

// CountActiveBySeverity returns the number of unresolved alarms at a severity.
func (s *Service) CountActiveBySeverity(ctx context.Context, severity alarms.Severity) (int64, error) {
	return s.repo.CountActiveBySeverity(ctx, severity)
}

// List returns alarms matching an arbitrary filter in triage order.
func (s *Service) List(ctx context.Context, filter alarms.Filter) ([]*alarms.Event, error) {
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter alarms.Filter) ([]*alarms.Event, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	SortForTriage(events)
	return events, nil
}

// SortForTriage orders alarms severity descending, then timestamp descending.
func SortForTriage(events []*alarms.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Severity.Priority() != events[j].Severity.Priority() {
			return events[i].Severity.Priority() > events[j].Severity.Priority()
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

func (s *Service) notify(ctx context.Context, eventType string, event alarms.Event) {
	metrics.IncAlarmEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, LifecycleEvent{Type: eventType, Alarm: event})
}
