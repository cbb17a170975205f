package application

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	alarms "plant-scada/internal/alarms/domain"
	"plant-scada/internal/alarms/infrastructure/memory"
	equipment "plant-scada/internal/equipment/domain"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (s *stubNotifier) Notify(_ context.Context, event LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *stubNotifier) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Type)
	}
	return out
}

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newAlarmService(t *testing.T) (*Service, *stubNotifier) {
	t.Helper()
	notifier := &stubNotifier{}
	service, err := NewService(memory.NewRepository(),
		log.New(os.Stdout, "test ", log.LstdFlags),
		WithNotifier(notifier),
		WithClock(&tickClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, notifier
}

func testMotor() *equipment.Equipment {
	return &equipment.Equipment{
		ID: "motor-001", Name: "Main Pump Motor", Type: equipment.TypeMotor,
		Status: equipment.StatusRunning, NominalCurrent: 45, Current: 36,
	}
}

func TestCreatePopulatesEvent(t *testing.T) {
	service, notifier := newAlarmService(t)
	value, threshold := 54.0, 49.5

	event, err := service.Create(context.Background(), testMotor(),
		alarms.SeverityHigh, alarms.TypeOvercurrent, "current above nominal",
		&CreateParams{Value: &value, Threshold: &threshold})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.ID == "" {
		t.Fatal("missing id")
	}
	if event.EquipmentID != "motor-001" || event.EquipmentName != "Main Pump Motor" {
		t.Fatalf("equipment fields not copied: %+v", event)
	}
	if event.Timestamp.IsZero() || event.CreatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}
	if event.Value == nil || *event.Value != 54 {
		t.Fatalf("value not carried: %v", event.Value)
	}
	if got := notifier.types(); len(got) != 1 || got[0] != "created" {
		t.Fatalf("expected created notification, got %v", got)
	}

	stored, err := service.Get(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Message != "current above nominal" {
		t.Fatalf("stored message %q", stored.Message)
	}
}

func TestCreateSystemWideAlarm(t *testing.T) {
	service, _ := newAlarmService(t)
	event, err := service.Create(context.Background(), nil,
		alarms.SeverityInfo, alarms.TypeSystem, "sampler restarted", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.EquipmentID != "" {
		t.Fatalf("system alarm should carry no equipment id, got %q", event.EquipmentID)
	}
}

func TestAcknowledgeLifecycle(t *testing.T) {
	service, notifier := newAlarmService(t)
	event, err := service.Create(context.Background(), testMotor(),
		alarms.SeverityHigh, alarms.TypeOverload, "overload", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	acked, err := service.Acknowledge(context.Background(), event.ID, "operator.chen")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedBy != "operator.chen" || acked.AcknowledgedAt.IsZero() {
		t.Fatalf("ack fields wrong: %+v", acked)
	}

	if _, err := service.Acknowledge(context.Background(), event.ID, "operator.wu"); !errors.Is(err, alarms.ErrAlreadyAcknowledged) {
		t.Fatalf("expected ErrAlreadyAcknowledged, got %v", err)
	}
	if _, err := service.Acknowledge(context.Background(), "missing", "operator.chen"); !errors.Is(err, alarms.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := notifier.types(); len(got) != 2 || got[1] != "acknowledged" {
		t.Fatalf("notifications %v", got)
	}
}

func TestResolveLifecycle(t *testing.T) {
	service, notifier := newAlarmService(t)
	event, err := service.Create(context.Background(), testMotor(),
		alarms.SeverityMedium, alarms.TypeVibration, "excessive vibration", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := service.Resolve(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.ResolvedAt.IsZero() {
		t.Fatal("ResolvedAt not stamped")
	}
	if _, err := service.Resolve(context.Background(), event.ID); !errors.Is(err, alarms.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if got := notifier.types(); len(got) != 2 || got[1] != "resolved" {
		t.Fatalf("notifications %v", got)
	}

	active, err := service.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("resolved alarm still listed active: %d", len(active))
	}
}

func TestAutoResolveHysteresis(t *testing.T) {
	service, _ := newAlarmService(t)
	eq := testMotor()

	overcurrent, _ := service.Create(context.Background(), eq,
		alarms.SeverityHigh, alarms.TypeOvercurrent, "overcurrent", nil)
	overtemp, _ := service.Create(context.Background(), eq,
		alarms.SeverityHigh, alarms.TypeOvertemperature, "overtemperature", nil)
	vibration, _ := service.Create(context.Background(), eq,
		alarms.SeverityMedium, alarms.TypeVibration, "vibration", nil)

	// Condition still inside the hysteresis band: nothing closes.
	eq.Current = eq.NominalCurrent * 1.08
	eq.Temperature = 78
	if err := service.AutoResolve(context.Background(), eq); err != nil {
		t.Fatalf("AutoResolve: %v", err)
	}
	active, _ := service.ListActive(context.Background())
	if len(active) != 3 {
		t.Fatalf("expected 3 active, got %d", len(active))
	}

	// Current back under 105% of nominal closes overcurrent only.
	eq.Current = eq.NominalCurrent * 1.02
	if err := service.AutoResolve(context.Background(), eq); err != nil {
		t.Fatalf("AutoResolve: %v", err)
	}
	got, _ := service.Get(context.Background(), overcurrent.ID)
	if got.ResolvedAt.IsZero() {
		t.Fatal("overcurrent should auto-resolve")
	}
	got, _ = service.Get(context.Background(), overtemp.ID)
	if !got.ResolvedAt.IsZero() {
		t.Fatal("overtemperature at 78 °C must stay open (clears at 75)")
	}

	// Temperature at the clear bound closes overtemperature.
	eq.Temperature = 75
	if err := service.AutoResolve(context.Background(), eq); err != nil {
		t.Fatalf("AutoResolve: %v", err)
	}
	got, _ = service.Get(context.Background(), overtemp.ID)
	if got.ResolvedAt.IsZero() {
		t.Fatal("overtemperature should auto-resolve at 75 °C")
	}

	// Vibration alarms never auto-resolve.
	got, _ = service.Get(context.Background(), vibration.ID)
	if !got.ResolvedAt.IsZero() {
		t.Fatal("vibration alarms must stay open for an operator")
	}
}

func TestListUnacknowledged(t *testing.T) {
	service, _ := newAlarmService(t)
	eq := testMotor()
	first, _ := service.Create(context.Background(), eq,
		alarms.SeverityHigh, alarms.TypeOverload, "first", nil)
	if _, err := service.Create(context.Background(), eq,
		alarms.SeverityHigh, alarms.TypeOverload, "second", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := service.Acknowledge(context.Background(), first.ID, "operator.chen"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	list, err := service.ListUnacknowledged(context.Background())
	if err != nil {
		t.Fatalf("ListUnacknowledged: %v", err)
	}
	if len(list) != 1 || list[0].Message != "second" {
		t.Fatalf("unexpected unacknowledged list: %+v", list)
	}
}

func TestSortForTriage(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []*alarms.Event{
		{ID: "a", Severity: alarms.SeverityMedium, Timestamp: base.Add(3 * time.Minute)},
		{ID: "b", Severity: alarms.SeverityCritical, Timestamp: base},
		{ID: "c", Severity: alarms.SeverityCritical, Timestamp: base.Add(time.Minute)},
		{ID: "d", Severity: alarms.SeverityInfo, Timestamp: base.Add(5 * time.Minute)},
	}
	SortForTriage(events)
	want := []string{"c", "b", "a", "d"}
	for i, id := range want {
		if events[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, events[i].ID)
		}
	}
}

func TestCountActive(t *testing.T) {
	service, _ := newAlarmService(t)
	eq := testMotor()
	if _, err := service.Create(context.Background(), eq,
		alarms.SeverityCritical, alarms.TypeEmergencyStop, "emergency stop activated", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	closedOut, _ := service.Create(context.Background(), eq,
		alarms.SeverityHigh, alarms.TypeOverload, "overload", nil)
	if _, err := service.Resolve(context.Background(), closedOut.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	count, err := service.CountActive(context.Background())
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 active, got %d", count)
	}
	bySeverity, err := service.CountActiveBySeverity(context.Background(), alarms.SeverityCritical)
	if err != nil {
		t.Fatalf("CountActiveBySeverity: %v", err)
	}
	if bySeverity != 1 {
		t.Fatalf("expected 1 critical, got %d", bySeverity)
	}
}
