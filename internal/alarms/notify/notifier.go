package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	alarmapp "plant-scada/internal/alarms/application"
	alarms "plant-scada/internal/alarms/domain"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alarm lifecycle events and pushes them through a channel.
type Notifier struct {
	channel      Channel
	template     *Template
	clock        Clock
	minSeverity  alarms.Severity
	cooldown     time.Duration
	dedupeWindow time.Duration

	mu   sync.Mutex
	sent map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alarm and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithMinSeverity drops notifications below the given severity.
func WithMinSeverity(severity alarms.Severity) Option {
	return func(n *Notifier) {
		if severity.Valid() {
			n.minSeverity = severity
		}
	}
}

// NewNotifier constructs an alarm notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:     channel,
		template:    template,
		clock:       systemClock{},
		minSeverity: alarms.SeverityInfo,
		sent:        make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements alarmapp.Notifier.
func (n *Notifier) Notify(ctx context.Context, event alarmapp.LifecycleEvent) {
	if n == nil || n.channel == nil {
		return
	}
	if event.Alarm.Severity.Priority() < n.minSeverity.Priority() {
		return
	}
	content, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		return
	}
	if !n.shouldSend(event.Alarm.ID, event.Type, content) {
		return
	}
	_ = n.channel.Send(ctx, content)
}

func (n *Notifier) shouldSend(alarmID, eventType, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := alarmID + "|" + eventType
	sum := sha1.Sum([]byte(content))
	hash := hex.EncodeToString(sum[:])
	now := n.clock.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok := n.sent[key]
	if ok {
		if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
			return false
		}
		if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
			return false
		}
	}
	n.sent[key] = sendRecord{at: now, hash: hash}
	return true
}

func buildTemplateData(event alarmapp.LifecycleEvent) TemplateData {
	alarm := event.Alarm
	data := TemplateData{
		Equipment:   alarm.EquipmentName,
		EquipmentID: alarm.EquipmentID,
		Type:        string(alarm.Type),
		Severity:    string(alarm.Severity),
		Message:     alarm.Message,
		Time:        alarm.Timestamp.Format(time.RFC3339),
		Event:       event.Type,
		EventLabel:  strings.ToUpper(event.Type),
	}
	if alarm.Value != nil {
		data.Value = fmt.Sprintf("%.2f", *alarm.Value)
	}
	if alarm.Threshold != nil {
		data.Threshold = fmt.Sprintf("%.2f", *alarm.Threshold)
	}
	if data.Equipment == "" {
		data.Equipment = "plant"
	}
	return data
}
