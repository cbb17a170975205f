package notify

import (
	"context"

	alarmapp "plant-scada/internal/alarms/application"
)

// MultiNotifier fans one lifecycle event out to several notifiers, for
// wiring the SSE broker and the webhook channel side by side.
type MultiNotifier struct {
	notifiers []alarmapp.Notifier
}

// NewMultiNotifier constructs a MultiNotifier; nil entries are dropped.
func NewMultiNotifier(notifiers ...alarmapp.Notifier) *MultiNotifier {
	kept := make([]alarmapp.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &MultiNotifier{notifiers: kept}
}

// Notify forwards the event to every notifier in order.
func (m *MultiNotifier) Notify(ctx context.Context, event alarmapp.LifecycleEvent) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		notifier.Notify(ctx, event)
	}
}
