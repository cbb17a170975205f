package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	alarms "plant-scada/internal/alarms/domain"
)

// Repository is an in-memory alarm store for demo mode and testing.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*alarms.Event
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*alarms.Event)}
}

// Save stores a snapshot of event.
func (r *Repository) Save(ctx context.Context, event *alarms.Event) error {
	_ = ctx
	if event == nil {
		return errors.New("alarm repo: nil event")
	}
	if event.ID == "" {
		return errors.New("alarm repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.data[event.ID] = &clone
	return nil
}

// Get loads one alarm by id; nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*alarms.Event, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("alarm repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	clone := *event
	return &clone, nil
}

// List returns alarms matching filter, ordered by timestamp descending.
func (r *Repository) List(ctx context.Context, filter alarms.Filter) ([]*alarms.Event, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*alarms.Event, 0, len(r.data))
	for _, event := range r.data {
		if !matches(event, filter) {
			continue
		}
		clone := *event
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// CountActive returns the number of unresolved alarms.
func (r *Repository) CountActive(ctx context.Context) (int64, error) {
	return r.count(ctx, alarms.Filter{OnlyActive: true}, "")
}

// CountActiveBySeverity returns the number of unresolved alarms at severity.
func (r *Repository) CountActiveBySeverity(ctx context.Context, severity alarms.Severity) (int64, error) {
	return r.count(ctx, alarms.Filter{OnlyActive: true}, severity)
}

func (r *Repository) count(ctx context.Context, filter alarms.Filter, severity alarms.Severity) (int64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, event := range r.data {
		if !matches(event, filter) {
			continue
		}
		if severity != "" && event.Severity != severity {
			continue
		}
		n++
	}
	return n, nil
}

func matches(event *alarms.Event, filter alarms.Filter) bool {
	if filter.EquipmentID != "" && event.EquipmentID != filter.EquipmentID {
		return false
	}
	if filter.OnlyActive && !event.Active() {
		return false
	}
	if filter.Unacknowledged && event.Acknowledged {
		return false
	}
	if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !event.Timestamp.Before(filter.To) {
		return false
	}
	return true
}
