package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	history "plant-scada/internal/history/domain"
)

// Repository is an in-memory sample store for demo mode and testing.
type Repository struct {
	mu   sync.RWMutex
	data []*history.Sample
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Append stores a snapshot of sample.
func (r *Repository) Append(ctx context.Context, sample *history.Sample) error {
	_ = ctx
	if sample == nil {
		return errors.New("sample repo: nil sample")
	}
	if sample.EquipmentID == "" {
		return errors.New("sample repo: empty equipment id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sample
	r.data = append(r.data, &clone)
	return nil
}

// DeleteBefore removes samples older than cutoff and returns the count.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.data[:0]
	var removed int64
	for _, sample := range r.data {
		if sample.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, sample)
	}
	r.data = kept
	return removed, nil
}

// ListByEquipment returns the newest samples for one equipment, newest first.
func (r *Repository) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]*history.Sample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*history.Sample, 0)
	for _, sample := range r.data {
		if sample.EquipmentID != equipmentID {
			continue
		}
		clone := *sample
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByEquipmentAndRange returns samples inside [from, to), oldest first.
func (r *Repository) ListByEquipmentAndRange(ctx context.Context, equipmentID string, from, to time.Time) ([]*history.Sample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*history.Sample, 0)
	for _, sample := range r.data {
		if sample.EquipmentID != equipmentID {
			continue
		}
		if sample.Timestamp.Before(from) || !sample.Timestamp.Before(to) {
			continue
		}
		clone := *sample
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Len is the number of stored samples. Intended for tests.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
