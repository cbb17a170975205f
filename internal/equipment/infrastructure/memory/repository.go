package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	equipment "plant-scada/internal/equipment/domain"
)

// Repository is an in-memory equipment store for demo mode and testing.
// Saves are immediately visible to subsequent reads.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*equipment.Equipment
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*equipment.Equipment)}
}

// Get loads one equipment by id; nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*equipment.Equipment, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("equipment repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	eq, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	clone := cloneEquipment(eq)
	return clone, nil
}

// Save stores a snapshot of eq.
func (r *Repository) Save(ctx context.Context, eq *equipment.Equipment) error {
	_ = ctx
	if eq == nil {
		return errors.New("equipment repo: nil equipment")
	}
	if eq.ID == "" {
		return errors.New("equipment repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[eq.ID] = cloneEquipment(eq)
	return nil
}

// ListAll returns every equipment ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]*equipment.Equipment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*equipment.Equipment, 0, len(r.data))
	for _, eq := range r.data {
		out = append(out, cloneEquipment(eq))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListByStatus returns equipment in the given status, ordered by name.
func (r *Repository) ListByStatus(ctx context.Context, status equipment.Status) ([]*equipment.Equipment, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, eq := range all {
		if eq.Status == status {
			out = append(out, eq)
		}
	}
	return out, nil
}

// ListByType returns equipment of the given type, ordered by name.
func (r *Repository) ListByType(ctx context.Context, typ equipment.Type) ([]*equipment.Equipment, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, eq := range all {
		if eq.Type == typ {
			out = append(out, eq)
		}
	}
	return out, nil
}

// cloneEquipment deep-copies so callers never share payload pointers with
// the store; per-equipment reads stay snapshot-consistent under concurrent
// engine mutation.
func cloneEquipment(eq *equipment.Equipment) *equipment.Equipment {
	clone := *eq
	if eq.Motor != nil {
		motor := *eq.Motor
		clone.Motor = &motor
	}
	if eq.Transformer != nil {
		trafo := *eq.Transformer
		clone.Transformer = &trafo
	}
	if eq.Inverter != nil {
		inv := *eq.Inverter
		clone.Inverter = &inv
	}
	return &clone
}
