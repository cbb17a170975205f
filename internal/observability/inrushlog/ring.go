package inrushlog

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory inrush event ring.
const DefaultCapacity = 100

// Entry is one recorded inrush event.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	EquipmentID    string    `json:"equipment_id"`
	EquipmentName  string    `json:"equipment_name"`
	InrushCurrent  float64   `json:"inrush_current"`
	NominalCurrent float64   `json:"nominal_current"`
	InrushFactor   float64   `json:"inrush_factor"`
	Alarm          bool      `json:"alarm"`
}

// Ring is a bounded, process-wide buffer of the most recent inrush events.
// The control engine only appends; readers get a snapshot copy.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing constructs a ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (r *Ring) Add(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// List returns the retained entries, oldest first.
func (r *Ring) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len is the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
