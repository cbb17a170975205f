package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	equipment "plant-scada/internal/equipment/domain"
	history "plant-scada/internal/history/domain"
	"plant-scada/internal/observability/metrics"
)

// DefaultRetention is how long samples are kept before the daily purge.
const DefaultRetention = 90 * 24 * time.Hour

// seedSpacing separates backfilled demo samples.
const seedSpacing = 2 * time.Minute

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Sampler snapshots live equipment telemetry into the historical stream and
// enforces the retention window.
type Sampler struct {
	equipment equipment.Repository
	samples   history.Repository
	clock     Clock
	logger    *log.Logger
}

// SamplerOption customizes the sampler.
type SamplerOption func(*Sampler)

// WithClock assigns a clock.
func WithClock(clock Clock) SamplerOption {
	return func(s *Sampler) {
		s.clock = clock
	}
}

// NewSampler constructs a sampler.
func NewSampler(equipmentRepo equipment.Repository, sampleRepo history.Repository, logger *log.Logger, opts ...SamplerOption) (*Sampler, error) {
	if equipmentRepo == nil {
		return nil, errors.New("sampler: nil equipment repository")
	}
	if sampleRepo == nil {
		return nil, errors.New("sampler: nil sample repository")
	}
	sampler := &Sampler{
		equipment: equipmentRepo,
		samples:   sampleRepo,
		clock:     systemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(sampler)
	}
	return sampler, nil
}

// SampleAll copies every equipment's live measurement set into one sample
// each. A failure on one equipment is logged and skipped; it never aborts
// the pass.
func (s *Sampler) SampleAll(ctx context.Context) error {
	began := s.clock.Now()
	all, err := s.equipment.ListAll(ctx)
	if err != nil {
		metrics.ObserveSamplerRun(metrics.ResultError, s.clock.Now().Sub(began))
		return err
	}

	written := 0
	failed := 0
	for _, eq := range all {
		sample := history.FromEquipment(eq, s.clock.Now())
		sample.ID = uuid.NewString()
		sample.CreatedAt = s.clock.Now()
		if err := s.samples.Append(ctx, sample); err != nil {
			failed++
			if s.logger != nil {
				s.logger.Printf("history sample failed: %s: %v", eq.ID, err)
			}
			continue
		}
		written++
	}
	metrics.AddSamplesWritten(written)

	result := metrics.ResultSuccess
	if failed > 0 {
		result = metrics.ResultError
	}
	metrics.ObserveSamplerRun(result, s.clock.Now().Sub(began))
	return nil
}

// PurgeOlderThan removes samples older than now minus retention and returns
// the count removed. Repeating the call with the same window removes nothing.
func (s *Sampler) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := s.clock.Now().Add(-retention)
	deleted, err := s.samples.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddSamplesPurged(deleted)
	if s.logger != nil {
		s.logger.Printf("history purge: %d samples removed before %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}

// SeedSamples backfills count+1 samples spaced two minutes apart ending now,
// tagged as demo data. Bootstrap use only, never on the sampling path.
func (s *Sampler) SeedSamples(ctx context.Context, eq *equipment.Equipment, count int) error {
	if eq == nil {
		return errors.New("sampler: nil equipment")
	}
	now := s.clock.Now()
	for i := count; i >= 0; i-- {
		sample := history.FromEquipment(eq, now.Add(-time.Duration(i)*seedSpacing))
		sample.ID = uuid.NewString()
		sample.Source = history.SourceSample
		sample.CreatedAt = now
		if err := s.samples.Append(ctx, sample); err != nil {
			return err
		}
	}
	if s.logger != nil {
		s.logger.Printf("seeded %d history samples for %s", count+1, eq.Name)
	}
	return nil
}

// ListByEquipment returns the most recent samples for one equipment.
func (s *Sampler) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]*history.Sample, error) {
	return s.samples.ListByEquipment(ctx, equipmentID, limit)
}

// ListByEquipmentAndRange returns samples inside [from, to).
func (s *Sampler) ListByEquipmentAndRange(ctx context.Context, equipmentID string, from, to time.Time) ([]*history.Sample, error) {
	return s.samples.ListByEquipmentAndRange(ctx, equipmentID, from, to)
}
