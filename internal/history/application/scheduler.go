package application

import (
	"context"
	"log"
	"time"
)

// DefaultSamplePeriod is the sampling tick.
const DefaultSamplePeriod = 3 * time.Second

// Scheduler drives the sampler on its two cadences: the short sampling tick
// and the daily retention purge. Each tick is a discrete unit of work; a
// failed tick is logged and retried on the next one.
type Scheduler struct {
	sampler      *Sampler
	samplePeriod time.Duration
	retention    time.Duration
	purgeDailyAt string
	logger       *log.Logger
}

// NewScheduler constructs a scheduler.
func NewScheduler(sampler *Sampler, samplePeriod, retention time.Duration, purgeDailyAt string, logger *log.Logger) *Scheduler {
	if samplePeriod <= 0 {
		samplePeriod = DefaultSamplePeriod
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if purgeDailyAt == "" {
		purgeDailyAt = "00:00"
	}
	return &Scheduler{
		sampler:      sampler,
		samplePeriod: samplePeriod,
		retention:    retention,
		purgeDailyAt: purgeDailyAt,
		logger:       logger,
	}
}

// Start runs the sampling loop until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.sampler == nil {
		return
	}
	ticker := time.NewTicker(s.samplePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sampler.SampleAll(ctx); err != nil && s.logger != nil {
				s.logger.Printf("history sampling tick error: %v", err)
			}
		}
	}
}

// StartPurge runs the daily purge loop until ctx is canceled.
func (s *Scheduler) StartPurge(ctx context.Context) {
	if s == nil || s.sampler == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			now = now.UTC()
			if !s.shouldPurge(now, lastRun) {
				continue
			}
			lastRun = now
			if _, err := s.sampler.PurgeOlderThan(ctx, s.retention); err != nil && s.logger != nil {
				s.logger.Printf("history purge error: %v", err)
			}
		}
	}
}

func (s *Scheduler) shouldPurge(now, lastRun time.Time) bool {
	at, err := time.Parse("15:04", s.purgeDailyAt)
	if err != nil {
		return false
	}
	if now.Hour() != at.Hour() || now.Minute() != at.Minute() {
		return false
	}
	// One purge per day even when several ticks land inside the minute.
	return lastRun.IsZero() || now.Sub(lastRun) > time.Minute
}
