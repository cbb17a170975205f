package application

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	equipment "plant-scada/internal/equipment/domain"
	equipmentmemory "plant-scada/internal/equipment/infrastructure/memory"
	history "plant-scada/internal/history/domain"
	"plant-scada/internal/history/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type failingRepo struct {
	history.Repository
	failFor string
}

func (r *failingRepo) Append(ctx context.Context, sample *history.Sample) error {
	if sample.EquipmentID == r.failFor {
		return errors.New("store unavailable")
	}
	return r.Repository.Append(ctx, sample)
}

func testUnits() []*equipment.Equipment {
	return []*equipment.Equipment{
		{
			ID: "motor-001", Name: "Main Pump Motor", Type: equipment.TypeMotor,
			Status: equipment.StatusRunning, Current: 36, Voltage: 380, Power: 20,
			Temperature: 62, PowerFactor: 0.91,
			Motor: &equipment.MotorSpec{RPM: 1780, Torque: 110},
		},
		{
			ID: "transformer-001", Name: "Service Transformer", Type: equipment.TypeTransformer,
			Status: equipment.StatusRunning, Current: 100, Voltage: 380, Power: 60,
			Transformer: &equipment.TransformerSpec{OilLevel: 0.92, OilTemperature: 55},
		},
		{
			ID: "inverter-001", Name: "Feed Inverter", Type: equipment.TypeInverter,
			Status: equipment.StatusRunning, Current: 20, Voltage: 380, Power: 10,
			Inverter: &equipment.InverterSpec{OutputFrequency: 50},
		},
	}
}

func newSamplerFixture(t *testing.T, sampleRepo history.Repository) (*Sampler, *equipmentmemory.Repository, *fixedClock) {
	t.Helper()
	equipmentRepo := equipmentmemory.NewRepository()
	for _, eq := range testUnits() {
		if err := equipmentRepo.Save(context.Background(), eq); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sampler, err := NewSampler(equipmentRepo, sampleRepo,
		log.New(os.Stdout, "test ", log.LstdFlags), WithClock(clock))
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	return sampler, equipmentRepo, clock
}

func TestSampleAll_OneSamplePerUnit(t *testing.T) {
	sampleRepo := memory.NewRepository()
	sampler, _, _ := newSamplerFixture(t, sampleRepo)

	if err := sampler.SampleAll(context.Background()); err != nil {
		t.Fatalf("SampleAll: %v", err)
	}
	if sampleRepo.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", sampleRepo.Len())
	}

	motorSamples, err := sampler.ListByEquipment(context.Background(), "motor-001", 10)
	if err != nil {
		t.Fatalf("ListByEquipment: %v", err)
	}
	if len(motorSamples) != 1 {
		t.Fatalf("expected 1 motor sample, got %d", len(motorSamples))
	}
	sample := motorSamples[0]
	if sample.ID == "" || sample.CreatedAt.IsZero() {
		t.Fatal("id and created_at must be stamped")
	}
	if sample.Current != 36 || sample.Voltage != 380 || sample.Temperature != 62 {
		t.Fatalf("measurement set not copied: %+v", sample)
	}
	if sample.RPM == nil || *sample.RPM != 1780 || sample.Torque == nil || *sample.Torque != 110 {
		t.Fatalf("motor fields not copied: %+v", sample)
	}
	if sample.Frequency != nil || sample.OilLevel != nil {
		t.Fatal("motor sample must not carry inverter or transformer fields")
	}
	if sample.Source != history.SourceAutomatic {
		t.Fatalf("source %q", sample.Source)
	}
	if sample.QualityIndex != history.DefaultQualityIndex {
		t.Fatalf("quality index %d", sample.QualityIndex)
	}

	trafoSamples, _ := sampler.ListByEquipment(context.Background(), "transformer-001", 10)
	if len(trafoSamples) != 1 || trafoSamples[0].OilLevel == nil || *trafoSamples[0].OilLevel != 0.92 {
		t.Fatalf("transformer oil fields not copied: %+v", trafoSamples)
	}
	invSamples, _ := sampler.ListByEquipment(context.Background(), "inverter-001", 10)
	if len(invSamples) != 1 || invSamples[0].Frequency == nil || *invSamples[0].Frequency != 50 {
		t.Fatalf("inverter frequency not copied: %+v", invSamples)
	}
}

func TestSampleAll_IsolatesPerUnitFailure(t *testing.T) {
	sampleRepo := memory.NewRepository()
	sampler, _, _ := newSamplerFixture(t, &failingRepo{Repository: sampleRepo, failFor: "motor-001"})

	if err := sampler.SampleAll(context.Background()); err != nil {
		t.Fatalf("SampleAll must not abort on a per-unit failure: %v", err)
	}
	if sampleRepo.Len() != 2 {
		t.Fatalf("expected 2 samples despite the failing unit, got %d", sampleRepo.Len())
	}
}

func TestSeedSamples(t *testing.T) {
	sampleRepo := memory.NewRepository()
	sampler, _, clock := newSamplerFixture(t, sampleRepo)
	motor := testUnits()[0]

	if err := sampler.SeedSamples(context.Background(), motor, 30); err != nil {
		t.Fatalf("SeedSamples: %v", err)
	}
	samples, err := sampler.ListByEquipmentAndRange(context.Background(), "motor-001",
		clock.Now().Add(-2*time.Hour), clock.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ListByEquipmentAndRange: %v", err)
	}
	if len(samples) != 31 {
		t.Fatalf("expected count+1 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		gap := samples[i].Timestamp.Sub(samples[i-1].Timestamp)
		if gap != 2*time.Minute && gap != -2*time.Minute {
			t.Fatalf("samples must be two minutes apart, got %s", gap)
		}
	}
	for _, sample := range samples {
		if sample.Source != history.SourceSample {
			t.Fatalf("seeded sample source %q", sample.Source)
		}
	}
}

func TestPurgeOlderThan(t *testing.T) {
	sampleRepo := memory.NewRepository()
	sampler, _, clock := newSamplerFixture(t, sampleRepo)
	motor := testUnits()[0]

	old := history.FromEquipment(motor, clock.Now().Add(-91*24*time.Hour))
	old.ID = "old"
	recent := history.FromEquipment(motor, clock.Now().Add(-time.Hour))
	recent.ID = "recent"
	for _, sample := range []*history.Sample{old, recent} {
		if err := sampleRepo.Append(context.Background(), sample); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	deleted, err := sampler.PurgeOlderThan(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if sampleRepo.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", sampleRepo.Len())
	}

	again, err := sampler.PurgeOlderThan(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if again != 0 {
		t.Fatalf("repeat purge should remove nothing, got %d", again)
	}
}
