package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	equipment "plant-scada/internal/equipment/domain"
	equipmentpostgres "plant-scada/internal/equipment/infrastructure/postgres"
	historyapp "plant-scada/internal/history/application"
	historypostgres "plant-scada/internal/history/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn         string
	sampleCount int
	motorCount  int
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PLANT_DATABASE_DSN or -dsn is required")
	}
	if cfg.motorCount <= 0 {
		log.Fatal("motors must be > 0")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	equipmentRepo := equipmentpostgres.NewRepository(db)
	sampleRepo := historypostgres.NewRepository(db)
	sampler, err := historyapp.NewSampler(equipmentRepo, sampleRepo, logger)
	if err != nil {
		log.Fatalf("sampler: %v", err)
	}

	units := buildPlant(cfg.motorCount)
	for _, eq := range units {
		if err := equipmentRepo.Save(ctx, eq); err != nil {
			log.Fatalf("save equipment %s: %v", eq.ID, err)
		}
		if cfg.sampleCount > 0 {
			if err := sampler.SeedSamples(ctx, eq, cfg.sampleCount); err != nil {
				log.Fatalf("seed samples %s: %v", eq.ID, err)
			}
		}
	}
	log.Printf("seeded %d units with %d backfill samples each", len(units), cfg.sampleCount)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", os.Getenv("PLANT_DATABASE_DSN"), "postgres dsn")
	flag.IntVar(&cfg.sampleCount, "samples", 60, "backfill samples per unit")
	flag.IntVar(&cfg.motorCount, "motors", 3, "number of motors to create")
	flag.Parse()
	return cfg
}

func buildPlant(motorCount int) []*equipment.Equipment {
	now := time.Now().UTC()
	units := []*equipment.Equipment{
		{
			ID: "transformer-001", Name: "Distribution Transformer", Type: equipment.TypeTransformer,
			Status: equipment.StatusStopped, Manufacturer: "ABB", Model: "DTR-500",
			NominalCurrent: 120, Voltage: 380, Temperature: 40,
			ActivePower: 75, ReactivePower: 20,
			Transformer: &equipment.TransformerSpec{
				PrimaryVoltage: 13800, SecondaryVoltage: 380, RatedPowerKVA: 500,
				CoolingType: "ONAN", OilLevel: 0.92, OilTemperature: 55,
			},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "capacitor-001", Name: "PF Correction Bank", Type: equipment.TypeCapacitor,
			Status: equipment.StatusStopped, Manufacturer: "Epcos", Model: "PhaseCap-HD",
			NominalCurrent: 20, Voltage: 380, Temperature: 30,
			CapacitanceUF: 150,
			CreatedAt:     now, UpdatedAt: now,
		},
		{
			ID: "inverter-001", Name: "Fan Drive Inverter", Type: equipment.TypeInverter,
			Status: equipment.StatusStopped, Manufacturer: "Danfoss", Model: "FC-302",
			NominalCurrent: 25, Voltage: 380, Temperature: 33,
			ActivePower: 11, ReactivePower: 4,
			Inverter: &equipment.InverterSpec{
				FrequencySetpoint: 50, MinFrequency: 20, MaxFrequency: 60,
				MotorPoles: 4, MotorRatedCurrent: 25,
			},
			CreatedAt: now, UpdatedAt: now,
		},
	}
	classes := []string{"F", "B", "H", "A"}
	for i := 0; i < motorCount; i++ {
		units = append(units, &equipment.Equipment{
			ID:   "motor-" + pad(i+1),
			Name: "Pump Motor " + pad(i+1), Type: equipment.TypeMotor,
			Status: equipment.StatusStopped, Manufacturer: "WEG", Model: "W22-250",
			NominalCurrent: 45, Voltage: 380, Temperature: 35,
			ActivePower: 22, ReactivePower: 10,
			Motor: &equipment.MotorSpec{
				Poles: 4, RatedPowerKW: 22, RatedVoltage: 380, RatedFrequency: 60,
				InsulationClass: classes[i%len(classes)],
			},
			CreatedAt: now, UpdatedAt: now,
		})
	}
	return units
}

func pad(n int) string {
	return fmt.Sprintf("%03d", n)
}
