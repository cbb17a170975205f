package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alarmapp "plant-scada/internal/alarms/application"
	alarms "plant-scada/internal/alarms/domain"
	alarmmemory "plant-scada/internal/alarms/infrastructure/memory"
	alarmpostgres "plant-scada/internal/alarms/infrastructure/postgres"
	alarmhttp "plant-scada/internal/alarms/interfaces/http"
	alarmnotify "plant-scada/internal/alarms/notify"
	apihttp "plant-scada/internal/api/http"
	"plant-scada/internal/audit"
	"plant-scada/internal/auth"
	"plant-scada/internal/config"
	equipmentapp "plant-scada/internal/equipment/application"
	equipment "plant-scada/internal/equipment/domain"
	equipmentmemory "plant-scada/internal/equipment/infrastructure/memory"
	equipmentpostgres "plant-scada/internal/equipment/infrastructure/postgres"
	equipmenthttp "plant-scada/internal/equipment/interfaces/http"
	historyapp "plant-scada/internal/history/application"
	history "plant-scada/internal/history/domain"
	historymemory "plant-scada/internal/history/infrastructure/memory"
	historypostgres "plant-scada/internal/history/infrastructure/postgres"
	historyhttp "plant-scada/internal/history/interfaces/http"
	"plant-scada/internal/observability/inrushlog"
	"plant-scada/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var (
		equipmentRepo equipment.Repository
		alarmRepo     alarms.Repository
		sampleRepo    history.Repository
		auditLogger   audit.Logger
		auditReader   audit.Reader
		demoMode      bool
	)
	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		metrics.Init(db, logger)
		equipmentRepo = equipmentpostgres.NewRepository(db)
		alarmRepo = alarmpostgres.NewRepository(db)
		sampleRepo = historypostgres.NewRepository(db)
		auditRepo := audit.NewRepository(db)
		auditLogger = auditRepo
		auditReader = auditRepo
	} else {
		logger.Printf("no database DSN configured, running with in-memory stores")
		metrics.Init(nil, logger)
		equipmentRepo = equipmentmemory.NewRepository()
		alarmRepo = alarmmemory.NewRepository()
		sampleRepo = historymemory.NewRepository()
		memoryAudit := audit.NewMemoryLogger()
		auditLogger = memoryAudit
		auditReader = memoryAudit
		demoMode = true
	}

	alarmBroker := alarmhttp.NewSSEBroker()
	notifiers := []alarmapp.Notifier{alarmBroker}
	if cfg.WebhookURL != "" {
		channel, err := alarmnotify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		webhookNotifier, err := alarmnotify.NewNotifier(channel, nil,
			alarmnotify.WithMinSeverity(alarms.SeverityMedium),
			alarmnotify.WithCooldown(time.Minute),
			alarmnotify.WithDedupeWindow(10*time.Minute),
		)
		if err != nil {
			logger.Fatalf("webhook notifier error: %v", err)
		}
		notifiers = append(notifiers, webhookNotifier)
	}

	alarmService, err := alarmapp.NewService(alarmRepo, logger,
		alarmapp.WithNotifier(alarmnotify.NewMultiNotifier(notifiers...)))
	if err != nil {
		logger.Fatalf("alarm service error: %v", err)
	}

	gate := equipmentapp.NewInterlockGate(cfg.InterlockWindow(), nil)
	ring := inrushlog.NewRing(inrushlog.DefaultCapacity)
	engine, err := equipmentapp.NewEngine(equipmentRepo, gate, alarmService, logger,
		equipmentapp.WithTransitionDelays(cfg.StartupDelay(), cfg.ShutdownDelay()),
		equipmentapp.WithInrushLog(ring),
	)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}

	sampler, err := historyapp.NewSampler(equipmentRepo, sampleRepo, logger)
	if err != nil {
		logger.Fatalf("sampler error: %v", err)
	}
	if demoMode {
		if err := seedDemoPlant(context.Background(), equipmentRepo, sampler, logger); err != nil {
			logger.Fatalf("demo seed error: %v", err)
		}
	}

	statusService, err := equipmentapp.NewStatusService(equipmentRepo, engine, alarmService)
	if err != nil {
		logger.Fatalf("status service error: %v", err)
	}

	scheduler := historyapp.NewScheduler(sampler, cfg.SamplePeriod(), cfg.Retention(), cfg.Sampling.PurgeDailyAt, logger)
	go scheduler.Start(context.Background())
	go scheduler.StartPurge(context.Background())
	go runThresholdSweep(context.Background(), engine, cfg.SweepPeriod(), logger)

	equipmentHandler, err := equipmenthttp.NewHandler(engine, equipmentRepo, auditLogger)
	if err != nil {
		logger.Fatalf("equipment handler error: %v", err)
	}
	alarmHandler, err := alarmhttp.NewHandler(alarmService, auditLogger)
	if err != nil {
		logger.Fatalf("alarm handler error: %v", err)
	}
	historyHandler, err := historyhttp.NewHandler(sampler)
	if err != nil {
		logger.Fatalf("history handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/equipment", equipmentHandler)
	mux.Handle("/api/v1/equipment/", equipmentHandler)
	mux.Handle("/api/v1/emergency-stop", equipmentHandler)
	mux.Handle("/api/v1/alarms", alarmHandler)
	mux.Handle("/api/v1/alarms/", alarmHandler)
	mux.Handle("/api/v1/alarms/stream", alarmhttp.NewStreamHandler(alarmBroker))
	mux.Handle("/api/v1/history/", historyHandler)
	mux.Handle("/api/v1/status", apihttp.NewStatusHandler(statusService))
	mux.Handle("/api/v1/inrush-log", apihttp.NewInrushLogHandler(ring))
	mux.Handle("/api/v1/audit", apihttp.NewAuditHandler(auditReader))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func runThresholdSweep(ctx context.Context, engine *equipmentapp.Engine, period time.Duration, logger *log.Logger) {
	if period <= 0 {
		period = 5 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.CheckThresholds(ctx); err != nil {
				logger.Printf("threshold sweep error: %v", err)
			}
		}
	}
}

func seedDemoPlant(ctx context.Context, repo equipment.Repository, sampler *historyapp.Sampler, logger *log.Logger) error {
	units := demoEquipment()
	for _, eq := range units {
		if err := repo.Save(ctx, eq); err != nil {
			return err
		}
		if err := sampler.SeedSamples(ctx, eq, 30); err != nil {
			return err
		}
	}
	logger.Printf("seeded demo plant with %d units", len(units))
	return nil
}

func demoEquipment() []*equipment.Equipment {
	now := time.Now().UTC()
	return []*equipment.Equipment{
		{
			ID: "motor-001", Name: "Main Pump Motor", Type: equipment.TypeMotor,
			Status: equipment.StatusStopped, Manufacturer: "WEG", Model: "W22-250",
			NominalCurrent: 45, Voltage: 380, Temperature: 35,
			ActivePower: 22, ReactivePower: 10,
			Motor:     &equipment.MotorSpec{Poles: 4, RatedPowerKW: 22, RatedVoltage: 380, RatedFrequency: 60, InsulationClass: "F"},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "motor-002", Name: "Conveyor Motor", Type: equipment.TypeMotor,
			Status: equipment.StatusStopped, Manufacturer: "WEG", Model: "W22-160",
			NominalCurrent: 30, Voltage: 380, Temperature: 32,
			ActivePower: 15, ReactivePower: 7,
			Motor:     &equipment.MotorSpec{Poles: 6, RatedPowerKW: 15, RatedVoltage: 380, RatedFrequency: 60, InsulationClass: "B"},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "transformer-001", Name: "Distribution Transformer", Type: equipment.TypeTransformer,
			Status: equipment.StatusStopped, Manufacturer: "ABB", Model: "DTR-500",
			NominalCurrent: 120, Voltage: 380, Temperature: 40,
			ActivePower: 75, ReactivePower: 20,
			Transformer: &equipment.TransformerSpec{PrimaryVoltage: 13800, SecondaryVoltage: 380, RatedPowerKVA: 500, CoolingType: "ONAN", OilLevel: 0.92, OilTemperature: 55},
			CreatedAt:   now, UpdatedAt: now,
		},
		{
			ID: "capacitor-001", Name: "PF Correction Bank", Type: equipment.TypeCapacitor,
			Status: equipment.StatusStopped, Manufacturer: "Epcos", Model: "PhaseCap-HD",
			NominalCurrent: 20, Voltage: 380, Temperature: 30,
			CapacitanceUF:  150,
			CreatedAt:      now, UpdatedAt: now,
		},
		{
			ID: "inverter-001", Name: "Fan Drive Inverter", Type: equipment.TypeInverter,
			Status: equipment.StatusStopped, Manufacturer: "Danfoss", Model: "FC-302",
			NominalCurrent: 25, Voltage: 380, Temperature: 33,
			ActivePower: 11, ReactivePower: 4,
			Inverter:  &equipment.InverterSpec{FrequencySetpoint: 50, MinFrequency: 20, MaxFrequency: 60, MotorPoles: 4, MotorRatedCurrent: 25},
			CreatedAt: now, UpdatedAt: now,
		},
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the alarm stream working through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
