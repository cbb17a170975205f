package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "plant_"

	resultSuccess = "success"
	resultError   = "error"
	resultDenied  = "denied"
)

var (
	registerOnce sync.Once

	startRequests *prometheus.CounterVec
	stopRequests  *prometheus.CounterVec
	startLatency  *prometheus.HistogramVec

	interlockDenials prometheus.Counter
	emergencyStops   prometheus.Counter

	alarmEventsTotal *prometheus.CounterVec

	sweepTotal   *prometheus.CounterVec
	sweepLatency *prometheus.HistogramVec

	samplerTotal    *prometheus.CounterVec
	samplerLatency  *prometheus.HistogramVec
	samplesWritten  prometheus.Counter
	samplesPurged   prometheus.Counter
	inrushEvents    *prometheus.CounterVec
	runningUnits    prometheus.Gauge
	activeAlarmsNow prometheus.Gauge
)

// Init registers supervisory metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		startRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "equipment_start_total",
				Help: "Total equipment start requests by result",
			},
			[]string{"result"},
		)
		stopRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "equipment_stop_total",
				Help: "Total equipment stop requests by result",
			},
			[]string{"result"},
		)
		startLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "equipment_start_latency_seconds",
				Help:    "Start transition latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		interlockDenials = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "interlock_denials_total",
				Help: "Total motor starts denied by the interlock gate",
			},
		)
		emergencyStops = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "emergency_stop_total",
				Help: "Total emergency stop activations",
			},
		)

		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by event type",
			},
			[]string{"event"},
		)

		sweepTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "threshold_sweep_total",
				Help: "Total threshold sweep runs by result",
			},
			[]string{"result"},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "threshold_sweep_latency_seconds",
				Help:    "Threshold sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		samplerTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_sample_runs_total",
				Help: "Total history sampling passes by result",
			},
			[]string{"result"},
		)
		samplerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_sample_latency_seconds",
				Help:    "History sampling pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		samplesWritten = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_samples_written_total",
				Help: "Total historical samples appended",
			},
		)
		samplesPurged = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_samples_purged_total",
				Help: "Total historical samples removed by retention purge",
			},
		)
		inrushEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inrush_events_total",
				Help: "Total recorded inrush events by alarm flag",
			},
			[]string{"alarm"},
		)
		runningUnits = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "equipment_running",
				Help: "Number of equipment currently in RUNNING state",
			},
		)
		activeAlarmsNow = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alarms_active",
				Help: "Number of currently active alarms",
			},
		)

		prometheus.MustRegister(
			startRequests,
			stopRequests,
			startLatency,
			interlockDenials,
			emergencyStops,
			alarmEventsTotal,
			sweepTotal,
			sweepLatency,
			samplerTotal,
			samplerLatency,
			samplesWritten,
			samplesPurged,
			inrushEvents,
			runningUnits,
			activeAlarmsNow,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveStart records a start request duration and result.
func ObserveStart(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if startRequests != nil {
		startRequests.WithLabelValues(result).Inc()
	}
	if startLatency != nil {
		startLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncStop increments the stop counter.
func IncStop(result string) {
	if result == "" {
		result = resultSuccess
	}
	if stopRequests != nil {
		stopRequests.WithLabelValues(result).Inc()
	}
}

// IncInterlockDenial increments the interlock denial counter.
func IncInterlockDenial() {
	if interlockDenials != nil {
		interlockDenials.Inc()
	}
}

// IncEmergencyStop increments the emergency stop counter.
func IncEmergencyStop() {
	if emergencyStops != nil {
		emergencyStops.Inc()
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveSweep records a threshold sweep run.
func ObserveSweep(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sweepTotal != nil {
		sweepTotal.WithLabelValues(result).Inc()
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSamplerRun records a sampling pass.
func ObserveSamplerRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if samplerTotal != nil {
		samplerTotal.WithLabelValues(result).Inc()
	}
	if samplerLatency != nil {
		samplerLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddSamplesWritten increments the appended sample counter by count.
func AddSamplesWritten(count int) {
	if count <= 0 {
		return
	}
	if samplesWritten != nil {
		samplesWritten.Add(float64(count))
	}
}

// AddSamplesPurged increments the purge counter by count.
func AddSamplesPurged(count int64) {
	if count <= 0 {
		return
	}
	if samplesPurged != nil {
		samplesPurged.Add(float64(count))
	}
}

// IncInrushEvent increments the inrush event counter.
func IncInrushEvent(alarm bool) {
	if inrushEvents == nil {
		return
	}
	label := "false"
	if alarm {
		label = "true"
	}
	inrushEvents.WithLabelValues(label).Inc()
}

// SetRunningUnits sets the running equipment gauge.
func SetRunningUnits(count int) {
	if runningUnits != nil {
		runningUnits.Set(float64(count))
	}
}

// SetActiveAlarms sets the active alarm gauge.
func SetActiveAlarms(count int64) {
	if activeAlarmsNow != nil {
		activeAlarmsNow.Set(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultDenied  = resultDenied
)
