package apihttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"plant-scada/internal/audit"
	equipmentapp "plant-scada/internal/equipment/application"
	"plant-scada/internal/observability/inrushlog"
)

// StatusHandler serves the plant-wide status readout.
type StatusHandler struct {
	status *equipmentapp.StatusService
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(status *equipmentapp.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// ServeHTTP handles GET /api/v1/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.status == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	snapshot, err := h.status.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

// InrushLogHandler serves the recent inrush event log.
type InrushLogHandler struct {
	ring *inrushlog.Ring
}

// NewInrushLogHandler constructs an InrushLogHandler.
func NewInrushLogHandler(ring *inrushlog.Ring) *InrushLogHandler {
	return &InrushLogHandler{ring: ring}
}

// ServeHTTP handles GET /api/v1/inrush-log.
func (h *InrushLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.ring == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.ring.List())
}

// AuditHandler serves the recent audit trail.
type AuditHandler struct {
	reader audit.Reader
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(reader audit.Reader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

// ServeHTTP handles GET /api/v1/audit.
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	entries, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "list audit entries failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
