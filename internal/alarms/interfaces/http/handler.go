package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	alarmapp "plant-scada/internal/alarms/application"
	alarms "plant-scada/internal/alarms/domain"
	alarmexport "plant-scada/internal/alarms/interfaces"
	"plant-scada/internal/audit"
	"plant-scada/internal/auth"
)

const timeLayout = time.RFC3339

// Handler serves alarm endpoints.
type Handler struct {
	service     *alarmapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *alarmapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alarm handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes alarm requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/alarms" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}
	if r.URL.Path == "/api/v1/alarms/report.pdf" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReport(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alarms/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	alarmID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, alarmID)
		return
	}
	if len(parts) == 2 && parts[1] == "acknowledge" && r.Method == http.MethodPost {
		h.handleAcknowledge(w, r, alarmID)
		return
	}
	if len(parts) == 2 && parts[1] == "resolve" && r.Method == http.MethodPost {
		h.handleResolve(w, r, alarmID)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "list alarms failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, alarmID string) {
	event, err := h.service.Get(r.Context(), alarmID)
	if err != nil {
		respondAlarmError(w, err)
		return
	}
	writeJSON(w, event)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request, alarmID string) {
	operator := auth.SubjectFromContext(r.Context())
	if operator == "" {
		operator = "anonymous"
	}
	event, err := h.service.Acknowledge(r.Context(), alarmID, operator)
	if err != nil {
		respondAlarmError(w, err)
		return
	}
	writeJSON(w, event)
	h.logAudit(r, alarmID, event.EquipmentID, "alarm.acknowledge")
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, alarmID string) {
	event, err := h.service.Resolve(r.Context(), alarmID)
	if err != nil {
		respondAlarmError(w, err)
		return
	}
	writeJSON(w, event)
	h.logAudit(r, alarmID, event.EquipmentID, "alarm.resolve")
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "list alarms failed", http.StatusInternalServerError)
		return
	}
	payload, err := alarmexport.BuildAlarmReportPDF(list, time.Now().UTC())
	if err != nil {
		http.Error(w, "render report failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="alarm-report.pdf"`)
	_, _ = w.Write(payload)
}

func (h *Handler) logAudit(r *http.Request, alarmID, equipmentID, action string) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{"alarm_id": alarmID})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:       auth.SubjectFromContext(r.Context()),
		Role:        string(auth.RoleFromContext(r.Context())),
		Action:      action,
		EquipmentID: equipmentID,
		Metadata:    payload,
		IP:          audit.ClientIP(r),
		UserAgent:   r.UserAgent(),
	})
}

func filterFromQuery(r *http.Request) (alarms.Filter, error) {
	query := r.URL.Query()
	filter := alarms.Filter{
		EquipmentID:    query.Get("equipment_id"),
		OnlyActive:     query.Get("active") == "true",
		Unacknowledged: query.Get("unacknowledged") == "true",
	}
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			return alarms.Filter{}, errors.New("from must be RFC3339")
		}
		filter.From = parsed.UTC()
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			return alarms.Filter{}, errors.New("to must be RFC3339")
		}
		filter.To = parsed.UTC()
	}
	return filter, nil
}

func respondAlarmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alarms.ErrNotFound):
		http.Error(w, "alarm not found", http.StatusNotFound)
	case errors.Is(err, alarms.ErrAlreadyAcknowledged), errors.Is(err, alarms.ErrAlreadyResolved):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "alarm operation failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
