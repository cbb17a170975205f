package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	historyapp "plant-scada/internal/history/application"
	historyexport "plant-scada/internal/history/interfaces"
)

const timeLayout = time.RFC3339

// Handler serves historical sample queries and exports.
type Handler struct {
	sampler *historyapp.Sampler
}

// NewHandler constructs a Handler.
func NewHandler(sampler *historyapp.Sampler) (*Handler, error) {
	if sampler == nil {
		return nil, errors.New("history handler: nil sampler")
	}
	return &Handler{sampler: sampler}, nil
}

// ServeHTTP routes history requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	equipmentID := parts[0]

	if len(parts) == 1 {
		h.handleRecent(w, r, equipmentID)
		return
	}
	if len(parts) == 2 && parts[1] == "range" {
		h.handleRange(w, r, equipmentID)
		return
	}
	if len(parts) == 2 && parts[1] == "export.xlsx" {
		h.handleExport(w, r, equipmentID)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request, equipmentID string) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	samples, err := h.sampler.ListByEquipment(r.Context(), equipmentID, limit)
	if err != nil {
		http.Error(w, "list samples failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, samples)
}

func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request, equipmentID string) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := h.sampler.ListByEquipmentAndRange(r.Context(), equipmentID, from, to)
	if err != nil {
		http.Error(w, "list samples failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, samples)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, equipmentID string) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := h.sampler.ListByEquipmentAndRange(r.Context(), equipmentID, from, to)
	if err != nil {
		http.Error(w, "list samples failed", http.StatusInternalServerError)
		return
	}
	payload, err := historyexport.BuildSampleXLSX(equipmentID, samples, time.Now().UTC())
	if err != nil {
		http.Error(w, "render export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+equipmentID+`-samples.xlsx"`)
	_, _ = w.Write(payload)
}

func rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
