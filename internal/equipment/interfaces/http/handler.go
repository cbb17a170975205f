package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"plant-scada/internal/audit"
	"plant-scada/internal/auth"
	equipmentapp "plant-scada/internal/equipment/application"
	equipment "plant-scada/internal/equipment/domain"
)

// Handler serves equipment read and control endpoints.
type Handler struct {
	engine      *equipmentapp.Engine
	repo        equipment.Repository
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(engine *equipmentapp.Engine, repo equipment.Repository, auditLogger audit.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("equipment handler: nil engine")
	}
	if repo == nil {
		return nil, errors.New("equipment handler: nil repository")
	}
	return &Handler{engine: engine, repo: repo, auditLogger: auditLogger}, nil
}

// ServeHTTP routes equipment requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/emergency-stop" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleEmergencyStop(w, r)
		return
	}
	if r.URL.Path == "/api/v1/equipment" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/equipment/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	equipmentID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, equipmentID)
		return
	}
	if len(parts) == 2 && parts[1] == "start" && r.Method == http.MethodPost {
		h.handleStart(w, r, equipmentID)
		return
	}
	if len(parts) == 2 && parts[1] == "stop" && r.Method == http.MethodPost {
		h.handleStop(w, r, equipmentID)
		return
	}
	if len(parts) == 2 && parts[1] == "frequency" && r.Method == http.MethodPost {
		h.handleFrequency(w, r, equipmentID)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		list []*equipment.Equipment
		err  error
	)
	switch {
	case query.Get("status") != "":
		list, err = h.repo.ListByStatus(r.Context(), equipment.Status(query.Get("status")))
	case query.Get("type") != "":
		list, err = h.repo.ListByType(r.Context(), equipment.Type(query.Get("type")))
	default:
		list, err = h.repo.ListAll(r.Context())
	}
	if err != nil {
		http.Error(w, "list equipment failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, equipmentID string) {
	eq, err := h.repo.Get(r.Context(), equipmentID)
	if err != nil {
		http.Error(w, "get equipment failed", http.StatusInternalServerError)
		return
	}
	if eq == nil {
		http.Error(w, "equipment not found", http.StatusNotFound)
		return
	}
	type readout struct {
		*equipment.Equipment
		InrushCurrent float64 `json:"inrushCurrent"`
		LoadPercent   float64 `json:"loadPercent"`
	}
	writeJSON(w, readout{Equipment: eq, InrushCurrent: eq.InrushCurrent(), LoadPercent: eq.LoadPercent()})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request, equipmentID string) {
	eq, err := h.engine.Start(r.Context(), equipmentID)
	if err != nil {
		respondControlError(w, err)
		return
	}
	writeJSON(w, eq)
	h.logAudit(r, equipmentID, "equipment.start", nil)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request, equipmentID string) {
	eq, err := h.engine.Stop(r.Context(), equipmentID)
	if err != nil {
		respondControlError(w, err)
		return
	}
	writeJSON(w, eq)
	h.logAudit(r, equipmentID, "equipment.stop", nil)
}

func (h *Handler) handleFrequency(w http.ResponseWriter, r *http.Request, equipmentID string) {
	var req struct {
		Frequency float64 `json:"frequency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	eq, err := h.engine.AdjustInverterFrequency(r.Context(), equipmentID, req.Frequency)
	if err != nil {
		respondControlError(w, err)
		return
	}
	writeJSON(w, eq)
	h.logAudit(r, equipmentID, "equipment.frequency.set", map[string]any{"frequency": req.Frequency})
}

func (h *Handler) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EmergencyStopAll(r.Context()); err != nil {
		http.Error(w, "emergency stop failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "emergency stop executed"})
	h.logAudit(r, "", "equipment.emergency_stop", nil)
}

func (h *Handler) logAudit(r *http.Request, equipmentID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var payload json.RawMessage
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
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

func respondControlError(w http.ResponseWriter, err error) {
	var (
		transitionErr *equipment.InvalidTransitionError
		interlockErr  *equipment.InterlockActiveError
		frequencyErr  *equipment.InvalidFrequencyError
	)
	switch {
	case errors.Is(err, equipment.ErrNotFound):
		http.Error(w, "equipment not found", http.StatusNotFound)
	case errors.Is(err, equipment.ErrNotAnInverter):
		http.Error(w, "equipment is not an inverter", http.StatusBadRequest)
	case errors.As(err, &interlockErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             interlockErr.Error(),
			"retryAfterSeconds": interlockErr.Remaining.Seconds(),
		})
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusConflict)
	case errors.As(err, &frequencyErr):
		http.Error(w, frequencyErr.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "equipment operation failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
