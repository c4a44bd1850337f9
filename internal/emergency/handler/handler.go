// Package handler exposes the emergency pipeline and listener over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailguard/internal/emergency/listener"
	"trailguard/internal/emergency/models"
	"trailguard/internal/emergency/service"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

type Handler struct {
	service  *service.Service
	listener *listener.Listener
	logger   *slog.Logger
}

func New(svc *service.Service, l *listener.Listener, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, listener: l, logger: logger}
}

// Routes mounts the emergency API.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/emergencies", func(r chi.Router) {
		r.Post("/", h.createEmergency)
		r.Get("/", h.listByLog)
		r.Get("/active", h.getActive)
		r.Get("/{id}", h.getByID)
	})
	r.Route("/listener", func(r chi.Router) {
		r.Get("/status", h.listenerStatus)
		r.Post("/start", h.listenerStart)
		r.Post("/stop", h.listenerStop)
		r.Post("/wake", h.listenerWake)
	})
	r.Get("/monitor/events", h.monitorEvents)
}

type createRequest struct {
	Type        models.Type       `json:"type"`
	Severity    models.Severity   `json:"severity"`
	Description string            `json:"description"`
	Location    models.GPSPoint   `json:"location"`
	LogID       string            `json:"related_log_id"`
	MilestoneID string            `json:"related_milestone_id"`
	Contacts    []string          `json:"emergency_contacts"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *Handler) createEmergency(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "decoding request body"))
		return
	}

	input := service.CreateInput{
		Type:        req.Type,
		Severity:    req.Severity,
		Description: req.Description,
		Location:    req.Location,
		Contacts:    req.Contacts,
		Metadata:    req.Metadata,
	}
	if req.LogID != "" {
		logID, err := domain.ParseLogID(req.LogID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		input.RelatedLogID = &logID
	}
	if req.MilestoneID != "" {
		milestoneID, err := domain.ParseMilestoneID(req.MilestoneID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		input.RelatedMilestoneID = &milestoneID
	}

	em, err := h.service.CreateAndSubmit(r.Context(), input)
	if err != nil {
		// A submission failure still created a local record; return it so the
		// client knows what to retry.
		if em != nil && apperrors.HasCode(err, apperrors.CodeSubmission) {
			h.writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":     apperrors.CodeOf(err),
				"message":   err.Error(),
				"emergency": em,
			})
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, em)
}

func (h *Handler) listByLog(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("log_id")
	if raw == "" {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidInput, "log_id query parameter is required"))
		return
	}
	logID, err := domain.ParseLogID(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	list, err := h.service.GetByLogID(r.Context(), logID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"emergencies": list})
}

func (h *Handler) getActive(w http.ResponseWriter, r *http.Request) {
	var (
		em  *models.Emergency
		err error
	)
	if raw := r.URL.Query().Get("log_id"); raw != "" {
		var logID domain.LogID
		logID, err = domain.ParseLogID(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		em, err = h.service.GetActiveByLog(r.Context(), logID)
	} else {
		em, err = h.service.GetActive(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, em)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseEmergencyID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	em, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, em)
}

func (h *Handler) listenerStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": h.listener.Status()})
}

func (h *Handler) listenerStart(w http.ResponseWriter, _ *http.Request) {
	status := h.listener.Start()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": status})
}

func (h *Handler) listenerStop(w http.ResponseWriter, _ *http.Request) {
	h.listener.Stop()
	h.writeJSON(w, http.StatusOK, map[string]any{"status": h.listener.Status()})
}

func (h *Handler) listenerWake(w http.ResponseWriter, _ *http.Request) {
	h.listener.Wake()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": h.listener.Status()})
}

func (h *Handler) monitorEvents(w http.ResponseWriter, _ *http.Request) {
	events := h.listener.Monitor().Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("writing response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidInput, apperrors.CodeDecode:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeWalletLocked, apperrors.CodeNoAccount:
		status = http.StatusPreconditionFailed
	case apperrors.CodeNotConnected, apperrors.CodeConnecting:
		status = http.StatusServiceUnavailable
	case apperrors.CodeSubmission:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]any{
		"error":   apperrors.CodeOf(err),
		"message": err.Error(),
	})
}
