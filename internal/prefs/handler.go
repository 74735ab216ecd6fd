package prefs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound, Message: "preference not found"},
}

// Handler handles HTTP requests for notification preferences.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new preferences handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers preference routes (require an authenticated user).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me/preferences", h.Get)
	r.Patch("/me/preferences", h.Update)
}

// UpdatePreferenceRequest represents request body for updating preferences.
type UpdatePreferenceRequest struct {
	EmailEnabled *bool             `json:"email_enabled"`
	BatchModes   map[string]string `json:"batch_modes" validate:"dive,oneof=immediate windowed"`
}

// Get handles GET /me/preferences.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	pref, err := h.service.Resolve(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, pref)
}

// Update handles PATCH /me/preferences.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	var req UpdatePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	modes := make(map[domain.EventType]BatchMode, len(req.BatchModes))
	for t, m := range req.BatchModes {
		eventType := domain.EventType(t)
		if !domain.KnownEventType(eventType) {
			httputil.Error(w, http.StatusBadRequest, "unknown event type: "+t)
			return
		}
		modes[eventType] = BatchMode(m)
	}

	pref, err := h.service.Update(r.Context(), userID, req.EmailEnabled, modes)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, pref)
}
