package inbox

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound, Message: "inbox item not found"},
}

// Handler handles HTTP requests for the user inbox.
type Handler struct {
	service *Service
}

// NewHandler creates a new inbox handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers inbox routes (require an authenticated user).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/me/inbox", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/{id}/read", h.MarkRead)
		r.Post("/read-all", h.MarkAllRead)
	})
}

// List handles GET /me/inbox.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	filter := ListFilter{
		Category:   domain.Category(q.Get("category")),
		UnreadOnly: q.Get("unread") == "true",
		Page:       page,
		PageSize:   pageSize,
	}

	items, total, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// UnreadCount handles GET /me/inbox/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkRead handles POST /me/inbox/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	itemID := chi.URLParam(r, "id")

	if err := h.service.MarkRead(r.Context(), userID, itemID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /me/inbox/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	count, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"marked": count})
}
