package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/partnerhub/notify/internal/dispatch"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
	"github.com/partnerhub/notify/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: outbox.ErrNotFound, Status: http.StatusNotFound, Message: "outbox record not found"},
	{Error: ErrNotRetryable, Status: http.StatusConflict},
	{Error: dispatch.ErrInvalidEvent, Status: http.StatusBadRequest},
}

// Handler handles the reconciliation HTTP surface.
type Handler struct {
	service *Service
}

// NewHandler creates a new admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers reconciliation routes (operator token required).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/outbox", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Post("/{id}/retry", h.Retry)
		r.Post("/retry-all-failed", h.RetryAllFailed)
		r.Post("/dispatch", h.Dispatch)
	})
}

// List handles GET /outbox.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"records":  records,
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

// Stats handles GET /outbox/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// Retry handles POST /outbox/{id}/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.Retry(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, rec)
}

// RetryAllFailed handles POST /outbox/retry-all-failed.
func (h *Handler) RetryAllFailed(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RetryAllFailed(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"requeued": count})
}

// Dispatch handles POST /outbox/dispatch.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var event dispatch.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Dispatch(r.Context(), &event)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusAccepted, result)
}

func parseFilter(r *http.Request) (outbox.Filter, error) {
	q := r.URL.Query()

	filter := outbox.Filter{
		Channel:      domain.Channel(q.Get("channel")),
		Status:       outbox.Status(q.Get("status")),
		EventType:    domain.EventType(q.Get("eventType")),
		TargetUserID: q.Get("targetUserId"),
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return outbox.Filter{}, err
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return outbox.Filter{}, err
		}
		filter.To = t
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	return filter.Normalize(time.Now().UTC()), nil
}
