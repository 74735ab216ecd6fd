package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/partnerhub/notify/internal/pkg/ctxlog"
)

// ErrorMapping maps one domain error to an HTTP status. A handler passes its
// package's mappings to HandleError.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // uses err.Error() when empty
}

// HandleError translates a domain error through the mappings. Anything
// unmapped is logged and reported as a 500 without leaking the error text.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, msg)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
