package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-accounts-api/internal/domain"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// httpError returns the status, client message and reason code for err.
// Auth failures expose only the reason's own message. Anything that is not a
// known client error is logged and reported as a generic 500.
func httpError(ctx context.Context, err error) (int, string, string) {
	code := domain.Code(err)
	switch {
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest, err.Error(), code
	case errors.Is(err, domain.ErrUnauthorized):
		var re *domain.ReasonError
		if errors.As(err, &re) {
			slog.DebugContext(ctx, "unauthorized", "req_id", chimiddleware.GetReqID(ctx), "err", err)
			return http.StatusUnauthorized, re.Message, code
		}
		return http.StatusUnauthorized, "unauthorized", code
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error(), code
	}
	slog.ErrorContext(ctx, "request failed", "req_id", chimiddleware.GetReqID(ctx), "err", err)
	return http.StatusInternalServerError, "internal server error", code
}
