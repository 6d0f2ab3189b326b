package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	dErrors "storegate/pkg/domain-errors"
)

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes and validates a request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// Prepare runs PrepareRequest on a request bound from path and query parameters.
// On failure it writes an error response and returns false.
//
// Usage:
//
//	req := &storeRequest{ChainID: chi.URLParam(r, "chainId")}
//	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
//	    return
//	}
func Prepare(w http.ResponseWriter, req any, logger *slog.Logger, ctx context.Context, requestID string) bool {
	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		// Preserve original error code if it's already a domain error
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, err.Error()))
		}
		return false
	}
	return true
}
