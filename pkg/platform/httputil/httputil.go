package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "storegate/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Proxy errors replay the backend's status and raw body; upstream errors keep the
// backend status; coded domain errors map through DomainCodeToHTTPStatus.
func WriteError(w http.ResponseWriter, err error) {
	var proxyErr *dErrors.ProxyError
	if errors.As(err, &proxyErr) {
		writeProxyError(w, proxyErr)
		return
	}

	var upstreamErr *dErrors.UpstreamError
	if errors.As(err, &upstreamErr) {
		status := upstreamErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		WriteJSON(w, status, map[string]string{
			"error":             "upstream_error",
			"error_description": upstreamErr.Message,
		})
		return
	}

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		code := DomainCodeToHTTPCode(domainErr.Code)
		response := map[string]string{
			"error": code,
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

func writeProxyError(w http.ResponseWriter, err *dErrors.ProxyError) {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if len(err.Body) == 0 {
		WriteJSON(w, status, map[string]string{"error": "proxy_error"})
		return
	}
	ct := err.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	_, _ = w.Write(err.Body) //nolint:errcheck // headers already sent
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidArgument, dErrors.CodeUnknownChain, dErrors.CodeUnsupportedOption:
		return http.StatusBadRequest
	case dErrors.CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeInvalidArgument:
		return "invalid_argument"
	case dErrors.CodeUnknownChain:
		return "unknown_chain"
	case dErrors.CodeUnsupportedOption:
		return "unsupported_option"
	case dErrors.CodeCacheUnavailable:
		return "cache_unavailable"
	case dErrors.CodeTimeout:
		return "upstream_timeout"
	case dErrors.CodeInternal:
		return "internal_error"
	default:
		return "internal_error"
	}
}
