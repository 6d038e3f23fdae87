package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	estateAuth "github.com/MrEthical07/estateAuth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", estateAuth.ErrInvalidInput)
	}
	return nil
}

// statusFor is the single mapping from engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, estateAuth.ErrUnauthorized),
		errors.Is(err, estateAuth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, estateAuth.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, estateAuth.ErrListingNotFound),
		errors.Is(err, estateAuth.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, estateAuth.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, estateAuth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, estateAuth.ErrLoginRateLimited),
		errors.Is(err, estateAuth.ErrRegistrationRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, estateAuth.ErrBackendUnavailable),
		errors.Is(err, estateAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	case http.StatusServiceUnavailable:
		h.logger.Warn("backend unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "service unavailable"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
