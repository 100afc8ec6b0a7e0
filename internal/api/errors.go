package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-locks/internal/bridges/smartlock"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeUpstream     = "upstream_error"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeLockError maps a bridge or lock error to a status code and writes
// the localized message for the request's language.
func (s *Server) writeLockError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := lockErrorStatus(err)
	key := smartlock.ErrorKey(err)
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Key:     key,
		Message: s.translate(requestLanguage(r, s.language), key),
	})
}

func lockErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, smartlock.ErrUnknownDevice):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, smartlock.ErrUnknownCapability), errors.Is(err, smartlock.ErrInvalidCommand):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, lock.ErrNotAvailable), errors.Is(err, lock.ErrDeviceRemoved):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case lock.IsPrecondition(err):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusBadGateway, ErrCodeUpstream
	}
}

func (s *Server) translate(lang, key string) string {
	if s.translator == nil {
		return key
	}
	return s.translator.T(lang, key)
}

// requestLanguage returns the first language tag of Accept-Language, or
// fallback when the header is absent.
func requestLanguage(r *http.Request, fallback string) string {
	header := r.Header.Get("Accept-Language")
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == "*" {
		return fallback
	}
	return tag
}
