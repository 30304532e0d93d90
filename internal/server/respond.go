package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// envelope is the JSON shape of every response.
type envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       any                `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, msg string, data any) {
	writeJSON(w, r, status, envelope{Success: true, Message: msg, Data: data})
}

func respondPage(w http.ResponseWriter, r *http.Request, msg string, data any, p models.Pagination) {
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: msg, Data: data, Pagination: &p})
}

// respondError maps err onto a status code. Anything unrecognised is logged
// and reported as a 500 without its detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	} else {
		zerolog.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, r, status, envelope{Success: false, Message: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusBadRequest, "Referenced resource does not exist"
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidFilter),
		errors.Is(err, store.ErrInvalidPagination),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidTicket):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, login.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, store.ErrInvalidPrincipal):
		return http.StatusUnauthorized, "Access token required"
	case errors.Is(err, auth.ErrPermissionDenied), errors.Is(err, store.ErrForbiddenOperation):
		return http.StatusForbidden, "Insufficient permissions"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeRaw(w http.ResponseWriter, r *http.Request, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, env envelope) {
	env.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeRaw(w, r, env)
}

// decodeJSON reads a single JSON document from the body into dst. Unknown
// fields are ignored, so fields outside dst never reach a store.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", store.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON body", store.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", store.ErrInvalidInput)
	}
	return id, nil
}

// principal returns the authenticated principal after checking perm.
func principal(r *http.Request, perm auth.Permission) (models.Principal, error) {
	if err := auth.RequirePermission(r.Context(), perm); err != nil {
		return models.Principal{}, err
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	return p, nil
}
