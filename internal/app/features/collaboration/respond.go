// internal/app/features/collaboration/respond.go
package collaboration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/system/auth"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a 2000-rune comment fits comfortably.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors to HTTP statuses in one place.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if collab.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	var ve *collab.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, collab.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, collab.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, collab.ErrNotAParticipant):
		writeError(w, http.StatusForbidden, "You are not a participant of this session")
	case errors.Is(err, collab.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item not found in session")
	case errors.Is(err, collab.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "Session is busy, please retry")
	case errors.Is(err, collab.ErrPersistence):
		h.Log.Error("collab storage failure", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable, please retry")
	default:
		h.Log.Error("collab request failed", zap.String("op", op), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

// decodeBody reads a JSON object into dst. Failures are reported as
// ValidationErrors so they render as 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, false)
}

// decodeOptionalBody is decodeBody but accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && optional:
			return nil
		case errors.Is(err, io.EOF):
			return &collab.ValidationError{Field: "body", Reason: "required"}
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return &collab.ValidationError{Field: field, Reason: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type.Kind().String()))}
		case errors.As(err, &maxErr):
			return &collab.ValidationError{Field: "body", Reason: "too large"}
		default:
			return &collab.ValidationError{Field: "body", Reason: "malformed JSON"}
		}
	}
	return nil
}

func jsonKind(goKind string) string {
	switch {
	case strings.HasPrefix(goKind, "int"), strings.HasPrefix(goKind, "uint"):
		return "whole number"
	case strings.HasPrefix(goKind, "float"):
		return "number"
	case goKind == "slice":
		return "list"
	}
	return goKind
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &collab.ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

// identity builds the service identity from the authenticated user.
// RequireSignedIn guarantees one is present.
func identity(r *http.Request) collab.Identity {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return collab.Identity{}
	}
	return collab.Identity{UserID: u.ID, UserName: u.Name}
}
