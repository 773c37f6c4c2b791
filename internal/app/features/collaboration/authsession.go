// internal/app/features/collaboration/authsession.go
package collaboration

import (
	"net/http"

	"github.com/dalemusser/sharedcart/internal/app/system/auth"
	"go.uber.org/zap"
)

// startSession exchanges the caller's bearer token for a session cookie so a
// browser can open /live without putting the token in the URL.
func startSession(h *Handler, sm *auth.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := sm.SaveUser(w, r, *u); err != nil {
			h.Log.Error("save session cookie failed", zap.String("user_id", u.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session started", "userId": u.ID})
	}
}

// endSession drops the session cookie. It needs no credentials.
func endSession(h *Handler, sm *auth.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sm.ClearUser(w, r); err != nil {
			h.Log.Error("clear session cookie failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
	}
}
