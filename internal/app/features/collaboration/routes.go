// internal/app/features/collaboration/routes.go
package collaboration

import (
	"github.com/dalemusser/sharedcart/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /api/collaboration.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Delete("/auth/session", endSession(h, sm))

	// Everything else requires an authenticated caller
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// Only session creation and joining are throttled.
		pr.Group(func(lr chi.Router) {
			if h.SessionLimit != nil {
				lr.Use(h.SessionLimit.Middleware)
			}
			lr.Post("/create", h.HandleCreate)
			lr.Post("/join", h.HandleJoin)
		})

		pr.Post("/auth/session", startSession(h, sm))

		pr.Post("/add-item", h.HandleAddItem)
		pr.Post("/update-quantity", h.HandleUpdateQuantity)
		pr.Post("/vote", h.HandleVote)
		pr.Post("/comment", h.HandleComment)

		pr.Get("/{sessionId}", h.ServeSession)
		pr.Get("/{sessionId}/summary", h.ServeSummary)
		pr.Get("/{sessionId}/activity", h.ServeActivity)
		pr.Get("/{sessionId}/live", h.ServeLive)
	})

	return r
}
