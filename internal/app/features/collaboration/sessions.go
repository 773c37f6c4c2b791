// internal/app/features/collaboration/sessions.go
package collaboration

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/system/timeouts"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type itemBody struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	Quantity  *int     `json:"quantity"`
}

// input applies the default quantity of 1 and requires a price.
func (b itemBody) input() (collab.ItemInput, error) {
	if b.Price == nil {
		return collab.ItemInput{}, &collab.ValidationError{Field: "price", Reason: "required"}
	}
	in := collab.ItemInput{ProductID: b.ProductID, Name: b.Name, Price: *b.Price, Quantity: 1}
	if b.Quantity != nil {
		in.Quantity = *b.Quantity
	}
	return in, nil
}

type createRequest struct {
	InitialItems []itemBody `json:"initialItems"`
}

type createResponse struct {
	SessionID string `json:"sessionId"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type messageResponse struct {
	Message string               `json:"message,omitempty"`
	Session models.CollabSession `json:"session"`
}

// HandleCreate handles POST /create.
// Body (optional): { "initialItems": [ {productId,name,price,quantity} ] }
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "create", err)
		return
	}

	initial := make([]collab.ItemInput, 0, len(req.InitialItems))
	for _, b := range req.InitialItems {
		in, err := b.input()
		if err != nil {
			h.writeServiceError(w, r, "create", err)
			return
		}
		initial = append(initial, in)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab create")
	defer cancel()

	id, err := h.Svc.CreateSession(ctx, identity(r), initial)
	if err != nil {
		h.writeServiceError(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{SessionID: id})
}

// HandleJoin handles POST /join. Body: { "sessionId": "..." }
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "join", err)
		return
	}
	if err := requireField("sessionId", req.SessionID); err != nil {
		h.writeServiceError(w, r, "join", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab join")
	defer cancel()

	sess, err := h.Svc.JoinSession(ctx, identity(r), strings.TrimSpace(req.SessionID))
	if err != nil {
		h.writeServiceError(w, r, "join", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Joined session", Session: sess})
}

// ServeSession handles GET /{sessionId}.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "collab get")
	defer cancel()

	sess, err := h.Svc.GetSession(ctx, identity(r), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeServiceError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ServeSummary handles GET /{sessionId}/summary?numPeople=N.
// A missing numPeople means 1; a non-numeric one is rejected.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	numPeople := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("numPeople")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeServiceError(w, r, "summary", &collab.ValidationError{Field: "numPeople", Reason: "must be a whole number"})
			return
		}
		numPeople = n
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "collab summary")
	defer cancel()

	sum, err := h.Svc.Summary(ctx, identity(r), chi.URLParam(r, "sessionId"), numPeople)
	if err != nil {
		h.writeServiceError(w, r, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type activityResponse struct {
	Events []models.CollabEvent `json:"events"`
}

// ServeActivity handles GET /{sessionId}/activity?limit=N (newest first).
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			h.writeServiceError(w, r, "activity", &collab.ValidationError{Field: "limit", Reason: "must be between 1 and 500"})
			return
		}
		limit = n
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "collab activity")
	defer cancel()

	events, err := h.Svc.Activity(ctx, identity(r), chi.URLParam(r, "sessionId"), limit)
	if err != nil {
		h.writeServiceError(w, r, "activity", err)
		return
	}
	writeJSON(w, http.StatusOK, activityResponse{Events: events})
}
