// internal/app/features/collaboration/items.go
package collaboration

import (
	"net/http"
	"strings"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/system/timeouts"
)

type addItemRequest struct {
	SessionID string `json:"sessionId"`
	itemBody
}

type updateQuantityRequest struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type voteRequest struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	VoteType  string `json:"voteType"`
}

type commentRequest struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	Text      string `json:"text"`
}

// HandleAddItem handles POST /add-item.
// Body: { sessionId, productId, name, price, quantity? (default 1) }
func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "add-item", err)
		return
	}
	if err := requireField("sessionId", req.SessionID); err != nil {
		h.writeServiceError(w, r, "add-item", err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeServiceError(w, r, "add-item", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab add-item")
	defer cancel()

	sess, err := h.Svc.AddItem(ctx, identity(r), strings.TrimSpace(req.SessionID), in)
	if err != nil {
		h.writeServiceError(w, r, "add-item", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item added", Session: sess})
}

// HandleUpdateQuantity handles POST /update-quantity.
// Body: { sessionId, productId, quantity } where quantity <= 0 removes the item.
func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "update-quantity", err)
		return
	}
	if err := requireField("sessionId", req.SessionID); err != nil {
		h.writeServiceError(w, r, "update-quantity", err)
		return
	}
	if req.Quantity == nil {
		h.writeServiceError(w, r, "update-quantity", &collab.ValidationError{Field: "quantity", Reason: "required"})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab update-quantity")
	defer cancel()

	sess, err := h.Svc.UpdateQuantity(ctx, identity(r), strings.TrimSpace(req.SessionID), req.ProductID, *req.Quantity)
	if err != nil {
		h.writeServiceError(w, r, "update-quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Quantity updated", Session: sess})
}

// HandleVote handles POST /vote. Body: { sessionId, productId, voteType: "up"|"down" }
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "vote", err)
		return
	}
	if err := requireField("sessionId", req.SessionID); err != nil {
		h.writeServiceError(w, r, "vote", err)
		return
	}
	// An unparseable voteType is passed through so that membership is
	// checked before input validation.
	vt, _ := collab.ParseVoteType(req.VoteType)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab vote")
	defer cancel()

	sess, err := h.Svc.Vote(ctx, identity(r), strings.TrimSpace(req.SessionID), req.ProductID, vt)
	if err != nil {
		h.writeServiceError(w, r, "vote", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Session: sess})
}

// HandleComment handles POST /comment. Body: { sessionId, productId, text }
func (h *Handler) HandleComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeServiceError(w, r, "comment", err)
		return
	}
	if err := requireField("sessionId", req.SessionID); err != nil {
		h.writeServiceError(w, r, "comment", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "collab comment")
	defer cancel()

	sess, err := h.Svc.Comment(ctx, identity(r), strings.TrimSpace(req.SessionID), req.ProductID, req.Text)
	if err != nil {
		h.writeServiceError(w, r, "comment", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Session: sess})
}
