package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// SessionInserter is satisfied by collabsessions.Store and MemoryStore.
type SessionInserter interface {
	Insert(ctx context.Context, sess models.CollabSession) error
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	store SessionInserter
	t     *testing.T
}

// NewFixtures creates a new Fixtures instance writing through store.
func NewFixtures(t *testing.T, store SessionInserter) *Fixtures {
	t.Helper()
	return &Fixtures{store: store, t: t}
}

// LineItem builds a cart line with no votes or comments.
func LineItem(productID, name string, price float64, qty int) models.CartLineItem {
	return models.CartLineItem{
		ProductID: productID,
		Name:      name,
		Price:     price,
		Quantity:  qty,
		Votes:     []models.Vote{},
		Comments:  []models.Comment{},
		AddedAt:   time.Now().UTC(),
	}
}

// CreateSession inserts a session at revision 1 with the given participants
// and items. The first participant is recorded as the adder of every item.
func (f *Fixtures) CreateSession(ctx context.Context, sessionID string, participants []string, items ...models.CartLineItem) models.CollabSession {
	f.t.Helper()

	now := time.Now().UTC()
	if items == nil {
		items = []models.CartLineItem{}
	}
	for i := range items {
		if items[i].AddedBy == "" && len(participants) > 0 {
			items[i].AddedBy = participants[0]
		}
	}
	sess := models.CollabSession{
		ID:           primitive.NewObjectID(),
		SessionID:    sessionID,
		Participants: participants,
		Items:        items,
		Revision:     1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.store.Insert(ctx, sess); err != nil {
		f.t.Fatalf("CreateSession(%s) failed: %v", sessionID, err)
	}
	return sess
}
