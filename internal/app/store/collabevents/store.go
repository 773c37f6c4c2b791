// internal/app/store/collabevents/store.go
package collabevents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding the activity feed.
const CollectionName = "collab_events"

// DefaultLimit caps list queries when the caller passes limit <= 0.
const DefaultLimit = 50

// Store manages collaboration activity events.
type Store struct {
	c *mongo.Collection
}

// New creates a new collab events Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Log inserts an event, filling ID, EventID and At when unset.
func (s *Store) Log(ctx context.Context, event models.CollabEvent) error {
	fill(&event)
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// ListBySession returns the newest events first.
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.CollabEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []models.CollabEvent{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func fill(event *models.CollabEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
}

// MemoryStore keeps events in process; used by tests and dev runs.
type MemoryStore struct {
	mu     sync.Mutex
	events []models.CollabEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Log appends an event.
func (m *MemoryStore) Log(_ context.Context, event models.CollabEvent) error {
	fill(&event)
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

// ListBySession returns the newest events first.
func (m *MemoryStore) ListBySession(_ context.Context, sessionID string, limit int64) ([]models.CollabEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.CollabEvent{}
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].SessionID == sessionID {
			out = append(out, m.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
