// internal/app/store/collabsessions/store.go
package collabsessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding collaborative carts.
const CollectionName = "collab_sessions"

var (
	// ErrNotFound is returned when no session has the given session_id.
	ErrNotFound = errors.New("collab session not found")
	// ErrDuplicateSessionID is returned when an insert collides on session_id.
	ErrDuplicateSessionID = errors.New("collab session id already exists")
	// ErrRevisionConflict is returned when a conditional write lost a race.
	ErrRevisionConflict = errors.New("collab session revision changed")
)

// Store persists collaborative cart sessions in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new collab sessions Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Insert stores a brand new session. The unique index on session_id makes
// this the collision check for generated identifiers.
func (s *Store) Insert(ctx context.Context, sess models.CollabSession) error {
	_, err := s.c.InsertOne(ctx, sess)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateSessionID
	}
	if err != nil {
		return fmt.Errorf("insert collab session: %w", err)
	}
	return nil
}

// GetBySessionID loads a session by its public token.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (models.CollabSession, error) {
	var sess models.CollabSession
	err := s.c.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CollabSession{}, ErrNotFound
	}
	if err != nil {
		return models.CollabSession{}, fmt.Errorf("get collab session: %w", err)
	}
	return sess, nil
}

// ReplaceIfRevision writes sess back only if the stored revision still equals
// expected. sess.Revision must already hold the new revision.
func (s *Store) ReplaceIfRevision(ctx context.Context, sess models.CollabSession, expected int64) error {
	filter := bson.M{"session_id": sess.SessionID, "revision": expected}
	update := bson.M{"$set": bson.M{
		"participants": sess.Participants,
		"items":        sess.Items,
		"revision":     sess.Revision,
		"updated_at":   sess.UpdatedAt,
	}}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("replace collab session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRevisionConflict
	}
	return nil
}

// AddParticipant atomically appends userID to the participant set and bumps
// the revision. Re-joining is a no-op that returns the current state.
func (s *Store) AddParticipant(ctx context.Context, sessionID, userID string) (models.CollabSession, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sess models.CollabSession
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"session_id":   sessionID,
			"participants": bson.M{"$ne": userID},
		},
		bson.M{
			"$push": bson.M{"participants": userID},
			"$inc":  bson.M{"revision": 1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&sess)

	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.CollabSession{}, fmt.Errorf("add collab participant: %w", err)
	}

	// Either the session is missing or userID already joined.
	return s.GetBySessionID(ctx, sessionID)
}
