// internal/domain/models/collabevent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collaboration event types recorded in the activity feed.
const (
	EventSessionCreated    = "session_created"
	EventParticipantJoined = "participant_joined"
	EventItemAdded         = "item_added"
	EventQuantityUpdated   = "quantity_updated"
	EventItemRemoved       = "item_removed"
	EventVoteCast          = "vote_cast"
	EventVoteCleared       = "vote_cleared"
	EventCommentAdded      = "comment_added"
)

// CollabEvent is one entry in a session's activity feed.
type CollabEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	EventID   string             `bson:"event_id" json:"id"`
	SessionID string             `bson:"session_id" json:"sessionId"`
	Type      string             `bson:"type" json:"type"`
	UserID    string             `bson:"user_id" json:"userId"`
	ProductID string             `bson:"product_id,omitempty" json:"productId,omitempty"`
	Details   map[string]string  `bson:"details,omitempty" json:"details,omitempty"`
	At        time.Time          `bson:"at" json:"at"`
}
