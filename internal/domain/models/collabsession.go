// internal/domain/models/collabsession.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vote values. A participant holds at most one Vote per line item.
const (
	VoteUpValue   = 1
	VoteDownValue = -1
)

// CollabSession is a shared cart curated by a set of participants.
//
// NOTE:
//   - SessionID is the public, link-shareable token; ID is the Mongo _id.
//   - Participants only grows (explicit join), never shrinks.
//   - Items are unique by ProductID.
//   - Revision increases by one on every write and guards concurrent writers.
type CollabSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID    string             `bson:"session_id" json:"sessionId"`
	Participants []string           `bson:"participants" json:"participants"`
	Items        []CartLineItem     `bson:"items" json:"items"`
	Revision     int64              `bson:"revision" json:"revision"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// CartLineItem is one product's shared state within a session.
// Name and Price are a snapshot taken when the product entered the session.
type CartLineItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Name      string    `bson:"name" json:"name"`
	Price     float64   `bson:"price" json:"price"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Votes     []Vote    `bson:"votes" json:"votes"`
	Comments  []Comment `bson:"comments" json:"comments"`
	AddedBy   string    `bson:"added_by,omitempty" json:"addedBy,omitempty"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

// Vote is a participant's +1/-1 opinion on a line item.
type Vote struct {
	UserID string    `bson:"user_id" json:"userId"`
	Value  int       `bson:"value" json:"value"`
	CastAt time.Time `bson:"cast_at" json:"castAt"`
}

// Comment is immutable once appended.
type Comment struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	UserName  string    `bson:"user_name" json:"userName"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"timestamp"`
}

// Summary is the read-side price split for a session.
type Summary struct {
	TotalPrice float64 `json:"totalPrice"`
	NumPeople  int     `json:"numPeople"`
	PerPerson  float64 `json:"perPerson"`
}

// HasParticipant reports whether userID has joined the session.
func (s *CollabSession) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ItemIndex returns the position of productID in Items, or -1.
func (s *CollabSession) ItemIndex(productID string) int {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so a mutation attempt never aliases the
// snapshot it was read from. Slices are never nil in the copy, so they
// encode as [] rather than null.
func (s CollabSession) Clone() CollabSession {
	out := s
	out.Participants = cloneSlice(s.Participants)
	out.Items = make([]CartLineItem, len(s.Items))
	for i, it := range s.Items {
		it.Votes = cloneSlice(it.Votes)
		it.Comments = cloneSlice(it.Comments)
		out.Items[i] = it
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// VoteIndex returns the position of userID's vote, or -1.
func (it *CartLineItem) VoteIndex(userID string) int {
	for i := range it.Votes {
		if it.Votes[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Score is the sum of vote values.
func (it *CartLineItem) Score() int {
	n := 0
	for _, v := range it.Votes {
		n += v.Value
	}
	return n
}
