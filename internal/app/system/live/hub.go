// Package live fans session snapshots out to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"go.uber.org/zap"
)

// subscriberBuffer is how many undelivered messages a subscriber may queue
// before new ones are dropped for it.
const subscriberBuffer = 8

// Message is the payload pushed to subscribers.
type Message struct {
	Type     string               `json:"type"`
	Revision int64                `json:"revision"`
	Session  models.CollabSession `json:"session"`
}

// Subscription receives encoded Messages for one session.
type Subscription struct {
	C <-chan []byte

	hub       *Hub
	sessionID string
	ch        chan []byte
	once      sync.Once
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub tracks subscribers per session.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
	log  *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), log: logger}
}

// Subscribe registers interest in sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	sub := &Subscription{C: ch, hub: h, sessionID: sessionID, ch: ch}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.sessionID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
	close(sub.ch)
}

// Subscribers reports how many subscriptions are open for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Publish sends sess to every local subscriber of its session.
func (h *Hub) Publish(_ context.Context, sess models.CollabSession) {
	data, err := Encode(sess)
	if err != nil {
		h.log.Warn("live encode failed", zap.String("session_id", sess.SessionID), zap.Error(err))
		return
	}
	h.Deliver(sess.SessionID, data)
}

// Deliver sends an already encoded message. Slow subscribers miss messages
// rather than block the writer; the next snapshot supersedes the dropped one.
func (h *Hub) Deliver(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- data:
		default:
			h.log.Debug("live subscriber lagging, message dropped", zap.String("session_id", sessionID))
		}
	}
}

// Encode renders the wire form of a session snapshot.
func Encode(sess models.CollabSession) ([]byte, error) {
	return json.Marshal(Message{Type: "session", Revision: sess.Revision, Session: sess})
}

// PeekRevision reads the revision of an encoded Message without decoding the
// session. Subscribers use it to skip snapshots older than one already sent.
func PeekRevision(data []byte) (int64, bool) {
	var m struct {
		Revision *int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Revision == nil {
		return 0, false
	}
	return *m.Revision, true
}
