package collabsessions

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/sharedcart/internal/domain/models"
)

// MemoryStore is an in-process store with the same conditional-write
// semantics as Store. It backs tests and single-node development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.CollabSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.CollabSession)}
}

// Insert stores sess unless its session_id is taken.
func (m *MemoryStore) Insert(ctx context.Context, sess models.CollabSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.SessionID]; exists {
		return ErrDuplicateSessionID
	}
	m.sessions[sess.SessionID] = sess.Clone()
	return nil
}

// GetBySessionID returns a copy of the stored session.
func (m *MemoryStore) GetBySessionID(ctx context.Context, sessionID string) (models.CollabSession, error) {
	if err := ctx.Err(); err != nil {
		return models.CollabSession{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return models.CollabSession{}, ErrNotFound
	}
	return sess.Clone(), nil
}

// ReplaceIfRevision mirrors Store.ReplaceIfRevision.
func (m *MemoryStore) ReplaceIfRevision(ctx context.Context, sess models.CollabSession, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[sess.SessionID]
	if !ok || cur.Revision != expected {
		return ErrRevisionConflict
	}
	next := sess.Clone()
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	m.sessions[sess.SessionID] = next
	return nil
}

// AddParticipant mirrors Store.AddParticipant.
func (m *MemoryStore) AddParticipant(ctx context.Context, sessionID, userID string) (models.CollabSession, error) {
	if err := ctx.Err(); err != nil {
		return models.CollabSession{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return models.CollabSession{}, ErrNotFound
	}
	if !sess.HasParticipant(userID) {
		sess.Participants = append(sess.Participants, userID)
		sess.Revision++
		sess.UpdatedAt = time.Now().UTC()
		m.sessions[sessionID] = sess
	}
	return sess.Clone(), nil
}
