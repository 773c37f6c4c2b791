// Package collab implements collaborative cart sessions: shared carts that
// several authenticated users curate together by adding items, negotiating
// quantities, voting, and commenting.
//
// Every mutation is a read-modify-write guarded by the session's revision
// stamp. Writers inside one process additionally queue on a per-session lock
// so they rarely lose a revision race; the stamp keeps replicas honest.
package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/store/collabcache"
	"github.com/dalemusser/sharedcart/internal/app/store/collabsessions"
	"github.com/dalemusser/sharedcart/internal/app/system/timeouts"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Defaults for the retry budgets.
const (
	DefaultMaxAttempts = 3
	idAttempts         = 5
)

// Identity is the authenticated caller, as established by the identity
// provider in front of this service.
type Identity struct {
	UserID   string
	UserName string
}

// Store is the persistence collaborator. collabsessions.Store (Mongo) and
// collabsessions.MemoryStore implement it.
type Store interface {
	Insert(ctx context.Context, sess models.CollabSession) error
	GetBySessionID(ctx context.Context, sessionID string) (models.CollabSession, error)
	ReplaceIfRevision(ctx context.Context, sess models.CollabSession, expected int64) error
	AddParticipant(ctx context.Context, sessionID, userID string) (models.CollabSession, error)
}

// Cache holds read snapshots. Set must never replace a newer revision, and
// a nil error from Set means the cache holds that revision or newer.
type Cache interface {
	Get(ctx context.Context, sessionID string) (models.CollabSession, error)
	Set(ctx context.Context, sess models.CollabSession) error
	Delete(ctx context.Context, sessionID string) error
}

// cacheRefreshTimeout bounds cache upkeep, which runs detached from the
// request that triggered it.
const cacheRefreshTimeout = time.Second

// Recorder receives activity events after successful operations.
type Recorder interface {
	Record(ctx context.Context, event models.CollabEvent)
}

// EventLister reads the activity feed.
type EventLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.CollabEvent, error)
}

// Publisher pushes fresh snapshots to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, sess models.CollabSession)
}

// Service is the CollaborationSessionService.
type Service struct {
	store  Store
	cache  Cache
	audit  Recorder
	events EventLister
	live   Publisher
	log    *zap.Logger

	locks *keyedLock
	sfg   singleflight.Group
	stale staleSet

	maxAttempts int
	now         func() time.Time
	newID       func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the read-through snapshot cache.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithRecorder sends activity events to r.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.audit = r } }

// WithEvents enables the Activity operation.
func WithEvents(l EventLister) Option { return func(s *Service) { s.events = l } }

// WithPublisher enables live snapshot fan-out.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.live = p } }

// WithMaxAttempts sets the optimistic retry budget (minimum 1).
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator overrides session id generation, for tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates a Service over store.
func New(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       store,
		log:         logger,
		locks:       newKeyedLock(),
		stale:       staleSet{revs: make(map[string]int64)},
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads the authoritative session from the store.
func (s *Service) load(ctx context.Context, sessionID string) (models.CollabSession, error) {
	sess, err := s.store.GetBySessionID(ctx, sessionID)
	if errors.Is(err, collabsessions.ErrNotFound) {
		return models.CollabSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.CollabSession{}, persistence("load session", err)
	}
	return sess, nil
}

// read serves GetSession and Summary. A cached snapshot is used only when it
// already lists userID; participants never shrink, so a snapshot that omits
// the caller may simply predate their join and the store is consulted.
// Sessions whose last cache refresh failed skip the cache entirely.
func (s *Service) read(ctx context.Context, sessionID, userID string) (models.CollabSession, error) {
	if s.cache != nil && !s.stale.has(sessionID) {
		cached, err := s.cache.Get(ctx, sessionID)
		if err == nil && cached.HasParticipant(userID) {
			return cached, nil
		}
		if err != nil && !errors.Is(err, collabcache.ErrCacheMiss) {
			s.log.Warn("collab cache get failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	// The shared load must outlive any one caller: concurrent readers wait
	// on it, and each gives up only on its own context.
	ch := s.sfg.DoChan(sessionID, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Read())
		defer cancel()
		sess, err := s.load(lctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			go s.refresh(context.Background(), sess)
		}
		return sess, nil
	})

	select {
	case <-ctx.Done():
		return models.CollabSession{}, persistence("load session", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.CollabSession{}, res.Err
		}
		return res.Val.(models.CollabSession).Clone(), nil
	}
}

// refresh writes sess to the cache. When that fails the cached copy may be
// older than the store, so it is dropped and local reads bypass the cache
// until a snapshot at least this new has landed.
func (s *Service) refresh(ctx context.Context, sess models.CollabSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheRefreshTimeout)
	defer cancel()

	err := s.cache.Set(ctx, sess)
	if err == nil {
		s.stale.clear(sess.SessionID, sess.Revision)
		return
	}
	s.stale.mark(sess.SessionID, sess.Revision)
	s.log.Warn("collab cache refresh failed",
		zap.String("session_id", sess.SessionID),
		zap.Int64("revision", sess.Revision),
		zap.Error(err))
	if err := s.cache.Delete(ctx, sess.SessionID); err != nil {
		s.log.Debug("collab cache delete failed", zap.String("session_id", sess.SessionID), zap.Error(err))
	}
}

// staleSet remembers sessions whose cached snapshot may lag the store, and
// the revision a refresh must reach before the cache is trusted again.
type staleSet struct {
	mu   sync.Mutex
	revs map[string]int64
}

func (m *staleSet) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revs[sessionID]
	return ok
}

func (m *staleSet) mark(sessionID string, rev int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rev > m.revs[sessionID] {
		m.revs[sessionID] = rev
	}
}

func (m *staleSet) clear(sessionID string, rev int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if want, ok := m.revs[sessionID]; ok && rev >= want {
		delete(m.revs, sessionID)
	}
}

// mutation edits next in place and returns the event describing the change.
// Returning an error aborts the attempt without writing.
type mutation func(next *models.CollabSession) (models.CollabEvent, error)

// mutate runs apply as an optimistic read-modify-write on one session.
func (s *Service) mutate(ctx context.Context, user Identity, sessionID string, apply mutation) (models.CollabSession, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return models.CollabSession{}, persistence("wait for session lock", err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		cur, err := s.load(ctx, sessionID)
		if err != nil {
			return models.CollabSession{}, err
		}
		if !cur.HasParticipant(user.UserID) {
			return models.CollabSession{}, ErrNotAParticipant
		}

		next := cur.Clone()
		event, err := apply(&next)
		if err != nil {
			return models.CollabSession{}, err
		}
		next.Revision = cur.Revision + 1
		next.UpdatedAt = s.now()

		err = s.store.ReplaceIfRevision(ctx, next, cur.Revision)
		if errors.Is(err, collabsessions.ErrRevisionConflict) {
			s.log.Debug("collab revision conflict",
				zap.String("session_id", sessionID),
				zap.Int64("revision", cur.Revision),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.log.Error("collab session write failed", zap.String("session_id", sessionID), zap.Error(err))
			return models.CollabSession{}, persistence("write session", err)
		}

		event.SessionID = sessionID
		event.UserID = user.UserID
		s.afterWrite(ctx, next, event)
		return next, nil
	}

	s.log.Warn("collab retries exhausted",
		zap.String("session_id", sessionID),
		zap.Int("attempts", s.maxAttempts))
	return models.CollabSession{}, ErrConcurrencyConflict
}

// afterWrite refreshes the cache, records the event, and notifies live
// subscribers. None of these can fail the committed operation.
func (s *Service) afterWrite(ctx context.Context, sess models.CollabSession, event models.CollabEvent) {
	if event.At.IsZero() {
		event.At = s.now()
	}
	if s.cache != nil {
		s.refresh(ctx, sess)
	}
	if s.audit != nil {
		s.audit.Record(ctx, event)
	}
	if s.live != nil {
		s.live.Publish(ctx, sess)
	}
}
