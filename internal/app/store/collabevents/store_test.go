package collabevents_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/store/collabevents"
	"github.com/dalemusser/sharedcart/internal/app/system/indexes"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/dalemusser/sharedcart/internal/testutil"
)

type eventStore interface {
	Log(ctx context.Context, event models.CollabEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.CollabEvent, error)
}

func forEachStore(t *testing.T, fn func(t *testing.T, store eventStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, collabevents.NewMemoryStore())
	})
	t.Run("mongo", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ctx, cancel := testutil.TestContext()
		defer cancel()
		if err := indexes.EnsureAll(ctx, db, 0); err != nil {
			t.Fatalf("EnsureAll failed: %v", err)
		}
		fn(t, collabevents.New(db))
	})
}

func TestStore_LogAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, store eventStore) {
		ctx, cancel := testutil.TestContext()
		defer cancel()

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, typ := range []string{models.EventSessionCreated, models.EventItemAdded, models.EventVoteCast} {
			err := store.Log(ctx, models.CollabEvent{
				SessionID: "abc",
				UserID:    "alice",
				Type:      typ,
				At:        base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}
		if err := store.Log(ctx, models.CollabEvent{SessionID: "other", Type: models.EventSessionCreated}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}

		events, err := store.ListBySession(ctx, "abc", 0)
		if err != nil {
			t.Fatalf("ListBySession failed: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		if events[0].Type != models.EventVoteCast || events[2].Type != models.EventSessionCreated {
			t.Errorf("expected newest first, got %s ... %s", events[0].Type, events[2].Type)
		}
		for _, ev := range events {
			if ev.EventID == "" {
				t.Error("expected event id to be assigned")
			}
		}
	})
}

func TestStore_ListLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, store eventStore) {
		ctx, cancel := testutil.TestContext()
		defer cancel()

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 5; i++ {
			_ = store.Log(ctx, models.CollabEvent{SessionID: "abc", Type: models.EventCommentAdded, At: base.Add(time.Duration(i) * time.Second)})
		}

		events, err := store.ListBySession(ctx, "abc", 2)
		if err != nil {
			t.Fatalf("ListBySession failed: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("expected 2 events, got %d", len(events))
		}
	})
}

func TestStore_ListEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, store eventStore) {
		ctx, cancel := testutil.TestContext()
		defer cancel()

		events, err := store.ListBySession(ctx, "nobody", 10)
		if err != nil {
			t.Fatalf("ListBySession failed: %v", err)
		}
		if events == nil || len(events) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", events)
		}
	})
}
