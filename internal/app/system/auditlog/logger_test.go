package auditlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/sharedcart/internal/app/store/collabevents"
	"github.com/dalemusser/sharedcart/internal/app/system/auditlog"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/dalemusser/sharedcart/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleEvent() models.CollabEvent {
	return models.CollabEvent{
		SessionID: "abc",
		UserID:    "alice",
		Type:      models.EventVoteCast,
		ProductID: "sofa",
		Details:   map[string]string{"vote": "up"},
	}
}

type failingStore struct{}

func (failingStore) Log(context.Context, models.CollabEvent) error {
	return errors.New("disk on fire")
}

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Record(ctx, sampleEvent())
	if logger.Mode() != auditlog.ModeOff {
		t.Errorf("nil logger mode: got %q", logger.Mode())
	}
}

func TestLogger_UnknownModeFallsBackToAll(t *testing.T) {
	logger := auditlog.New(nil, nil, "sometimes")
	if logger.Mode() != auditlog.ModeAll {
		t.Errorf("expected %q, got %q", auditlog.ModeAll, logger.Mode())
	}
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		mode      string
		wantStore int
		wantZap   int
	}{
		{auditlog.ModeAll, 1, 1},
		{auditlog.ModeDB, 1, 0},
		{auditlog.ModeLog, 0, 1},
		{auditlog.ModeOff, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			store := collabevents.NewMemoryStore()
			core, logs := observer.New(zap.InfoLevel)
			logger := auditlog.New(store, zap.New(core), tc.mode)
			ctx := context.Background()

			logger.Record(ctx, sampleEvent())

			stored, _ := store.ListBySession(ctx, "abc", 0)
			if len(stored) != tc.wantStore {
				t.Errorf("stored events: got %d, want %d", len(stored), tc.wantStore)
			}
			if got := logs.FilterMessage("collab event").Len(); got != tc.wantZap {
				t.Errorf("zap entries: got %d, want %d", got, tc.wantZap)
			}
		})
	}
}

func TestLogger_ZapFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.ModeLog)

	logger.Record(context.Background(), sampleEvent())

	entries := logs.FilterMessage("collab event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != models.EventVoteCast || fields["product_id"] != "sofa" || fields["detail_vote"] != "up" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestLogger_StoreFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(failingStore{}, zap.New(core), auditlog.ModeDB)

	logger.Record(context.Background(), sampleEvent())

	if logs.FilterMessage("failed to store collab event").Len() != 1 {
		t.Error("expected store failure to be logged")
	}
}

func TestLogger_MongoStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := collabevents.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.ModeDB)
	logger.Record(ctx, sampleEvent())

	events, err := store.ListBySession(ctx, "abc", 10)
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventVoteCast {
		t.Errorf("unexpected events: %+v", events)
	}
}
