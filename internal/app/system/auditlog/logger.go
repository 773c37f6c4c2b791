// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strings"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"go.uber.org/zap"
)

// Logging destinations for collaboration events.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off" // disabled
)

// EventStore persists events. collabevents.Store and MemoryStore satisfy it.
type EventStore interface {
	Log(ctx context.Context, event models.CollabEvent) error
}

// Logger records collaboration events to an EventStore and/or zap.
type Logger struct {
	store  EventStore
	zapLog *zap.Logger
	mode   string
}

// New creates a new audit Logger. Unknown modes fall back to ModeAll.
func New(store EventStore, zapLog *zap.Logger, mode string) *Logger {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case ModeAll, ModeDB, ModeLog, ModeOff:
	default:
		mode = ModeAll
	}
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, mode: mode}
}

// Mode returns the effective logging mode.
func (l *Logger) Mode() string {
	if l == nil {
		return ModeOff
	}
	return l.mode
}

func (l *Logger) logToZap(event models.CollabEvent) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("event_type", event.Type),
		zap.String("session_id", event.SessionID),
		zap.String("user_id", event.UserID),
	}
	if event.ProductID != "" {
		fields = append(fields, zap.String("product_id", event.ProductID))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	l.zapLog.Info("collab event", fields...)
}

// Record logs an event according to the configured mode.
// A nil Logger is a no-op so tests can pass nil.
// Store failures are logged, never returned: the feed is best effort and
// must not fail the operation that produced it.
func (l *Logger) Record(ctx context.Context, event models.CollabEvent) {
	if l == nil || l.mode == ModeOff {
		return
	}

	if l.mode == ModeAll || l.mode == ModeLog {
		l.logToZap(event)
	}

	if (l.mode == ModeAll || l.mode == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store collab event",
				zap.Error(err),
				zap.String("event_type", event.Type),
				zap.String("session_id", event.SessionID),
			)
		}
	}
}
