// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/store/collabcache"
	"github.com/dalemusser/sharedcart/internal/app/store/collabevents"
	"github.com/dalemusser/sharedcart/internal/app/store/collabsessions"
	"github.com/dalemusser/sharedcart/internal/app/system/auditlog"
	"github.com/dalemusser/sharedcart/internal/app/system/live"
	"github.com/dalemusser/sharedcart/internal/app/system/ratelimit"
	"github.com/dalemusser/sharedcart/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime is the long-lived collaboration wiring shared by BuildHandler and
// Shutdown.
type Runtime struct {
	Service *collab.Service
	Hub     *live.Hub          // nil when live updates are disabled
	Limiter *ratelimit.Limiter // nil when rate limiting is disabled

	bridge *workers.LiveBridge
}

// eventStore is what the activity feed needs from collabevents.
type eventStore interface {
	auditlog.EventStore
	collab.EventLister
}

// Startup builds the collaboration service and starts the live bridge. It
// runs after DB connections and schema setup are complete, but before the
// HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return errors.New("bootstrap: DBDeps.Runtime is nil")
	}
	rt := deps.Runtime
	buildRuntime(rt, appCfg,
		collabsessions.New(deps.MongoDatabase),
		collabevents.New(deps.MongoDatabase),
		deps.Redis,
		logger)
	return nil
}

// buildRuntime assembles rt from its collaborators. rdb may be nil.
func buildRuntime(rt *Runtime, appCfg AppConfig, sessions collab.Store, events eventStore, rdb redis.UniversalClient, logger *zap.Logger) {
	opts := []collab.Option{
		collab.WithMaxAttempts(appCfg.CollabMaxAttempts),
		collab.WithRecorder(auditlog.New(events, logger, appCfg.AuditLogCollab)),
		collab.WithEvents(events),
	}

	if rdb != nil {
		opts = append(opts, collab.WithCache(collabcache.New(rdb, appCfg.CacheTTL, logger)))
	}

	if appCfg.LiveUpdates {
		rt.Hub = live.NewHub(logger)
		if rdb != nil {
			bridge := live.NewRedisBridge(rdb, rt.Hub, logger)
			opts = append(opts, collab.WithPublisher(bridge))

			rt.bridge = workers.NewLiveBridge(bridge, logger, workers.DefaultRetryDelay)
			rt.bridge.Start()
		} else {
			opts = append(opts, collab.WithPublisher(rt.Hub))
		}
	}

	rt.Service = collab.New(sessions, logger, opts...)

	if appCfg.CollabRateLimit > 0 {
		rt.Limiter = ratelimit.New(appCfg.CollabRateLimit, time.Minute)
	}

	logger.Info("collaboration service ready",
		zap.Int("max_attempts", appCfg.CollabMaxAttempts),
		zap.Bool("cache", rdb != nil),
		zap.Bool("live", rt.Hub != nil),
		zap.Int("rate_limit_per_min", appCfg.CollabRateLimit),
		zap.String("audit_mode", appCfg.AuditLogCollab))
}

// stop halts background work and waits for it to exit.
func (rt *Runtime) stop() {
	if rt == nil {
		return
	}
	if rt.Limiter != nil {
		rt.Limiter.Close()
	}
	if rt.bridge != nil {
		rt.bridge.Stop()
	}
}
