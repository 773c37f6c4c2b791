// internal/app/system/workers/livebridge.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetryDelay is how long LiveBridge waits before resubscribing.
const DefaultRetryDelay = 2 * time.Second

// Runner is a blocking subscription loop such as live.RedisBridge.Run.
// It returns when ctx is cancelled or the subscription drops.
type Runner interface {
	Run(ctx context.Context) error
}

// LiveBridge is a background worker that keeps a Runner subscribed,
// restarting it after failures until stopped.
type LiveBridge struct {
	runner     Runner
	log        *zap.Logger
	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewLiveBridge creates a worker for runner. retryDelay <= 0 uses
// DefaultRetryDelay.
func NewLiveBridge(runner Runner, logger *zap.Logger, retryDelay time.Duration) *LiveBridge {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &LiveBridge{runner: runner, log: logger, retryDelay: retryDelay}
}

// Start begins the background loop.
func (w *LiveBridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	w.log.Info("live bridge worker started", zap.Duration("retry_delay", w.retryDelay))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once, and before Start.
func (w *LiveBridge) Stop() {
	if w.cancel == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		w.wg.Wait()
		w.log.Info("live bridge worker stopped")
	})
}

func (w *LiveBridge) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		err := w.runner.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("live bridge stopped; resubscribing", zap.Error(err), zap.Duration("delay", w.retryDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}
