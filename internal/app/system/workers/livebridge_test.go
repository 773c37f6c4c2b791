package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type flakyRunner struct {
	calls atomic.Int32
}

func (f *flakyRunner) Run(ctx context.Context) error {
	if f.calls.Add(1) < 3 {
		return errors.New("connection reset")
	}
	<-ctx.Done()
	return nil
}

func TestLiveBridge_RestartsAfterFailure(t *testing.T) {
	r := &flakyRunner{}
	w := NewLiveBridge(r, zap.NewNop(), time.Millisecond)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 runs, got %d", r.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	if got := r.calls.Load(); got != 3 {
		t.Errorf("expected no restart after stop, got %d runs", got)
	}
}

func TestLiveBridge_StopIdempotent(t *testing.T) {
	w := NewLiveBridge(&flakyRunner{}, zap.NewNop(), 0)
	w.Stop() // before Start
	if w.retryDelay != DefaultRetryDelay {
		t.Errorf("retryDelay = %s, want default", w.retryDelay)
	}
}
