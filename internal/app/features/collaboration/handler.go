// internal/app/features/collaboration/handler.go
package collaboration

import (
	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/system/live"
	"github.com/dalemusser/sharedcart/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Handler serves the collaborative cart API.
type Handler struct {
	Svc *collab.Service
	Hub *live.Hub // nil disables /live
	Log *zap.Logger

	// SessionLimit throttles /create and /join per caller; nil disables it.
	SessionLimit *ratelimit.Limiter
}

// NewHandler creates a new collaboration handler.
func NewHandler(svc *collab.Service, hub *live.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Svc: svc,
		Hub: hub,
		Log: logger,
	}
}
