// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	collaborationfeature "github.com/dalemusser/sharedcart/internal/app/features/collaboration"
	healthfeature "github.com/dalemusser/sharedcart/internal/app/features/health"
	"github.com/dalemusser/sharedcart/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The router:
//  1. Loads the caller identity (bearer token or cookie) on every request
//  2. Serves /health without authentication
//  3. Mounts the collaboration API under /api/collaboration
//
// The whole tree is wrapped in otelhttp so spans carry the route.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Runtime == nil || deps.Runtime.Service == nil {
		return nil, errors.New("bootstrap: collaboration runtime not started")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg != nil && coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.JWTSecret, appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	return newRouter(sessionMgr, deps, logger), nil
}

func newRouter(sessionMgr *auth.SessionManager, deps DBDeps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Global auth middleware: loads SessionUser into context when present.
	r.Use(sessionMgr.LoadUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	collabHandler := collaborationfeature.NewHandler(deps.Runtime.Service, deps.Runtime.Hub, logger)
	collabHandler.SessionLimit = deps.Runtime.Limiter
	r.Mount("/api/collaboration", collaborationfeature.Routes(collabHandler, sessionMgr))

	return otelhttp.NewHandler(r, "sharedcart")
}
