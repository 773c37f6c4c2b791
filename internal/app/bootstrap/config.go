// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/store/collabcache"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for SharedCart.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: SHAREDCART_MONGO_URI, SHAREDCART_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "sharedcart", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Identity
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me", Desc: "HS256 secret for storefront bearer tokens"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "sharedcart-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Redis snapshot cache and live bridge
	{Name: "redis_addr", Default: "", Desc: "Redis address (host:port); blank disables the cache and live bridge"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis logical database"},
	{Name: "cache_ttl", Default: "10m", Desc: "Session snapshot TTL in Redis (e.g., 10m, 1h)"},

	// Collaboration
	{Name: "collab_max_attempts", Default: collab.DefaultMaxAttempts, Desc: "Optimistic write attempts before reporting a conflict"},
	{Name: "collab_retention", Default: "2160h", Desc: "Delete sessions idle this long (0 keeps them forever)"},
	{Name: "audit_log_collab", Default: "all", Desc: "Collaboration event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "live_updates", Default: true, Desc: "Serve live session snapshots over websockets"},
	{Name: "collab_rate_limit", Default: 30, Desc: "Session create/join requests per minute per caller (0 disables)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, SHAREDCART_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "SHAREDCART", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:     appValues.String("jwt_secret"),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		RedisAddr:     strings.TrimSpace(appValues.String("redis_addr")),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		CacheTTL:      appValues.Duration("cache_ttl", collabcache.DefaultTTL),

		CollabMaxAttempts: appValues.Int("collab_max_attempts"),
		CollabRetention:   appValues.Duration("collab_retention", 90*24*time.Hour),
		AuditLogCollab:    appValues.String("audit_log_collab"),
		LiveUpdates:       appValues.Bool("live_updates"),
		CollabRateLimit:   appValues.Int("collab_rate_limit"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails fast, before connecting.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		return errors.New("jwt_secret must be set")
	}
	if strings.TrimSpace(appCfg.SessionKey) == "" {
		return errors.New("session_key must be set")
	}
	if appCfg.CollabMaxAttempts < 1 {
		return fmt.Errorf("collab_max_attempts must be at least 1, got %d", appCfg.CollabMaxAttempts)
	}
	if appCfg.CollabRetention < 0 {
		return fmt.Errorf("collab_retention must not be negative, got %s", appCfg.CollabRetention)
	}
	if appCfg.CollabRateLimit < 0 {
		return fmt.Errorf("collab_rate_limit must not be negative, got %d", appCfg.CollabRateLimit)
	}
	if appCfg.RedisEnabled() && appCfg.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive when redis_addr is set, got %s", appCfg.CacheTTL)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.JWTSecret, "dev-only") {
		logger.Warn("jwt_secret is still the development default")
	}
	return nil
}
