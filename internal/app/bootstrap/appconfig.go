// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig holds everything specific to shared carts: storage, identity,
// the optional Redis tier, and the collaboration tuning knobs.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Identity. JWTSecret verifies bearer tokens issued by the storefront;
	// SessionKey signs the cookie fallback.
	JWTSecret     string
	SessionKey    string
	SessionName   string // Cookie name for sessions (default: sharedcart-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Redis: blank RedisAddr disables the snapshot cache and the live bridge.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Collaboration tuning
	CollabMaxAttempts int           // optimistic write attempts before 409
	CollabRetention   time.Duration // TTL on idle sessions; 0 keeps forever
	AuditLogCollab    string        // 'all' (db+log), 'db', 'log', or 'off'
	LiveUpdates       bool          // serve /{sessionId}/live websockets
	CollabRateLimit   int           // create/join requests per minute per caller; 0 disables
}

// RedisEnabled reports whether a Redis address is configured.
func (c AppConfig) RedisEnabled() bool {
	return c.RedisAddr != ""
}
