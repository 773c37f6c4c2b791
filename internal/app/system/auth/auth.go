// Package auth establishes who is calling. Callers present a signed bearer
// token (HS256) issued by the storefront's identity provider. A browser can
// exchange its token for a session cookie, which then authenticates reads
// and the live feed.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	userName  = "user_name"
	userEmail = "user_email"
	userRole  = "user_role"
)

// Roles derived from the token's isAdmin claim.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// ErrInvalidToken is returned for tokens that fail signature, algorithm or
// expiry checks, or carry no user id.
var ErrInvalidToken = errors.New("invalid token")

// SessionUser is what we inject into r.Context().
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Claims is the bearer token payload.
type Claims struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	return FromContext(r.Context())
}

// FromContext returns the user stored in ctx, if any.
func FromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u the way LoadUser does. Used by handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// SessionManager verifies bearer tokens and reads the cookie session.
type SessionManager struct {
	secret      []byte
	store       *sessions.CookieStore
	sessionName string
	log         *zap.Logger
}

// NewSessionManager builds a SessionManager. The `secure` flag controls
// whether cookies are marked Secure and which SameSite mode is used.
func NewSessionManager(jwtSecret, sessionKey, sessionName, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if sessionName == "" {
		sessionName = "sharedcart-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	// In prod with Secure cookies, None lets the storefront call us
	// cross-site. In dev, Lax is fine.
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.String("session_name", sessionName))

	return &SessionManager{
		secret:      []byte(jwtSecret),
		store:       store,
		sessionName: sessionName,
		log:         logger,
	}, nil
}

// IssueToken signs a token for u; ttl 0 means no expiry. Intended for
// tooling and tests; the storefront's identity provider issues production
// tokens with the same secret.
func (m *SessionManager) IssueToken(u SessionUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		IsAdmin: strings.EqualFold(u.Role, RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken verifies raw and returns the user it names.
func (m *SessionManager) ParseToken(raw string) (*SessionUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.ID) == "" {
		return nil, ErrInvalidToken
	}
	role := RoleMember
	if claims.IsAdmin {
		role = RoleAdmin
	}
	return &SessionUser{ID: claims.ID, Name: claims.Name, Email: claims.Email, Role: role}, nil
}

// LoadUser injects the caller into context. A presented but invalid token
// is rejected with 403; no credentials at all passes through anonymous and
// is left for RequireSignedIn to refuse. The cookie session only counts for
// GET and HEAD, so cross-site form posts cannot mutate a cart.
func (m *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := bearerToken(r); raw != "" {
			u, err := m.ParseToken(raw)
			if err != nil {
				m.log.Debug("rejected bearer token", zap.Error(err), zap.String("path", r.URL.Path))
				writeJSONError(w, http.StatusForbidden, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, withUser(r, u))
			return
		}

		if isSafeMethod(r.Method) {
			if u, ok := m.cookieUser(r); ok {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadUser).
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SaveUser stores u in the cookie session.
func (m *SessionManager) SaveUser(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, _ := m.store.Get(r, m.sessionName)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userRole] = u.Role
	return sess.Save(r, w)
}

// ClearUser expires the cookie session.
func (m *SessionManager) ClearUser(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.sessionName)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (m *SessionManager) cookieUser(r *http.Request) (*SessionUser, bool) {
	sess, err := m.store.Get(r, m.sessionName)
	if err != nil {
		return nil, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil, false
	}
	u := &SessionUser{
		ID:    getString(sess, userIDKey),
		Name:  getString(sess, userName),
		Email: getString(sess, userEmail),
		Role:  getString(sess, userRole),
	}
	if u.ID == "" {
		return nil, false
	}
	return u, true
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket handshake, so upgrades may pass ?access_token= instead.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if isWebsocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
