package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/system/auth"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret"

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		testSecret,
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

// echoUser responds with the context user's id, or "anonymous".
func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := auth.CurrentUser(r); ok {
			w.Write([]byte(u.ID + "|" + u.Name + "|" + u.Role))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestNewSessionManager_RequiresSecrets(t *testing.T) {
	if _, err := auth.NewSessionManager("", "test-session-key-must-be-32-chars-long", "", "", false, nil); err == nil {
		t.Error("expected error for empty jwt secret")
	}
	if _, err := auth.NewSessionManager(testSecret, "", "", "", false, nil); err == nil {
		t.Error("expected error for empty session key")
	}
}

func TestLoadUser_ValidBearerToken(t *testing.T) {
	sm := newTestSessionManager(t)
	token, err := sm.IssueToken(auth.SessionUser{ID: "u1", Name: "Alice"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/collaboration/abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	sm.LoadUser(echoUser()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := rec.Body.String(); got != "u1|Alice|member" {
		t.Errorf("unexpected user %q", got)
	}
}

func TestLoadUser_AdminClaim(t *testing.T) {
	sm := newTestSessionManager(t)
	token, _ := sm.IssueToken(auth.SessionUser{ID: "u9", Name: "Root", Role: "admin"}, time.Hour)

	u, err := sm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if u.Role != auth.RoleAdmin {
		t.Errorf("expected admin role, got %q", u.Role)
	}
}

func TestLoadUser_InvalidTokens_Return403(t *testing.T) {
	sm := newTestSessionManager(t)

	expired, _ := sm.IssueToken(auth.SessionUser{ID: "u1"}, -time.Minute)
	other, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{ID: "u1"}).SignedString([]byte("wrong-secret"))
	noID, _ := sm.IssueToken(auth.SessionUser{Name: "Nobody"}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{ID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", other},
		{"missing id", noID},
		{"alg none", none},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := sm.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

			req := httptest.NewRequest("GET", "/api/collaboration/abc", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if called {
				t.Error("next handler should not run")
			}
			if rec.Code != http.StatusForbidden {
				t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %v (%v)", body, err)
			}
		})
	}
}

func TestLoadUser_NoCredentials_Anonymous(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	sm.LoadUser(echoUser()).ServeHTTP(rec, req)

	if rec.Body.String() != "anonymous" {
		t.Errorf("expected anonymous, got %q", rec.Body.String())
	}
}

func TestLoadUser_QueryTokenOnlyOnWebsocketUpgrade(t *testing.T) {
	sm := newTestSessionManager(t)
	token, _ := sm.IssueToken(auth.SessionUser{ID: "u1", Name: "Alice"}, time.Hour)

	plain := httptest.NewRequest("GET", "/api/collaboration/abc?access_token="+token, nil)
	rec := httptest.NewRecorder()
	sm.LoadUser(echoUser()).ServeHTTP(rec, plain)
	if rec.Body.String() != "anonymous" {
		t.Errorf("query token must be ignored on plain requests, got %q", rec.Body.String())
	}

	upgrade := httptest.NewRequest("GET", "/api/collaboration/abc/live?access_token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	sm.LoadUser(echoUser()).ServeHTTP(rec, upgrade)
	if rec.Body.String() != "u1|Alice|member" {
		t.Errorf("expected query token on upgrade, got %q", rec.Body.String())
	}
}

func TestLoadUser_CookieSession(t *testing.T) {
	sm := newTestSessionManager(t)

	// Sign in to obtain a cookie.
	save := httptest.NewRecorder()
	if err := sm.SaveUser(save, httptest.NewRequest("GET", "/", nil), auth.SessionUser{ID: "u2", Name: "Bob", Role: "member"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	cookies := save.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	sm.LoadUser(echoUser()).ServeHTTP(rec, req)

	if rec.Body.String() != "u2|Bob|member" {
		t.Errorf("expected cookie user, got %q", rec.Body.String())
	}
}

func TestRequireSignedIn_NoUser_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/collaboration/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)

	called := false
	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: "u1"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected handler to be called")
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	user, ok := auth.CurrentUser(req)

	if ok {
		t.Error("expected ok to be false when no user in context")
	}
	if user != nil {
		t.Error("expected user to be nil when no user in context")
	}
}

// signedInCookies returns the cookies SaveUser sets for u.
func signedInCookies(t *testing.T, sm *auth.SessionManager, u auth.SessionUser) []*http.Cookie {
	t.Helper()
	save := httptest.NewRecorder()
	if err := sm.SaveUser(save, httptest.NewRequest("POST", "/", nil), u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	cookies := save.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	return cookies
}

func TestLoadUser_CookieIgnoredOnWrites(t *testing.T) {
	sm := newTestSessionManager(t)
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u2", Name: "Bob", Role: "member"})

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		req := httptest.NewRequest(method, "/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		sm.LoadUser(echoUser()).ServeHTTP(rec, req)

		if rec.Body.String() != "anonymous" {
			t.Errorf("%s: cookie should not authenticate, got %q", method, rec.Body.String())
		}
	}
}

func TestClearUser_ExpiresCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u2", Name: "Bob", Role: "member"})

	req := httptest.NewRequest("DELETE", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	if err := sm.ClearUser(rec, req); err != nil {
		t.Fatalf("ClearUser: %v", err)
	}

	cleared := rec.Result().Cookies()
	if len(cleared) == 0 || cleared[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", cleared)
	}
}
