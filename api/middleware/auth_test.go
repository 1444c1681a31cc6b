package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	pkgAuth "github.com/soundpost/soundpost-backend/pkg/auth"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "soundpost", ExpirationMinutes: 60}
}

func authHandler(t *testing.T, captured *struct {
	userID uint
	admin  bool
	called bool
}) http.Handler {
	t.Helper()
	cfg := testJWTConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.called = true
		captured.userID = UserIDFromContext(r.Context())
		captured.admin = IsAdminFromContext(r.Context())
	})
	return Auth(cfg, logg)(next)
}

func TestAuthValidToken(t *testing.T) {
	var captured struct {
		userID uint
		admin  bool
		called bool
	}
	handler := authHandler(t, &captured)

	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), 7, true)
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !captured.called || captured.userID != 7 || !captured.admin {
		t.Fatalf("claims not seeded: %+v", captured)
	}
}

func TestAuthMissingHeaderIsAnonymous(t *testing.T) {
	var captured struct {
		userID uint
		admin  bool
		called bool
	}
	handler := authHandler(t, &captured)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !captured.called || captured.userID != 0 || captured.admin {
		t.Fatalf("anonymous request should carry no identity: %+v", captured)
	}
}

func TestAuthInvalidTokenRejected(t *testing.T) {
	var captured struct {
		userID uint
		admin  bool
		called bool
	}
	handler := authHandler(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if captured.called {
		t.Fatal("handler should not run on a bad token")
	}
}

func TestAuthExpiredTokenRejected(t *testing.T) {
	var captured struct {
		userID uint
		admin  bool
		called bool
	}
	handler := authHandler(t, &captured)

	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now().Add(-2*time.Hour), 7, false)
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if captured.called {
		t.Fatal("handler should not run on an expired token")
	}
}
