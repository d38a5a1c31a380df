package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/common/auth"
	"github.com/StudentGarage/StudentGarage/internal/common/config"
	"github.com/gin-gonic/gin"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:    "unit-test-secret",
		Issuer:       "garage-service",
		Audience:     "garage-clients",
		TokenTTLMins: 30,
	}
}

// newProtectedEngine 搭一个带鉴权链的最小引擎：/p/me 只要登录，/p/admin 还要 admin 角色。
func newProtectedEngine(cfg config.AuthConfig, revoked RevocationChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	g := e.Group("/p", JWTAuth(cfg, revoked, nil))
	g.GET("/me", func(c *gin.Context) {
		ai, ok := AuthFromGin(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no auth info"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": ai.Subject})
	})
	admin := g.Group("", RequireRoles("admin"))
	admin.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return e
}

func doGet(e *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	cfg := testAuthConfig()
	e := newProtectedEngine(cfg, nil)

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doGet(e, "/p/me", tc.token); w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}

	// 签名密钥不一致的令牌也必须拒绝
	otherCfg := cfg
	otherCfg.JWTSecret = "some-other-secret"
	forged, _, _, err := auth.GenerateAccessToken(otherCfg, "acct-1", []string{"user"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if w := doGet(e, "/p/me", forged); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong-secret token, got %d", w.Code)
	}
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	cfg := testAuthConfig()
	e := newProtectedEngine(cfg, nil)

	token, _, _, err := auth.GenerateAccessToken(cfg, "acct-1", []string{"user"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if w := doGet(e, "/p/me", token); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestJWTAuthRejectsRevokedToken(t *testing.T) {
	cfg := testAuthConfig()
	token, tokenID, _, err := auth.GenerateAccessToken(cfg, "acct-1", []string{"user"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	revoked := func(_ context.Context, id string) bool { return id == tokenID }
	e := newProtectedEngine(cfg, revoked)

	if w := doGet(e, "/p/me", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", w.Code)
	}
}

func TestJWTAuthFailsClosedWithoutSecret(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTSecret = ""
	e := newProtectedEngine(cfg, nil)

	if w := doGet(e, "/p/me", "whatever"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when jwt_secret is unset, got %d", w.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	cfg := testAuthConfig()
	e := newProtectedEngine(cfg, nil)

	userToken, _, _, err := auth.GenerateAccessToken(cfg, "acct-1", []string{"user"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	adminToken, _, _, err := auth.GenerateAccessToken(cfg, "acct-2", []string{"user", "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if w := doGet(e, "/p/admin", userToken); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
	if w := doGet(e, "/p/admin", adminToken); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}
