package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return r
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r := authRouter("test-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	r := authRouter("test-secret")

	token, err := MintToken("other-secret", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched secret, got %d", w.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	r := authRouter("test-secret")

	token, err := MintToken("test-secret", "device-1", -time.Minute)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	r := authRouter("test-secret")

	token, err := MintToken("test-secret", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, "device-1") {
		t.Fatalf("expected subject claim in response, got %s", body)
	}
}
