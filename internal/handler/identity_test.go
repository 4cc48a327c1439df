package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tavolo-club/reservation-service/internal/service"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func identityProbe(secret string) (*gin.Engine, *service.User) {
	gin.SetMode(gin.TestMode)
	captured := &service.User{}
	router := gin.New()
	router.Use(IdentityMiddleware(secret))
	router.GET("/whoami", func(c *gin.Context) {
		if user, ok := identityFrom(c); ok {
			*captured = user
		}
		c.Status(http.StatusOK)
	})
	return router, captured
}

func TestIdentityMiddleware(t *testing.T) {
	t.Run("resolves identity from bearer token", func(t *testing.T) {
		router, captured := identityProbe(testSecret)

		token := signTestToken(t, testSecret, jwt.MapClaims{
			"sub":    "user-123",
			"name":   "Mika",
			"avatar": "https://cdn.example.com/mika.png",
			"exp":    time.Now().Add(time.Hour).Unix(),
		})

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if captured.ID != "user-123" {
			t.Errorf("expected user-123, got %q", captured.ID)
		}
		if captured.Name != "Mika" {
			t.Errorf("expected Mika, got %q", captured.Name)
		}
	})

	t.Run("falls back to headers without a token", func(t *testing.T) {
		router, captured := identityProbe(testSecret)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-ID", "user-456")
		req.Header.Set("X-User-Name", "Sam")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if captured.ID != "user-456" {
			t.Errorf("expected user-456, got %q", captured.ID)
		}
		if captured.Name != "Sam" {
			t.Errorf("expected Sam, got %q", captured.Name)
		}
	})

	t.Run("invalid token falls back to headers", func(t *testing.T) {
		router, captured := identityProbe(testSecret)

		token := signTestToken(t, "wrong-secret", jwt.MapClaims{"sub": "forged"})

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-User-ID", "user-789")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if captured.ID != "user-789" {
			t.Errorf("expected user-789, got %q", captured.ID)
		}
	})

	t.Run("expired token yields no identity", func(t *testing.T) {
		router, captured := identityProbe(testSecret)

		token := signTestToken(t, testSecret, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if captured.ID != "" {
			t.Errorf("expected empty identity, got %q", captured.ID)
		}
	})
}
