package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub, role string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func guardRequest(token string, roles ...string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/protected", nil)
	if token != "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	AuthGuard(testSecret, roles...)(c)
	return w, c
}

func TestAuthGuardAcceptsValidToken(t *testing.T) {
	userID := primitive.NewObjectID()
	w, c := guardRequest(signedToken(t, userID.Hex(), "seller", time.Minute))

	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d: %s", w.Code, w.Body.String())
	}
	got, ok := UserID(c)
	if !ok || got != userID {
		t.Fatalf("UserID = %v, %v", got, ok)
	}
	if Role(c) != "seller" {
		t.Fatalf("Role = %q", Role(c))
	}
}

func TestAuthGuardRejectsMissingToken(t *testing.T) {
	w, _ := guardRequest("")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthGuardRejectsExpiredToken(t *testing.T) {
	w, _ := guardRequest(signedToken(t, primitive.NewObjectID().Hex(), "buyer", -time.Minute))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthGuardRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "buyer",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	w, _ := guardRequest(signed)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthGuardEnforcesRoles(t *testing.T) {
	token := signedToken(t, primitive.NewObjectID().Hex(), "buyer", time.Minute)

	w, _ := guardRequest(token, "seller")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w, _ = guardRequest(token, "seller", "buyer")
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}
