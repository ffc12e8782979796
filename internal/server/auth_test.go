package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, secret []byte, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authProbe(secret []byte, authorization string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := withAuth(secret)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return rec, handler(c)
}

func TestWithAuthAcceptsValidToken(t *testing.T) {
	secret := []byte("test-secret")
	rec, err := authProbe(secret, "Bearer "+signToken(t, secret, jwt.SigningMethodHS256))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
}

func TestWithAuthRejects(t *testing.T) {
	secret := []byte("test-secret")
	cases := []struct {
		name          string
		authorization string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, []byte("other-secret"), jwt.SigningMethodHS256)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := authProbe(secret, c.authorization)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusUnauthorized {
				t.Fatalf("err = %v; want 401 HTTPError", err)
			}
		})
	}
}
