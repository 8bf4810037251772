package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-key")

func newTestContext(target, authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	id := uuid.New()

	signed, err := tokens.Issue(id, RoleAttorney)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	p, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.UserID != id || p.Role != RoleAttorney {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, err := tokens.Issue(uuid.New(), RoleClient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tokens.now = time.Now
	if _, err := tokens.Verify(signed); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokens_WrongSecret(t *testing.T) {
	signed, _ := NewTokens([]byte("other"), time.Hour).Issue(uuid.New(), RoleClient)
	if _, err := NewTokens(testSecret, time.Hour).Verify(signed); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestTokens_RejectsUnknownRole(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "Doctor",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokens(testSecret, time.Hour).Verify(signed); err == nil {
		t.Error("expected token with unknown role to be rejected")
	}
}

func TestAuthenticate_SetsPrincipal(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	id := uuid.New()
	signed, _ := tokens.Issue(id, RoleClient)

	c, _ := newTestContext("/user/appointments", "Bearer "+signed)
	var got Principal
	h := Authenticate(tokens, nil)(func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return nil
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != id || got.Role != RoleClient {
		t.Errorf("unexpected principal %+v", got)
	}
	if c.Get("user_id") != id.String() {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	c, _ := newTestContext("/user/appointments", "")
	err := Authenticate(NewTokens(testSecret, time.Hour), nil)(func(echo.Context) error { return nil })(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuthenticate_BadScheme(t *testing.T) {
	c, _ := newTestContext("/user/appointments", "Basic abc")
	err := Authenticate(NewTokens(testSecret, time.Hour), nil)(func(echo.Context) error { return nil })(c)
	if err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}
}

func TestAuthenticate_QueryTokenFallback(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	signed, _ := tokens.Issue(uuid.New(), RoleAttorney)

	c, _ := newTestContext("/ws?token="+signed, "")
	called := false
	err := Authenticate(tokens, nil)(func(c echo.Context) error {
		p, ok := PrincipalFromContext(c.Request().Context())
		called = ok && p.Role == RoleAttorney
		return nil
	})(c)
	if err != nil || !called {
		t.Fatalf("expected query token to authenticate, err=%v", err)
	}
}

func TestAuthenticate_SkippedPathWithoutToken(t *testing.T) {
	c, _ := newTestContext("/user/login", "")
	c.SetPath("/user/login")

	called := false
	err := Authenticate(NewTokens(testSecret, time.Hour), AuthSkipper)(func(echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Fatalf("expected skipped path to pass, err=%v", err)
	}
}

func TestAuthenticate_SkippedPathWithInvalidToken(t *testing.T) {
	c, _ := newTestContext("/attorney/all", "Bearer garbage")
	c.SetPath("/attorney/all")

	err := Authenticate(NewTokens(testSecret, time.Hour), AuthSkipper)(func(c echo.Context) error {
		if _, ok := PrincipalFromContext(c.Request().Context()); ok {
			t.Error("invalid token must not produce a principal")
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
