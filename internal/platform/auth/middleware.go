package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(token string) (Principal, error)
}

// Authenticate verifies the bearer token and stores the principal on the
// request context. Skipped paths pass through unauthenticated, but a token
// they carry is still honoured so optional-auth routes can see the caller.
// Browsers cannot set headers on websocket upgrades, so a "token" query
// parameter is accepted as a fallback.
func Authenticate(v Verifier, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			skip := skipper != nil && skipper(c)

			tokenStr, err := bearerToken(c)
			if err != nil {
				if skip {
					return next(c)
				}
				return err
			}

			p, verr := v.Verify(tokenStr)
			if verr != nil {
				if skip {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			c.Set("user_id", p.UserID.String())
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		if q := c.QueryParam("token"); q != "" {
			return q, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "No token, authorization denied")
	}

	scheme, tokenStr, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}
	return tokenStr, nil
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}
