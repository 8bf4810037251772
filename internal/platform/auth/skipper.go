package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns reachable without a bearer token:
// infrastructure endpoints plus the account and catalog routes a visitor
// needs before logging in.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/db":            true,
	"/metrics":              true,
	"/user/register":        true,
	"/user/login":           true,
	"/user/forgot-password": true,
	"/user/lab-tests":       true,
	"/attorney/all":         true,
	"/attorney/public/:id":  true,
}

// AuthSkipper reports whether the matched route may be served without
// authentication. It keys on the route pattern, so it must run after routing.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/uploads/")
}
