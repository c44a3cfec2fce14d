package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes are the route patterns served without reading the
// Authorization header: the health probe, slot availability and the
// stateless questionnaire endpoints.
var publicRoutes = map[string]bool{
	"/health":                   true,
	"/api/v1/availability":      true,
	"/api/v1/availability/next": true,
	"/api/v1/triage/questions":  true,
	"/api/v1/triage/evaluate":   true,
	"/api/v1/triage/transport":  true,
}

// AuthSkipper matches the registered route pattern, so it only works in
// middleware that runs after routing.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(route string) bool {
	return publicRoutes[route]
}
