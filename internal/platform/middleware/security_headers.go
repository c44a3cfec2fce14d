package middleware

import (
	"github.com/labstack/echo/v4"
)

const hstsHeader = "max-age=31536000; includeSubDomains"

// apiHeaders are sent on every response. Bodies carry appointment and
// triage data, hence no-store.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets apiHeaders, plus Strict-Transport-Security when hsts
// is true. Development servers run over plain HTTP and pass false.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsHeader)
			}
			return next(c)
		}
	}
}
