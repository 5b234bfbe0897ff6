package middleware

import "github.com/labstack/echo/v4"

// NoStore marks responses as uncacheable. Profile pages and QR images are
// reachable by anyone holding the id, so intermediaries must not keep copies.
func NoStore() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
