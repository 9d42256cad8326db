package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// RateLimit applies a per-peer token bucket to the endpoint. Peers are keyed
// by client_id form value when present (token endpoint traffic), else by
// remote IP.
func RateLimit(limit rate.Limit, burst int) echo.MiddlewareFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[key] = l
		}
		return l
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.FormValue("client_id")
			if key == "" {
				key = c.RealIP()
			}
			if !limiterFor(key).Allow() {
				return c.JSON(http.StatusTooManyRequests, serrors.NewInvalidRequest("Too many requests, slow down."))
			}
			return next(c)
		}
	}
}
