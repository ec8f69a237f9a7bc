package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/ratelimit"
	"bookingdesk/backend/internal/service/appointments"
)

type headerResolver interface {
	ResolveHeader(ctx context.Context, header string) (string, error)
}

func errorEnvelope(msg string) appointments.Result {
	return appointments.Result{Status: appointments.StatusError, Message: msg}
}

// Auth resolves the Authorization header and stores the caller email on the
// request context.
func Auth(resolver headerResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			email, err := resolver.ResolveHeader(req.Context(), req.Header.Get(echo.HeaderAuthorization))
			if err != nil {
				msg := identity.ErrInvalidToken.Error()
				if errors.Is(err, identity.ErrMissingToken) {
					msg = identity.ErrMissingToken.Error()
				}
				return c.JSON(http.StatusUnauthorized, errorEnvelope(msg))
			}
			c.SetRequest(req.WithContext(identity.WithEmail(req.Context(), email)))
			return next(c)
		}
	}
}

// RateLimit counts requests per client IP. A nil limiter is a no-op.
func RateLimit(limiter *ratelimit.Limiter, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			d := limiter.Allow(c.Request().Context(), c.RealIP())
			if d.Err != nil {
				log.WarnContext(c.Request().Context(), "rate limiter error", slog.Any("err", d.Err))
				if !d.Allowed {
					return c.JSON(http.StatusServiceUnavailable, errorEnvelope("rate limiter unavailable"))
				}
			}
			if !d.Allowed {
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(limiter.Window()/time.Second)))
				return c.JSON(http.StatusTooManyRequests, errorEnvelope("rate limit exceeded"))
			}
			return next(c)
		}
	}
}

func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)
					log.ErrorContext(c.Request().Context(), "panic recovered",
						slog.String("panic", fmt.Sprintf("%v", r)),
						slog.String("stack", string(stack[:n])),
					)
					err = c.JSON(http.StatusInternalServerError, errorEnvelope("internal error"))
				}
			}()
			return next(c)
		}
	}
}

func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			level := slog.LevelDebug
			if err != nil || c.Response().Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(req.Context(), level, "request",
				slog.String("method", req.Method),
				slog.String("route", c.Path()),
				slog.Int("status", c.Response().Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			)
			return err
		}
	}
}
