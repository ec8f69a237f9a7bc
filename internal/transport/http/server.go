package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bookingdesk/backend/internal/ratelimit"
)

// Pinger reports whether a dependency is ready to serve.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type ServerOptions struct {
	Resolver headerResolver
	Limiter  *ratelimit.Limiter
	Ready    []Pinger
	Logger   *slog.Logger
}

// NewEcho builds the router: health probes at the root and the appointment
// routes under /api/v1/appointments behind rate limiting and auth.
func NewEcho(svc appointmentsService, opts ServerOptions) *echo.Echo {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(Recovery(log))
	e.Use(RequestLogger(log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", readyHandler(opts.Ready))

	api := e.Group("/api/v1/appointments", RateLimit(opts.Limiter, log), Auth(opts.Resolver))
	NewAppointmentsHandler(svc, opts.Logger).RegisterRoutes(api)
	return e
}

func readyHandler(deps []Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		for _, d := range deps {
			if err := d.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
}

// NewServer wraps the router in otelhttp tracing.
func NewServer(addr string, svc appointmentsService, opts ServerOptions) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(NewEcho(svc, opts), "bookingdesk.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
