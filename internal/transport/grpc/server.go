package grpc

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"bookingdesk/backend/internal/ratelimit"
)

type ServerOptions struct {
	RequestTimeout time.Duration
	Resolver       headerResolver
	Limiter        *ratelimit.Limiter
	Logger         *slog.Logger
}

// NewServer builds a traced gRPC server with the Appointments service
// registered. Interceptors run timeout, then rate limit, then auth.
func NewServer(svc appointmentsService, opts ServerOptions) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestTimeoutInterceptor(opts.RequestTimeout),
			RateLimitInterceptor(opts.Limiter, opts.Logger),
			AuthInterceptor(opts.Resolver, opts.Logger),
		),
	)
	RegisterAppointmentsServiceServer(s, NewAppointmentsServer(svc, opts.Logger))
	return s
}
