package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/ratelimit"
	"bookingdesk/backend/internal/service/appointments"
)

const DefaultRequestTimeout = 10 * time.Second

// RequestTimeoutInterceptor applies timeout to calls that arrive without a
// deadline.
func RequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type headerResolver interface {
	ResolveHeader(ctx context.Context, header string) (string, error)
}

// AuthInterceptor resolves the bearer token in the authorization metadata
// and stores the caller email on the context.
func AuthInterceptor(resolver headerResolver, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.auth"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				header = vals[0]
			}
		}

		email, err := resolver.ResolveHeader(ctx, header)
		if err != nil {
			msg := identity.ErrInvalidToken.Error()
			if errors.Is(err, identity.ErrMissingToken) {
				msg = identity.ErrMissingToken.Error()
			}
			log.InfoContext(ctx, "unauthenticated call", slog.String("rpc", info.FullMethod), slog.String("reason", msg))
			return nil, errorWithEnvelope(codes.Unauthenticated, appointments.Result{Status: appointments.StatusError, Message: msg})
		}
		return handler(identity.WithEmail(ctx, email), req)
	}
}

// RateLimitInterceptor counts calls per client address. A nil limiter lets
// every call through.
func RateLimitInterceptor(limiter *ratelimit.Limiter, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.ratelimit"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter == nil {
			return handler(ctx, req)
		}
		d := limiter.Allow(ctx, clientKey(ctx))
		if d.Err != nil {
			log.WarnContext(ctx, "rate limiter error", slog.Any("err", d.Err))
			if !d.Allowed {
				return nil, status.Error(codes.Unavailable, "rate limiter unavailable")
			}
		}
		if !d.Allowed {
			return nil, errorWithEnvelope(codes.ResourceExhausted, appointments.Result{Status: appointments.StatusError, Message: "rate limit exceeded"})
		}
		return handler(ctx, req)
	}
}

func clientKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
			return strings.TrimSpace(strings.Split(vals[0], ",")[0])
		}
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
