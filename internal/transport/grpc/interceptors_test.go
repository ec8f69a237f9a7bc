package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/ratelimit"
	"bookingdesk/backend/internal/service/appointments"
)

type countingCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[key]++
	return c.counts[key], nil
}

func startServer(t *testing.T, svc appointmentsService, limiter *ratelimit.Limiter) (*Client, *identity.Resolver) {
	t.Helper()
	resolver, err := identity.NewResolver(identity.Config{Secret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("NewResolver error: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, ServerOptions{
		RequestTimeout: time.Second,
		Resolver:       resolver,
		Limiter:        limiter,
		Logger:         discardLogger(),
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), resolver
}

func listingService(gotEmail *string) *fakeAppointmentsService {
	return &fakeAppointmentsService{
		listFn: func(ctx context.Context, caller appointments.Caller, in appointments.ListInput) appointments.Result {
			*gotEmail = caller.Email
			if _, ok := ctx.Deadline(); !ok {
				return appointments.Failure(context.DeadlineExceeded)
			}
			return appointments.Success("Upcoming appointments", appointments.ListData{})
		},
	}
}

func TestServer_AuthenticatesCaller(t *testing.T) {
	var gotEmail string
	client, resolver := startServer(t, listingService(&gotEmail), nil)
	req, _ := structpb.NewStruct(map[string]any{"role": "user", "view": "upcoming"})

	_, err := client.ListAppointments(context.Background(), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code without token = %s, want %s", status.Code(err), codes.Unauthenticated)
	}
	if body, ok := EnvelopeFromError(err); !ok || body.GetFields()["message"].GetStringValue() != identity.ErrMissingToken.Error() {
		t.Fatalf("envelope = %v", body)
	}

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	if _, err := client.ListAppointments(bad, req); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code with bad token = %s", status.Code(err))
	}

	token, err := resolver.Sign("pat@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	out, err := client.ListAppointments(ctx, req)
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if gotEmail != "pat@example.com" {
		t.Fatalf("caller email = %q", gotEmail)
	}
	if out.GetFields()["message"].GetStringValue() != "Upcoming appointments" {
		t.Fatalf("response = %v", out)
	}
}

func TestServer_RateLimitsPerClient(t *testing.T) {
	var gotEmail string
	limiter := ratelimit.New(&countingCounter{}, ratelimit.Config{Limit: 2, Window: time.Minute, Prefix: "grpc"})
	client, resolver := startServer(t, listingService(&gotEmail), limiter)

	token, err := resolver.Sign("pat@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	req, _ := structpb.NewStruct(map[string]any{"role": "user"})
	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"authorization", "Bearer "+token,
		"x-forwarded-for", "203.0.113.7, 10.0.0.1",
	)

	for i := 0; i < 2; i++ {
		if _, err := client.ListAppointments(ctx, req); err != nil {
			t.Fatalf("call %d error: %v", i+1, err)
		}
	}
	if _, err := client.ListAppointments(ctx, req); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.ResourceExhausted)
	}
}

func TestClientKey(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", " 198.51.100.1 , 10.0.0.1"))
	if got := clientKey(ctx); got != "198.51.100.1" {
		t.Fatalf("clientKey = %q", got)
	}

	ctx = peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.5"), Port: 4242}})
	if got := clientKey(ctx); got != "192.0.2.5" {
		t.Fatalf("clientKey = %q", got)
	}

	if got := clientKey(context.Background()); got != "unknown" {
		t.Fatalf("clientKey = %q", got)
	}
}

func TestRequestTimeoutInterceptor_KeepsExistingDeadline(t *testing.T) {
	interceptor := RequestTimeoutInterceptor(time.Hour)
	parent, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	want, _ := parent.Deadline()

	_, err := interceptor(parent, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		got, ok := ctx.Deadline()
		if !ok || !got.Equal(want) {
			t.Fatalf("deadline = %v, want %v", got, want)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
}
