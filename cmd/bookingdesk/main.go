package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"google.golang.org/grpc"

	"bookingdesk/backend/internal/availability"
	"bookingdesk/backend/internal/config"
	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/notify"
	"bookingdesk/backend/internal/otp"
	"bookingdesk/backend/internal/ratelimit"
	"bookingdesk/backend/internal/service/appointments"
	"bookingdesk/backend/internal/store/postgres"
	"bookingdesk/backend/internal/telemetry"
	grpcTransport "bookingdesk/backend/internal/transport/grpc"
	httpTransport "bookingdesk/backend/internal/transport/http"
	"bookingdesk/backend/migrations"
)

const serviceName = "bookingdesk"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Appointment booking and OTP confirmation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)
	return log
}

func loadConfig() (config.Config, *slog.Logger, error) {
	log := newLogger("info")
	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return config.Config{}, log, err
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func openDB(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, func(), error) {
	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return db, closeDB, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC and HTTP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			count, err := postgres.NewMigrator(db, migrations.FS).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("migrations applied", slog.Int("count", count))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := postgres.NewMigrator(db, migrations.FS).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration status failed: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	})
	return cmd
}

func printStatus(cmd *cobra.Command, statuses []postgres.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		state, appliedAt := "pending", ""
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, appliedAt)
	}
}

// tokenCmd mints a bearer token with the configured secret for local testing.
func tokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			resolver, err := identity.NewResolver(identity.Config{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer})
			if err != nil {
				return err
			}
			token, err := resolver.Sign(email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "caller email placed in the subject claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("notify_driver", cfg.NotifyDriver),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("telemetry setup failed", slog.Any("err", err))
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	resolver, err := identity.NewResolver(identity.Config{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer})
	if err != nil {
		log.Error("identity setup failed", slog.Any("err", err))
		return err
	}

	db, closeDB, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	ready := []httpTransport.Pinger{postgres.Pinger{DB: db}}

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err))
			return err
		}
		defer func() { _ = rdb.Close() }()
		limiter = ratelimit.New(ratelimit.NewRedisCounter(rdb), ratelimit.Config{
			Limit:    cfg.RateLimit,
			Window:   cfg.RateLimitWindow,
			Prefix:   serviceName,
			FailOpen: cfg.RateLimitFailOpen,
		})
		ready = append(ready, redisPinger(rdb))
	} else {
		log.Warn("redis url not set; rate limiting disabled")
	}

	notifier, closeNotifier, err := notify.New(notify.Config{
		Driver:       cfg.NotifyDriver,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPFrom:     cfg.SMTPFrom,
	}, log)
	if err != nil {
		log.Error("notifier setup failed", slog.Any("err", err))
		return err
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Warn("notifier close failed", slog.Any("err", err))
		}
	}()

	svc := appointments.NewService(postgres.NewBookingRepo(db), postgres.NewAccountRepo(db), appointments.Options{
		Finder: availability.NewFinder(cfg.SearchHorizonDays, cfg.Location()),
		OTP: otp.NewLifecycle(otp.Policy{
			Length:         cfg.OTPLength,
			TTL:            cfg.OTPTTL,
			ResendCooldown: cfg.OTPResendCooldown,
			MaxAttempts:    cfg.OTPMaxAttempts,
		}, otp.NewBcryptHasher(cfg.OTPBcryptCost)),
		Notifier:        notifier,
		Logger:          log,
		DefaultDuration: cfg.DefaultDurationMinutes,
	})

	grpcServer := grpcTransport.NewServer(svc, grpcTransport.ServerOptions{
		RequestTimeout: cfg.GRPCRequestTimeout,
		Resolver:       resolver,
		Limiter:        limiter,
		Logger:         log,
	})
	httpServer := httpTransport.NewServer(cfg.HTTPAddr, svc, httpTransport.ServerOptions{
		Resolver: resolver,
		Limiter:  limiter,
		Ready:    ready,
		Logger:   log,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			serveErr = err
		}
	}
	shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	return serveErr
}

func redisPinger(rdb *redis.Client) httpTransport.PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
