package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("addrs = %s %s", cfg.GRPCAddr(), cfg.HTTPAddr)
	}
	if cfg.OTPTTL != 15*time.Minute || cfg.OTPResendCooldown != 2*time.Minute || cfg.OTPMaxAttempts != 3 || cfg.OTPLength != 6 {
		t.Fatalf("otp = %v %v %d %d", cfg.OTPTTL, cfg.OTPResendCooldown, cfg.OTPMaxAttempts, cfg.OTPLength)
	}
	if cfg.SearchHorizonDays != 30 || cfg.DefaultDurationMinutes != 30 || cfg.Location() != time.UTC {
		t.Fatalf("booking = %d %d %v", cfg.SearchHorizonDays, cfg.DefaultDurationMinutes, cfg.Location())
	}
	if cfg.NotifyDriver != "log" || cfg.KafkaTopic != "notification.requested" {
		t.Fatalf("notify = %q %q", cfg.NotifyDriver, cfg.KafkaTopic)
	}
	if cfg.RateLimit != 60 || cfg.RateLimitWindow != time.Minute || !cfg.RateLimitFailOpen {
		t.Fatalf("ratelimit = %d %v %v", cfg.RateLimit, cfg.RateLimitWindow, cfg.RateLimitFailOpen)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BOOKINGDESK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("BOOKINGDESK_OTP_TTL", "10m")
	t.Setenv("BOOKINGDESK_OTP_MAX_ATTEMPTS", "5")
	t.Setenv("BOOKINGDESK_BOOKING_TIMEZONE", "Africa/Lagos")
	t.Setenv("BOOKINGDESK_NOTIFY_DRIVER", "Kafka")
	t.Setenv("BOOKINGDESK_NOTIFY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("grpc addr = %s", cfg.GRPCAddr())
	}
	if cfg.OTPTTL != 10*time.Minute || cfg.OTPMaxAttempts != 5 {
		t.Fatalf("otp = %v %d", cfg.OTPTTL, cfg.OTPMaxAttempts)
	}
	if cfg.Location().String() != "Africa/Lagos" {
		t.Fatalf("location = %v", cfg.Location())
	}
	if cfg.NotifyDriver != "kafka" || len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("notify = %q %v", cfg.NotifyDriver, cfg.KafkaBrokers)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("jwt secret not bound from fallback env")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"BOOKINGDESK_OTP_TTL":             "soon",
		"BOOKINGDESK_BOOKING_TIMEZONE":    "Mars/Olympus",
		"BOOKINGDESK_OTP_MAX_ATTEMPTS":    "0",
		"BOOKINGDESK_OTP_RESEND_COOLDOWN": "1h",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := load(viper.New()); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
