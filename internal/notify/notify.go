// Package notify delivers out-of-band messages (OTP codes, completion and
// cancellation notices) to appointment parties.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher accepts a message for delivery. Callers treat it as
// fire-and-forget and only log failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

const (
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverSMTP  = "smtp"
)

type Config struct {
	Driver       string
	KafkaBrokers []string
	KafkaTopic   string
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
}

// New builds the dispatcher selected by cfg.Driver. The returned close func
// is always non-nil.
func New(cfg Config, log *slog.Logger) (Dispatcher, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLog:
		return NewLogDispatcher(log), noop, nil
	case DriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, noop, fmt.Errorf("notify: kafka driver requires brokers")
		}
		d := NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		return d, d.Close, nil
	case DriverSMTP:
		if strings.TrimSpace(cfg.SMTPHost) == "" {
			return nil, noop, fmt.Errorf("notify: smtp driver requires a host")
		}
		return NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), noop, nil
	default:
		return nil, noop, fmt.Errorf("notify: unknown driver %q", cfg.Driver)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("notify: recipient is required")
	}
	return nil
}
