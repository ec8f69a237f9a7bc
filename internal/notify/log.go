package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher records that a message was requested without delivering it.
// Bodies carry OTP codes and are never logged.
type LogDispatcher struct {
	log *slog.Logger
}

func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LogDispatcher{log: log.With(slog.String("component", "notify.log"))}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	d.log.InfoContext(ctx, "notification requested",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("body_len", len(msg.Body)),
	)
	return nil
}
