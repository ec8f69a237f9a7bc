package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher sends plain-text mail through an unauthenticated relay.
type SMTPDispatcher struct {
	addr     string
	from     string
	sendMail sendMailFunc
}

func NewSMTPDispatcher(host, port, from string) *SMTPDispatcher {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if port == "" {
		port = "25"
	}
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@bookingdesk.local"
	}
	return &SMTPDispatcher{
		addr:     net.JoinHostPort(host, port),
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body := buildMail(d.from, msg)
	if err := d.sendMail(d.addr, nil, d.from, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func buildMail(from string, msg Message) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		headerSafe(msg.To),
		headerSafe(msg.Subject),
		msg.Body,
	)
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
