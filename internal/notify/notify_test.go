package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	writeFn func(ctx context.Context, msgs ...kafka.Message) error
	written []kafka.Message
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.writeFn != nil {
		if err := f.writeFn(ctx, msgs...); err != nil {
			return err
		}
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaDispatcherPublishesEvent(t *testing.T) {
	w := &fakeWriter{}
	d := newKafkaDispatcher(w, DefaultKafkaTopic, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	d.now = func() time.Time { return time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) }

	err := d.Dispatch(context.Background(), Message{To: "Pat@Example.com", Subject: "Your appointment OTP", Body: "code"})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("written = %d, want 1", len(w.written))
	}
	km := w.written[0]
	if km.Topic != DefaultKafkaTopic || string(km.Key) != "pat@example.com" {
		t.Fatalf("topic/key = %s/%s", km.Topic, km.Key)
	}

	var ev notificationEvent
	if err := json.Unmarshal(km.Value, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.To != "Pat@Example.com" || ev.Subject != "Your appointment OTP" || ev.EventID == "" {
		t.Fatalf("event = %+v", ev)
	}

	headers := map[string]string{}
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_id"] != ev.EventID || headers["event_type"] != eventType {
		t.Fatalf("headers = %v", headers)
	}

	if err := d.Close(); err != nil || !w.closed {
		t.Fatalf("Close err=%v closed=%v", err, w.closed)
	}
}

func TestKafkaDispatcherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	d := newKafkaDispatcher(&fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error { return boom }}, "t", nil)

	if err := d.Dispatch(context.Background(), Message{To: "a@b.c"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestDispatchRequiresRecipient(t *testing.T) {
	for name, d := range map[string]Dispatcher{
		"log":   NewLogDispatcher(nil),
		"smtp":  NewSMTPDispatcher("localhost", "1025", ""),
		"kafka": newKafkaDispatcher(&fakeWriter{}, "t", nil),
	} {
		if err := d.Dispatch(context.Background(), Message{To: "  "}); err == nil {
			t.Fatalf("%s: expected error for empty recipient", name)
		}
	}
}

func TestSMTPDispatcherBuildsMessage(t *testing.T) {
	d := NewSMTPDispatcher("mail.local", "", "desk@example.com")
	var gotAddr string
	var gotTo []string
	var gotMsg string
	d.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := d.Dispatch(context.Background(), Message{To: "pat@example.com", Subject: "Appointment completed\r\nBcc: x@y", Body: "done"})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if gotAddr != "mail.local:25" || len(gotTo) != 1 || gotTo[0] != "pat@example.com" {
		t.Fatalf("addr=%s to=%v", gotAddr, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Appointment completed  Bcc: x@y\r\n") {
		t.Fatalf("subject header not sanitized: %q", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\ndone\r\n") {
		t.Fatalf("body not appended: %q", gotMsg)
	}
}

func TestLogDispatcherOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogDispatcher(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := d.Dispatch(context.Background(), Message{To: "pat@example.com", Subject: "Your appointment OTP", Body: "is: 482913"}); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if strings.Contains(buf.String(), "482913") {
		t.Fatalf("log leaked message body: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "pat@example.com") {
		t.Fatalf("log missing recipient: %s", buf.String())
	}
}

func TestNewSelectsDriver(t *testing.T) {
	d, closeFn, err := New(Config{Driver: "LOG"}, nil)
	if err != nil {
		t.Fatalf("New(log) error: %v", err)
	}
	if _, ok := d.(*LogDispatcher); !ok {
		t.Fatalf("New(log) = %T", d)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	if _, _, err := New(Config{Driver: DriverKafka}, nil); err == nil {
		t.Fatalf("expected error for kafka without brokers")
	}
	if _, _, err := New(Config{Driver: DriverSMTP}, nil); err == nil {
		t.Fatalf("expected error for smtp without host")
	}
	if _, _, err := New(Config{Driver: "pigeon"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}

	d, _, err = New(Config{Driver: DriverSMTP, SMTPHost: "localhost"}, nil)
	if err != nil {
		t.Fatalf("New(smtp) error: %v", err)
	}
	if _, ok := d.(*SMTPDispatcher); !ok {
		t.Fatalf("New(smtp) = %T", d)
	}
}
