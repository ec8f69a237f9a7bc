package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	DefaultKafkaTopic = "notification.requested"
	eventType         = "notification.requested"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes notification requests for a downstream mailer.
type KafkaDispatcher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
	now    func() time.Time
}

type notificationEvent struct {
	EventID     string    `json:"event_id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewKafkaDispatcher(brokers []string, topic string, log *slog.Logger) *KafkaDispatcher {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newKafkaDispatcher(w, topic, log)
}

func newKafkaDispatcher(w messageWriter, topic string, log *slog.Logger) *KafkaDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaDispatcher{
		writer: w,
		topic:  topic,
		log:    log.With(slog.String("component", "notify.kafka")),
		now:    time.Now,
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(notificationEvent{
		EventID:     id.String(),
		To:          msg.To,
		Subject:     msg.Subject,
		Body:        msg.Body,
		RequestedAt: d.now().UTC(),
	})
	if err != nil {
		return err
	}

	km := kafka.Message{
		Topic: d.topic,
		Key:   []byte(strings.ToLower(msg.To)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(id.String())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	km.Headers = injectTraceHeaders(ctx, km.Headers)

	if err := d.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("notify: kafka publish: %w", err)
	}
	d.log.DebugContext(ctx, "notification published", slog.String("event_id", id.String()), slog.String("topic", d.topic))
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
