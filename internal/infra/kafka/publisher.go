package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"exchange_go/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventTypeTradeSettled = "trade.settled"

// Envelope is the value written for every settlement.
type Envelope struct {
	EventID    string            `json:"event_id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Settlement domain.Settlement `json:"settlement"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards settlements to a Kafka topic, keyed by trade id so all
// events of one trade land on the same partition.
type Publisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewPublisher creates a synchronous publisher that waits for all in-sync replicas.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	})
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w, now: time.Now}
}

// Notify implements domain.Notifier.
func (p *Publisher) Notify(ctx context.Context, s domain.Settlement) error {
	env := Envelope{
		EventID:    uuid.NewString(),
		Type:       EventTypeTradeSettled,
		OccurredAt: p.now().UTC(),
		Settlement: s,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal settlement %d: %w", s.Trade.ID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(s.Trade.ID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(env.EventID)},
			{Key: "type", Value: []byte(env.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish settlement %d: %w", s.Trade.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
