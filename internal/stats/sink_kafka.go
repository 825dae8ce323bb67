package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sundayezeilo/filelinks/internal/errx"
	"github.com/sundayezeilo/filelinks/internal/idgen"
)

// Event is the message published for every increment.
type Event struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	UserID     int64     `json:"user_id,omitempty"`
	Counter    string    `json:"counter"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes increments as JSON events keyed by scope.
type KafkaSink struct {
	writer messageWriter
	ids    idgen.Generator
	now    func() time.Time
}

// NewKafkaSink returns a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Async:    true,
		},
		ids: idgen.TimeOrdered(1),
		now: time.Now,
	}
}

// Increment publishes one event.
func (k *KafkaSink) Increment(ctx context.Context, scope Scope, counter string, amount int64) error {
	const op = "stats.kafka.Increment"

	id, err := k.ids.NewID()
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	ev := Event{
		ID:         id,
		Scope:      "user",
		UserID:     scope.UserID,
		Counter:    counter,
		Amount:     amount,
		OccurredAt: k.now().UTC(),
	}
	if scope.System {
		ev.Scope = "system"
		ev.UserID = 0
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(scope.String()),
		Value: data,
	}); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// Close flushes pending messages.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
