package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventOrderAccepted is the event_type of messages published by KafkaSink
const EventOrderAccepted = "OrderAccepted"

// OrderAcceptedEvent is the Kafka message value
type OrderAcceptedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes accepted orders to a topic so a separate consumer can
// forward them to the chat. Messages are keyed by order id.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (s *KafkaSink) Send(ctx context.Context, n Notification) error {
	value, err := json.Marshal(OrderAcceptedEvent{
		EventID:   n.EventID.String(),
		EventType: EventOrderAccepted,
		OrderID:   n.OrderID,
		Text:      n.Text,
		Timestamp: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(n.OrderID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderAccepted)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order %d: %w", n.OrderID, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
