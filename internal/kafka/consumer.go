package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-reservations/internal/models"
)

// PaymentNotification is the settlement message the external payment
// detector publishes when a transfer matching a reservation lands.
type PaymentNotification struct {
	ReservationID string               `json:"reservation_id"`
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Amount        float64              `json:"amount,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes payment notifications until the context is cancelled and
// invokes the handler for each decodable message. Undecodable messages are
// logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(notification PaymentNotification)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("error reading payment notification: %v", err)
			continue
		}

		var notification PaymentNotification
		if err := json.Unmarshal(msg.Value, &notification); err != nil {
			log.Printf("failed to unmarshal payment notification: %v", err)
			continue
		}

		handler(notification)
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
