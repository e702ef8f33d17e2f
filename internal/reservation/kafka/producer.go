package kafka

import (
	"context"
	"encoding/json"
	"time"

	"ms-reservations/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(eventType string, reservation models.Reservation, reason string) error {
	event := models.ReservationEvent{
		Type:          eventType,
		ReservationID: reservation.ID,
		HotelID:       reservation.HotelID,
		Status:        reservation.Status,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(reservation.ID),
			Value: msgBytes,
		},
	)
}

// PublishReservationCreated streams the created event to Kafka
func (p *Producer) PublishReservationCreated(reservation models.Reservation) error {
	return p.publish("reservation.created", reservation, "")
}

// PublishStatusChanged streams any lifecycle transition to Kafka
func (p *Producer) PublishStatusChanged(reservation models.Reservation, reason string) error {
	return p.publish("reservation.status_changed", reservation, reason)
}

// PublishPaymentConfirmed streams the paid transition to Kafka
func (p *Producer) PublishPaymentConfirmed(reservation models.Reservation) error {
	return p.publish("reservation.payment_confirmed", reservation, "")
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
