package apiclient

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-reservations/internal/models"
)

// The backend has served two shapes for a reservation over time: one with
// the payment sub-record nested under "payment", and an older one with the
// payment fields flattened onto the reservation itself. Everything after
// this boundary sees only the canonical models.Reservation; no other code
// branches on wire shape.

type wirePayment struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaymentMethod string               `json:"paymentMethod"`
	TotalPrice    float64              `json:"totalPrice"`
	PaidAmount    float64              `json:"paidAmount"`
	InstrumentRef string               `json:"instrumentRef"`
	ConfirmedAt   *time.Time           `json:"confirmedAt"`
}

type wireReservation struct {
	ID             string                   `json:"id"`
	HotelID        string                   `json:"hotelId"`
	CustomerID     string                   `json:"customerId"`
	CheckInDate    time.Time                `json:"checkInDate"`
	CheckOutDate   time.Time                `json:"checkOutDate"`
	NumberOfGuests int                      `json:"numberOfGuests"`
	TotalPrice     float64                  `json:"totalPrice"`
	Status         models.ReservationStatus `json:"status"`
	PaymentType    models.PaymentType       `json:"paymentType"`
	StatusReason   string                   `json:"statusReason"`
	CreatedAt      time.Time                `json:"createdAt"`
	Rooms          []models.RoomLine        `json:"rooms"`

	// Nested variant
	Payment *wirePayment `json:"payment"`

	// Flattened variant
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaymentMethod string               `json:"paymentMethod"`
	PaidAmount    float64              `json:"paidAmount"`
	InstrumentRef string               `json:"instrumentRef"`
	ConfirmedAt   *time.Time           `json:"paymentConfirmedAt"`
}

func (w *wireReservation) toModel() *models.Reservation {
	reservation := &models.Reservation{
		ID:             w.ID,
		HotelID:        w.HotelID,
		CustomerID:     w.CustomerID,
		CheckInDate:    w.CheckInDate,
		CheckOutDate:   w.CheckOutDate,
		NumberOfGuests: w.NumberOfGuests,
		TotalPrice:     w.TotalPrice,
		Status:         w.Status,
		PaymentType:    w.PaymentType,
		StatusReason:   w.StatusReason,
		CreatedAt:      w.CreatedAt,
		Rooms:          w.Rooms,
	}

	if w.Payment != nil {
		reservation.PaymentStatus = w.Payment.PaymentStatus
		reservation.PaymentMethod = w.Payment.PaymentMethod
		reservation.PaidAmount = w.Payment.PaidAmount
		reservation.InstrumentRef = w.Payment.InstrumentRef
		reservation.PaymentConfirmedAt = w.Payment.ConfirmedAt
		if w.Payment.TotalPrice != 0 && reservation.TotalPrice == 0 {
			reservation.TotalPrice = w.Payment.TotalPrice
		}
	} else {
		reservation.PaymentStatus = w.PaymentStatus
		reservation.PaymentMethod = w.PaymentMethod
		reservation.PaidAmount = w.PaidAmount
		reservation.InstrumentRef = w.InstrumentRef
		reservation.PaymentConfirmedAt = w.ConfirmedAt
	}

	if reservation.PaymentStatus == "" {
		reservation.PaymentStatus = models.PaymentStatusUnpaid
	}

	return reservation
}

// NormalizeReservation maps either wire variant to the canonical struct.
func NormalizeReservation(raw json.RawMessage) (*models.Reservation, error) {
	var wire wireReservation
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("reservation payload missing id")
	}
	return wire.toModel(), nil
}

type reservationEnvelope struct {
	Reservation json.RawMessage `json:"reservation"`
}

// decodeReservationEnvelope handles responses of the form
// {"reservation": {...}} in either wire variant.
func decodeReservationEnvelope(data []byte) (*models.Reservation, error) {
	var envelope reservationEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode reservation envelope: %w", err)
	}
	if len(envelope.Reservation) == 0 {
		return nil, fmt.Errorf("response has no reservation")
	}
	return NormalizeReservation(envelope.Reservation)
}
