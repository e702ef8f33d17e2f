package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RoomLineRequest is one room-type line of an incoming reservation payload.
type RoomLineRequest struct {
	RoomTypeID string  `json:"roomTypeId"`
	Name       string  `json:"name,omitempty"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int     `json:"quantity"`
	Adults     int     `json:"adults"`
	Children   int     `json:"children"`
	Infants    int     `json:"infants"`
}

// ReservationRequest is the createReservation payload. CustomerID may be
// the literal "guest" for unauthenticated bookings.
type ReservationRequest struct {
	HotelID        string            `json:"hotelId"`
	CustomerID     string            `json:"customerId"`
	CheckInDate    time.Time         `json:"checkInDate"`
	CheckOutDate   time.Time         `json:"checkOutDate"`
	NumberOfGuests int               `json:"numberOfGuests"`
	Rooms          []RoomLineRequest `json:"rooms"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID             string            `bun:"reservation_id,pk" json:"id"`
	HotelID        string            `bun:"hotel_id,notnull" json:"hotelId"`
	CustomerID     string            `bun:"customer_id,notnull" json:"customerId"`
	CheckInDate    time.Time         `bun:"check_in_date,notnull" json:"checkInDate"`
	CheckOutDate   time.Time         `bun:"check_out_date,notnull" json:"checkOutDate"`
	NumberOfGuests int               `bun:"number_of_guests" json:"numberOfGuests"`
	TotalPrice     float64           `bun:"total_price,notnull" json:"totalPrice"`
	Status         ReservationStatus `bun:"status,notnull" json:"status"`
	PaymentType    PaymentType       `bun:"payment_type,nullzero" json:"paymentType,omitempty"`
	StatusReason   string            `bun:"status_reason,nullzero" json:"statusReason,omitempty"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"createdAt"`

	// Payment sub-record, flattened into the reservations table.
	PaymentStatus      PaymentStatus `bun:"payment_status,nullzero" json:"-"`
	PaymentMethod      string        `bun:"payment_method,nullzero" json:"-"`
	PaidAmount         float64       `bun:"paid_amount" json:"-"`
	InstrumentRef      string        `bun:"instrument_ref,nullzero" json:"-"`
	PaymentConfirmedAt *time.Time    `bun:"payment_confirmed_at,nullzero" json:"-"`

	Rooms []RoomLine `bun:"rel:has-many,join:reservation_id=reservation_id" json:"rooms,omitempty"`
}

// RoomLine is a persisted room-type line item of a reservation.
type RoomLine struct {
	bun.BaseModel `bun:"table:reservation_rooms"`

	ID            string  `bun:"line_id,pk" json:"id"`
	ReservationID string  `bun:"reservation_id,notnull" json:"reservationId"`
	RoomTypeID    string  `bun:"room_type_id,notnull" json:"roomTypeId"`
	Name          string  `bun:"room_type_name,nullzero" json:"name,omitempty"`
	UnitPrice     float64 `bun:"unit_price,notnull" json:"unitPrice"`
	Quantity      int     `bun:"quantity,notnull" json:"quantity"`
	Adults        int     `bun:"adults" json:"adults"`
	Children      int     `bun:"children" json:"children"`
	Infants       int     `bun:"infants" json:"infants"`
}

// Payment is the nested payment view of a reservation as served on the wire.
type Payment struct {
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	TotalPrice    float64       `json:"totalPrice"`
	PaidAmount    float64       `json:"paidAmount"`
	InstrumentRef string        `json:"instrumentRef,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
}

// Payment builds the nested payment sub-record from the flattened columns.
func (r *Reservation) Payment() Payment {
	status := r.PaymentStatus
	if status == "" {
		status = PaymentStatusUnpaid
	}
	return Payment{
		PaymentStatus: status,
		PaymentMethod: r.PaymentMethod,
		TotalPrice:    r.TotalPrice,
		PaidAmount:    r.PaidAmount,
		InstrumentRef: r.InstrumentRef,
		ConfirmedAt:   r.PaymentConfirmedAt,
	}
}

// Nights returns the number of nights between check-in and check-out.
func (r *Reservation) Nights() int {
	return int(r.CheckOutDate.Sub(r.CheckInDate).Hours() / 24)
}

// ReservationResponse is the canonical wire shape: reservation fields with
// the payment sub-record nested, regardless of how it is stored.
type ReservationResponse struct {
	Reservation
	PaymentInfo Payment `json:"payment"`
}

func (r *Reservation) ToResponse() ReservationResponse {
	return ReservationResponse{
		Reservation: *r,
		PaymentInfo: r.Payment(),
	}
}

// ApprovalRequest is the staff-side approval action payload.
type ApprovalRequest struct {
	Action string `json:"action"` // approve | reject | cancel
	Reason string `json:"reason,omitempty"`
}

const (
	ApprovalActionApprove = "approve"
	ApprovalActionReject  = "reject"
	ApprovalActionCancel  = "cancel"
)

// ReservationEvent is published to Kafka on every lifecycle transition.
type ReservationEvent struct {
	Type          string            `json:"type"`
	ReservationID string            `json:"reservation_id"`
	HotelID       string            `json:"hotel_id"`
	Status        ReservationStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}
