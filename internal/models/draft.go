package models

import (
	"errors"
	"time"
)

// RoomSelection is one room-type pick inside a draft.
type RoomSelection struct {
	RoomTypeID string  `json:"roomTypeId"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int     `json:"quantity"`
	Adults     int     `json:"adults"`
	Children   int     `json:"children"`
	Infants    int     `json:"infants"`
}

// Draft is the client-local reservation selection before a server-side
// reservation exists. QueryString preserves the room-selection query so the
// customer can go back and edit.
type Draft struct {
	HotelID      string          `json:"hotelId"`
	CheckInDate  time.Time       `json:"checkInDate"`
	CheckOutDate time.Time       `json:"checkOutDate"`
	Selected     []RoomSelection `json:"selected"`
	Total        float64         `json:"total"`
	Nights       int             `json:"nights"`
	QueryString  string          `json:"queryString,omitempty"`
}

var (
	ErrDraftNoRooms      = errors.New("draft has no room selections")
	ErrDraftInvalidDates = errors.New("check-in date must be before check-out date")
)

// ComputeTotals fills Nights and Total from the selected room lines.
// Total = sum(unitPrice * quantity * nights) over all lines.
func (d *Draft) ComputeTotals() {
	d.Nights = int(d.CheckOutDate.Sub(d.CheckInDate).Hours() / 24)
	total := 0.0
	for _, line := range d.Selected {
		total += line.UnitPrice * float64(line.Quantity) * float64(d.Nights)
	}
	d.Total = total
}

// Validate checks the guards for the draft -> pending transition.
func (d *Draft) Validate() error {
	if len(d.Selected) == 0 {
		return ErrDraftNoRooms
	}
	if !d.CheckInDate.Before(d.CheckOutDate) {
		return ErrDraftInvalidDates
	}
	return nil
}

// Guests returns the total guest count across all room lines.
func (d *Draft) Guests() int {
	guests := 0
	for _, line := range d.Selected {
		guests += line.Adults + line.Children + line.Infants
	}
	return guests
}

// ToRequest converts the draft into a createReservation payload.
func (d *Draft) ToRequest(customerID string) ReservationRequest {
	rooms := make([]RoomLineRequest, len(d.Selected))
	for i, line := range d.Selected {
		rooms[i] = RoomLineRequest{
			RoomTypeID: line.RoomTypeID,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Adults:     line.Adults,
			Children:   line.Children,
			Infants:    line.Infants,
		}
	}
	return ReservationRequest{
		HotelID:        d.HotelID,
		CustomerID:     customerID,
		CheckInDate:    d.CheckInDate,
		CheckOutDate:   d.CheckOutDate,
		NumberOfGuests: d.Guests(),
		Rooms:          rooms,
	}
}
