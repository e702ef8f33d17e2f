package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-reservations/internal/models"

	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("reservation not found")

type DB struct {
	Bun *bun.DB
}

// CreateReservation inserts the reservation and its room lines in one
// transaction so a partially written reservation never becomes visible.
func (d *DB) CreateReservation(reservation models.Reservation) error {
	return d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&reservation).Exec(ctx); err != nil {
			return err
		}
		for i := range reservation.Rooms {
			reservation.Rooms[i].ReservationID = reservation.ID
		}
		if len(reservation.Rooms) > 0 {
			if _, err := tx.NewInsert().Model(&reservation.Rooms).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetReservationByID fetches one reservation with its room lines.
func (d *DB) GetReservationByID(id string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservation).
		Relation("Rooms").
		Where("reservation_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateReservation persists the mutable lifecycle fields. Room lines are
// immutable once the reservation exists.
func (d *DB) UpdateReservation(reservation models.Reservation) error {
	_, err := d.Bun.NewUpdate().
		Model(&reservation).
		Column("status", "status_reason", "payment_type", "payment_status",
			"payment_method", "paid_amount", "instrument_ref", "payment_confirmed_at").
		Where("reservation_id = ?", reservation.ID).
		Exec(context.Background())
	return err
}

// GetRoomsByReservation fetches the room lines of a reservation.
func (d *DB) GetRoomsByReservation(reservationID string) ([]models.RoomLine, error) {
	var rooms []models.RoomLine
	err := d.Bun.NewSelect().
		Model(&rooms).
		Where("reservation_id = ?", reservationID).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetReservationsByCustomer fetches all reservations of one customer,
// newest first.
func (d *DB) GetReservationsByCustomer(customerID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Relation("Rooms").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// GetPendingReservationsByHotel lists reservations awaiting staff approval.
func (d *DB) GetPendingReservationsByHotel(hotelID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Relation("Rooms").
		Where("hotel_id = ?", hotelID).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
