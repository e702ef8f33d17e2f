package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Reservation)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create reservations table: %v", err)
	}
	_, err = bunDB.NewCreateTable().Model((*models.RoomLine)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create reservation_rooms table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func sampleReservation(id string) models.Reservation {
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	return models.Reservation{
		ID:             id,
		HotelID:        "hotel_1",
		CustomerID:     "user_1",
		CheckInDate:    checkIn,
		CheckOutDate:   checkIn.AddDate(0, 0, 2),
		NumberOfGuests: 2,
		TotalPrice:     300,
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentStatusUnpaid,
		CreatedAt:      time.Now(),
		Rooms: []models.RoomLine{
			{ID: uuid.New().String(), RoomTypeID: "deluxe", Name: "Deluxe", UnitPrice: 150, Quantity: 1, Adults: 2},
		},
	}
}

func TestCreateAndGetReservation(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	reservationID := "res_" + uuid.New().String()
	require.NoError(t, store.CreateReservation(sampleReservation(reservationID)))

	got, err := store.GetReservationByID(reservationID)
	require.NoError(t, err)

	assert.Equal(t, reservationID, got.ID)
	assert.Equal(t, "hotel_1", got.HotelID)
	assert.Equal(t, models.StatusPending, got.Status)
	require.Len(t, got.Rooms, 1)
	assert.Equal(t, "deluxe", got.Rooms[0].RoomTypeID)
	assert.Equal(t, reservationID, got.Rooms[0].ReservationID)
}

func TestGetReservationByIDNotFound(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := store.GetReservationByID("res_missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpdateReservationLifecycleFields(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	reservationID := "res_" + uuid.New().String()
	require.NoError(t, store.CreateReservation(sampleReservation(reservationID)))

	stored, err := store.GetReservationByID(reservationID)
	require.NoError(t, err)

	now := time.Now().UTC()
	stored.Status = models.StatusDepositPaid
	stored.PaymentType = models.PaymentDeposit
	stored.PaymentStatus = models.PaymentStatusDepositPaid
	stored.PaymentMethod = "qr"
	stored.PaidAmount = 150
	stored.InstrumentRef = "pi_1"
	stored.PaymentConfirmedAt = &now
	require.NoError(t, store.UpdateReservation(*stored))

	got, err := store.GetReservationByID(reservationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDepositPaid, got.Status)
	assert.Equal(t, models.PaymentDeposit, got.PaymentType)
	assert.Equal(t, 150.0, got.PaidAmount)
	assert.Equal(t, "pi_1", got.InstrumentRef)
	assert.NotNil(t, got.PaymentConfirmedAt)

	// Immutable fields stay untouched.
	assert.Equal(t, 300.0, got.TotalPrice)
	assert.Equal(t, "user_1", got.CustomerID)
}

func TestGetRoomsByReservation(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	reservationID := "res_" + uuid.New().String()
	res := sampleReservation(reservationID)
	res.Rooms = append(res.Rooms, models.RoomLine{
		ID: uuid.New().String(), RoomTypeID: "suite", UnitPrice: 260, Quantity: 1,
	})
	require.NoError(t, store.CreateReservation(res))

	rooms, err := store.GetRoomsByReservation(reservationID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestGetReservationsByCustomer(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	first := sampleReservation("res_first")
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := sampleReservation("res_second")
	second.CreatedAt = time.Now()
	other := sampleReservation("res_other")
	other.CustomerID = "user_2"

	require.NoError(t, store.CreateReservation(first))
	require.NoError(t, store.CreateReservation(second))
	require.NoError(t, store.CreateReservation(other))

	reservations, err := store.GetReservationsByCustomer("user_1")
	require.NoError(t, err)
	require.Len(t, reservations, 2)
	// Newest first.
	assert.Equal(t, "res_second", reservations[0].ID)
	assert.Equal(t, "res_first", reservations[1].ID)
}

func TestGetPendingReservationsByHotel(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	pending := sampleReservation("res_pending")
	approved := sampleReservation("res_approved")
	approved.Status = models.StatusApproved
	elsewhere := sampleReservation("res_elsewhere")
	elsewhere.HotelID = "hotel_2"

	require.NoError(t, store.CreateReservation(pending))
	require.NoError(t, store.CreateReservation(approved))
	require.NoError(t, store.CreateReservation(elsewhere))

	reservations, err := store.GetPendingReservationsByHotel("hotel_1")
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, "res_pending", reservations[0].ID)
	// Room lines come along for the approval screen.
	assert.NotEmpty(t, reservations[0].Rooms)
}

func TestCreateReservationWithoutRooms(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	res := sampleReservation("res_norooms")
	res.Rooms = nil
	require.NoError(t, store.CreateReservation(res))

	got, err := store.GetReservationByID("res_norooms")
	require.NoError(t, err)
	assert.Empty(t, got.Rooms)
}
