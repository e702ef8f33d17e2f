package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-reservations/internal/lifecycle"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/payment"
	"ms-reservations/internal/payment/gateway"
	"ms-reservations/internal/utils"
)

var (
	ErrNoRooms        = errors.New("reservation requires at least one room line")
	ErrInvalidDates   = errors.New("check-in date must be before check-out date")
	ErrRoomsHeld      = errors.New("one or more room types are already held")
	ErrReasonRequired = errors.New("a reason is required to reject or cancel a reservation")
)

type DBLayer interface {
	CreateReservation(reservation models.Reservation) error
	GetReservationByID(id string) (*models.Reservation, error)
	UpdateReservation(reservation models.Reservation) error
	GetRoomsByReservation(reservationID string) ([]models.RoomLine, error)
	GetReservationsByCustomer(customerID string) ([]models.Reservation, error)
	GetPendingReservationsByHotel(hotelID string) ([]models.Reservation, error)
}

type HoldStore interface {
	HoldRooms(hotelID string, roomTypeIDs []string, reservationID string) (bool, error)
	ReleaseRooms(hotelID string, roomTypeIDs []string, reservationID string) error
}

type KafkaPublisher interface {
	PublishReservationCreated(reservation models.Reservation) error
	PublishStatusChanged(reservation models.Reservation, reason string) error
	PublishPaymentConfirmed(reservation models.Reservation) error
}

// PendingEmitter pushes newly created pending reservations to subscribed
// staff dashboards. Customers never receive push for this flow; they poll.
type PendingEmitter interface {
	EmitPending(reservation models.Reservation)
}

type ReservationService struct {
	DB       DBLayer
	Holds    HoldStore
	Kafka    KafkaPublisher
	Selector *payment.Selector
	Gateway  gateway.Gateway
	Emitter  PendingEmitter
	logger   *logger.Logger
}

func NewReservationService(db DBLayer, holds HoldStore, kafka KafkaPublisher, selector *payment.Selector, gw gateway.Gateway, emitter PendingEmitter, log *logger.Logger) *ReservationService {
	return &ReservationService{
		DB:       db,
		Holds:    holds,
		Kafka:    kafka,
		Selector: selector,
		Gateway:  gw,
		Emitter:  emitter,
		logger:   log,
	}
}

// PlaceReservation creates a pending reservation from a confirmed draft
// payload. The server recomputes the total; client totals are display-only.
func (s *ReservationService) PlaceReservation(req models.ReservationRequest) (*models.Reservation, error) {
	if len(req.Rooms) == 0 {
		return nil, ErrNoRooms
	}
	if !req.CheckInDate.Before(req.CheckOutDate) {
		return nil, ErrInvalidDates
	}

	nights := int(req.CheckOutDate.Sub(req.CheckInDate).Hours() / 24)
	total := 0.0
	roomTypeIDs := make([]string, len(req.Rooms))
	rooms := make([]models.RoomLine, len(req.Rooms))
	for i, line := range req.Rooms {
		total += line.UnitPrice * float64(line.Quantity) * float64(nights)
		roomTypeIDs[i] = line.RoomTypeID
		rooms[i] = models.RoomLine{
			ID:         utils.GenerateLineID(),
			RoomTypeID: line.RoomTypeID,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Adults:     line.Adults,
			Children:   line.Children,
			Infants:    line.Infants,
		}
	}

	reservation := models.Reservation{
		ID:             utils.GenerateReservationID(),
		HotelID:        req.HotelID,
		CustomerID:     req.CustomerID,
		CheckInDate:    req.CheckInDate,
		CheckOutDate:   req.CheckOutDate,
		NumberOfGuests: req.NumberOfGuests,
		TotalPrice:     total,
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentStatusUnpaid,
		CreatedAt:      time.Now().UTC(),
		Rooms:          rooms,
	}

	ok, err := s.Holds.HoldRooms(req.HotelID, roomTypeIDs, reservation.ID)
	if err != nil {
		return nil, fmt.Errorf("room hold error: %w", err)
	}
	if !ok {
		return nil, ErrRoomsHeld
	}

	if err := s.DB.CreateReservation(reservation); err != nil {
		s.logger.Error("RESERVATION", fmt.Sprintf("Failed to create reservation %s, rolling back holds: %v", reservation.ID, err))
		_ = s.Holds.ReleaseRooms(req.HotelID, roomTypeIDs, reservation.ID)
		return nil, err
	}

	if err := s.Kafka.PublishReservationCreated(reservation); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (reservation created): %v", err))
	}
	if s.Emitter != nil {
		s.Emitter.EmitPending(reservation)
	}

	s.logger.LogReservation("CREATE", reservation.ID,
		fmt.Sprintf("Pending reservation for hotel %s, total %0.2f", req.HotelID, total))
	return &reservation, nil
}

func (s *ReservationService) GetReservation(id string) (*models.Reservation, error) {
	return s.DB.GetReservationByID(id)
}

func (s *ReservationService) GetReservationsByCustomer(customerID string) ([]models.Reservation, error) {
	return s.DB.GetReservationsByCustomer(customerID)
}

func (s *ReservationService) GetPendingReservations(hotelID string) ([]models.Reservation, error) {
	return s.DB.GetPendingReservationsByHotel(hotelID)
}

// ApplyApproval executes a staff approval action on a pending reservation.
// Reject and cancel require a reason and release the room holds.
func (s *ReservationService) ApplyApproval(id, action, reason string) (*models.Reservation, error) {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}

	target, err := lifecycle.StatusForApproval(action)
	if err != nil {
		return nil, err
	}
	if target != models.StatusApproved && reason == "" {
		return nil, ErrReasonRequired
	}
	if err := lifecycle.Transition(reservation.Status, target); err != nil {
		return nil, err
	}

	reservation.Status = target
	reservation.StatusReason = reason
	if err := s.DB.UpdateReservation(*reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", id, err)
	}

	if target != models.StatusApproved {
		s.releaseHolds(reservation)
	}

	if err := s.Kafka.PublishStatusChanged(*reservation, reason); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (status changed): %v", err))
	}

	s.logger.LogReservation("APPROVAL", id, fmt.Sprintf("Action %s -> status %s", action, target))
	return reservation, nil
}

// SelectPaymentOption transitions an approved reservation into
// payment_selected and returns the PaymentInfo for the chosen type.
// Safe to call repeatedly; re-selection with the same type is served from
// cache, a changed type replaces the prior selection.
func (s *ReservationService) SelectPaymentOption(ctx context.Context, id string, paymentType models.PaymentType) (*models.PaymentInfo, error) {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}

	if err := lifecycle.Transition(reservation.Status, models.StatusPaymentSelected); err != nil {
		return nil, err
	}

	info, err := s.Selector.Select(ctx, reservation, paymentType)
	if err != nil {
		return nil, err
	}

	reservation.Status = models.StatusPaymentSelected
	reservation.PaymentType = paymentType
	reservation.PaymentStatus = models.PaymentStatusPending
	reservation.PaymentMethod = "qr"
	reservation.InstrumentRef = info.InstrumentRef
	if err := s.DB.UpdateReservation(*reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", id, err)
	}

	// Gateways that track the chosen method get told, best-effort.
	if recorder, ok := s.Gateway.(gateway.MethodRecorder); ok {
		if err := recorder.UpdatePaymentMethod(ctx, reservation.ID, reservation.PaymentMethod); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to record payment method for %s: %v", id, err))
		}
	}

	if err := s.Kafka.PublishStatusChanged(*reservation, ""); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (payment selected): %v", err))
	}

	return info, nil
}

// CheckPaymentStatus re-reads the reservation and, while a payment is
// outstanding, asks the gateway whether it has settled. A settled payment
// confirms the reservation into its paid sub-state before returning.
func (s *ReservationService) CheckPaymentStatus(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}

	if reservation.Status != models.StatusPaymentSelected {
		return reservation, nil
	}

	paid, err := s.Gateway.CheckPaid(ctx, reservation)
	if err != nil {
		// The caller polls; an unreachable gateway is retried on the next
		// tick rather than failing the status read.
		s.logger.Warn("PAYMENT", fmt.Sprintf("Gateway check failed for %s: %v", id, err))
		return reservation, nil
	}
	if !paid {
		return reservation, nil
	}

	return s.ConfirmPayment(id, utils.GenerateTransactionID())
}

// ConfirmPayment moves a payment_selected reservation into the paid
// sub-state chosen by its payment type. Idempotent: confirming an already
// paid reservation returns it unchanged.
func (s *ReservationService) ConfirmPayment(id, transactionID string) (*models.Reservation, error) {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}

	if reservation.Status.IsPaid() {
		return reservation, nil
	}

	target, err := lifecycle.PaidStatusFor(reservation.PaymentType)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Transition(reservation.Status, target); err != nil {
		return nil, err
	}

	amounts, err := payment.ComputeAmounts(reservation.TotalPrice, reservation.PaymentType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reservation.Status = target
	reservation.PaidAmount = amounts.Required
	reservation.PaymentConfirmedAt = &now
	if target == models.StatusFullyPaid {
		reservation.PaymentStatus = models.PaymentStatusFullyPaid
	} else {
		reservation.PaymentStatus = models.PaymentStatusDepositPaid
	}

	if err := s.DB.UpdateReservation(*reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", id, err)
	}

	if err := s.Kafka.PublishPaymentConfirmed(*reservation); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (payment confirmed): %v", err))
	}

	s.logger.LogPayment("CONFIRM", id, fmt.Sprintf("Payment %s confirmed -> %s", transactionID, target))
	return reservation, nil
}

// CheckIn marks a paid reservation as checked in. Staff only.
func (s *ReservationService) CheckIn(id string) (*models.Reservation, error) {
	return s.advance(id, models.StatusCheckedIn, "CHECKIN")
}

// CheckOut marks a checked-in reservation as checked out. Staff only.
func (s *ReservationService) CheckOut(id string) (*models.Reservation, error) {
	return s.advance(id, models.StatusCheckedOut, "CHECKOUT")
}

func (s *ReservationService) advance(id string, target models.ReservationStatus, action string) (*models.Reservation, error) {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}

	if err := lifecycle.Transition(reservation.Status, target); err != nil {
		return nil, err
	}

	reservation.Status = target
	if err := s.DB.UpdateReservation(*reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", id, err)
	}

	if err := s.Kafka.PublishStatusChanged(*reservation, ""); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (%s): %v", action, err))
	}

	s.logger.LogReservation(action, id, fmt.Sprintf("Status -> %s", target))
	return reservation, nil
}

// CancelIfPending cancels a reservation that is still pending, used by the
// hold-expiry subscriber. A reservation past pending is left alone.
func (s *ReservationService) CancelIfPending(id, reason string) error {
	reservation, err := s.DB.GetReservationByID(id)
	if err != nil {
		return fmt.Errorf("reservation %s not found: %w", id, err)
	}

	if reservation.Status != models.StatusPending {
		return nil
	}

	reservation.Status = models.StatusCancelled
	reservation.StatusReason = reason
	if err := s.DB.UpdateReservation(*reservation); err != nil {
		return fmt.Errorf("failed to cancel reservation %s: %w", id, err)
	}

	s.releaseHolds(reservation)

	if err := s.Kafka.PublishStatusChanged(*reservation, reason); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (expiry cancel): %v", err))
	}

	s.logger.LogReservation("EXPIRE", id, reason)
	return nil
}

func (s *ReservationService) releaseHolds(reservation *models.Reservation) {
	rooms := reservation.Rooms
	if len(rooms) == 0 {
		loaded, err := s.DB.GetRoomsByReservation(reservation.ID)
		if err != nil {
			s.logger.Error("RESERVATION", fmt.Sprintf("Failed to load rooms for hold release on %s: %v", reservation.ID, err))
			return
		}
		rooms = loaded
	}
	roomTypeIDs := make([]string, len(rooms))
	for i, room := range rooms {
		roomTypeIDs[i] = room.RoomTypeID
	}
	if err := s.Holds.ReleaseRooms(reservation.HotelID, roomTypeIDs, reservation.ID); err != nil {
		s.logger.Error("RESERVATION", fmt.Sprintf("Failed to release holds for %s: %v", reservation.ID, err))
	}
}
