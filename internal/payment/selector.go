package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/payment/gateway"
	"ms-reservations/internal/payment/qr"
)

var ErrInvalidPaymentType = errors.New("payment type must be 'full' or 'deposit'")

// InfoStore is the cache the selector consults before recomputing a
// PaymentInfo for a reservation.
type InfoStore interface {
	Save(ctx context.Context, info *models.PaymentInfo) error
	Load(ctx context.Context, reservationID string) (*models.PaymentInfo, error)
	Clear(ctx context.Context, reservationID string) error
}

// Amounts is the deterministic money split for a payment type.
type Amounts struct {
	Required  float64
	Deposit   float64
	Remaining float64
}

// ComputeAmounts splits a reservation total for the chosen payment type:
// full pays the whole total, deposit pays round(total * 0.5) now and the
// rest at the hotel.
func ComputeAmounts(total float64, paymentType models.PaymentType) (Amounts, error) {
	switch paymentType {
	case models.PaymentFull:
		return Amounts{Required: total, Deposit: 0, Remaining: 0}, nil
	case models.PaymentDeposit:
		deposit := math.Round(total * 0.5)
		return Amounts{Required: deposit, Deposit: deposit, Remaining: total - deposit}, nil
	}
	return Amounts{}, ErrInvalidPaymentType
}

// Selector turns an approved reservation plus a chosen payment type into a
// concrete PaymentInfo with a scannable instrument.
type Selector struct {
	Gateway gateway.Gateway
	Cache   InfoStore
	QR      *qr.Generator
	logger  *logger.Logger
}

func NewSelector(gw gateway.Gateway, cache InfoStore, qrGen *qr.Generator, log *logger.Logger) *Selector {
	return &Selector{Gateway: gw, Cache: cache, QR: qrGen, logger: log}
}

// Select computes the payable amount and obtains a payment instrument.
// Calling it twice with the same (reservation, paymentType) returns the
// cached PaymentInfo with the same requiredAmount and does not create a
// second payment obligation. A cached PaymentInfo for a different payment
// type is never served; it is discarded and recomputed.
func (s *Selector) Select(ctx context.Context, reservation *models.Reservation, paymentType models.PaymentType) (*models.PaymentInfo, error) {
	if !paymentType.IsValid() {
		return nil, ErrInvalidPaymentType
	}

	if cached, err := s.Cache.Load(ctx, reservation.ID); err == nil && cached != nil {
		if cached.PaymentType == paymentType && cached.InstrumentRef != "" {
			s.logger.LogPayment("SELECT", reservation.ID, fmt.Sprintf("Serving cached payment info (%s)", paymentType))
			return cached, nil
		}
		// Different payment type: stale info must not leak into the new
		// selection.
		_ = s.Cache.Clear(ctx, reservation.ID)
	} else if err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Payment info cache read failed for %s: %v", reservation.ID, err))
	}

	amounts, err := ComputeAmounts(reservation.TotalPrice, paymentType)
	if err != nil {
		return nil, err
	}

	instrument, err := s.Gateway.CreateInstrument(ctx, reservation, amounts.Required)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain payment instrument: %w", err)
	}

	qrPNG, err := s.QR.GeneratePaymentQR(qr.PaymentClaim{
		ReservationID: reservation.ID,
		InstrumentRef: instrument.Ref,
		Amount:        amounts.Required,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render payment QR: %w", err)
	}

	info := &models.PaymentInfo{
		ReservationID:    reservation.ID,
		PaymentType:      paymentType,
		RequiredAmount:   amounts.Required,
		ReservationTotal: reservation.TotalPrice,
		DepositAmount:    amounts.Deposit,
		PaidAmount:       reservation.PaidAmount,
		RemainingAmount:  amounts.Remaining,
		InstrumentRef:    instrument.Ref,
		QRCode:           qrPNG,
	}

	if err := s.Cache.Save(ctx, info); err != nil {
		// Cache misses only cost a recomputation; selection still succeeded.
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to cache payment info for %s: %v", reservation.ID, err))
	}

	s.logger.LogPayment("SELECT", reservation.ID,
		fmt.Sprintf("Payment option %s selected, required amount %0.2f", paymentType, amounts.Required))
	return info, nil
}
