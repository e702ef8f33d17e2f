package gateway

import (
	"context"
	"errors"

	"ms-reservations/internal/models"
)

// ErrGatewayUnavailable marks a transport-level failure talking to the
// payment gateway. Callers surface it with a manual retry, never by falling
// back to stale payment data.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway is the opaque payment-gateway contract: create a payment
// obligation for an amount and ask whether it has been settled. Which paid
// sub-state a settled payment maps to is the caller's decision, driven by
// the chosen payment type, never by the amount observed here.
type Gateway interface {
	// CreateInstrument returns a payment instrument for the required
	// amount. Calling it again for the same reservation must not create a
	// duplicate obligation; an existing live instrument is returned instead.
	CreateInstrument(ctx context.Context, reservation *models.Reservation, amount float64) (*models.PaymentInstrument, error)

	// CheckPaid reports whether the reservation's instrument has been
	// settled. "Not paid yet" is a normal false result, not an error.
	CheckPaid(ctx context.Context, reservation *models.Reservation) (bool, error)
}

// MethodRecorder is implemented by gateways that track the customer's
// chosen payment method on the bridge. Recording is best-effort: a failure
// never blocks the payment selection itself.
type MethodRecorder interface {
	UpdatePaymentMethod(ctx context.Context, reservationID, method string) error
}
