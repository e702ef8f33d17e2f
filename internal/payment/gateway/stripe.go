package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway fulfils the gateway contract with Stripe PaymentIntents.
// The intent's client secret doubles as the QR payload.
type StripeGateway struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

// NewStripeGateway creates a Stripe-backed payment gateway
func NewStripeGateway(currency string, log *logger.Logger) (*StripeGateway, error) {
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(stripeKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	return &StripeGateway{
		client:   sc,
		currency: currency,
		log:      log,
	}, nil
}

// CreateInstrument creates a payment intent for the payable amount, or
// reuses the intent already attached to the reservation when it is still
// live. Retrying after a "refresh QR" therefore never duplicates the
// payment obligation.
func (g *StripeGateway) CreateInstrument(ctx context.Context, reservation *models.Reservation, amount float64) (*models.PaymentInstrument, error) {
	if reservation.InstrumentRef != "" {
		intent, err := g.client.PaymentIntents.Get(reservation.InstrumentRef, nil)
		if err != nil {
			g.log.Warn("STRIPE", fmt.Sprintf("Failed to retrieve existing payment intent %s: %v", reservation.InstrumentRef, err))
		} else if intent.Status != stripe.PaymentIntentStatusCanceled && intent.Status != stripe.PaymentIntentStatusSucceeded {
			g.log.Info("STRIPE", fmt.Sprintf("Reusing payment intent %s with status %s", intent.ID, intent.Status))
			return &models.PaymentInstrument{Ref: intent.ID, Payload: intent.ClientSecret}, nil
		}
	}

	// Stripe amounts are in minor units
	amountInCents := int64(amount * 100)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("reservation_id", reservation.ID)

	intent, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent for reservation %s: %v", reservation.ID, err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	g.log.LogPayment("INSTRUMENT", reservation.ID, fmt.Sprintf("Created payment intent %s (%s %0.2f)", intent.ID, g.currency, amount))
	return &models.PaymentInstrument{Ref: intent.ID, Payload: intent.ClientSecret}, nil
}

// CheckPaid reports whether the reservation's payment intent has succeeded.
func (g *StripeGateway) CheckPaid(ctx context.Context, reservation *models.Reservation) (bool, error) {
	if reservation.InstrumentRef == "" {
		return false, nil
	}

	intent, err := g.client.PaymentIntents.Get(reservation.InstrumentRef, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}
