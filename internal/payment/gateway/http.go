package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
)

// HTTPGateway talks to an external QR payment bridge over plain HTTP.
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

func NewHTTPGateway(client *http.Client, baseURL string, log *logger.Logger) *HTTPGateway {
	return &HTTPGateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

type instrumentRequest struct {
	ReservationID string  `json:"reservation_id"`
	Amount        float64 `json:"amount"`
}

type instrumentResponse struct {
	Ref     string `json:"ref"`
	Payload string `json:"payload"`
	Status  string `json:"status"`
}

// CreateInstrument asks the bridge for a payment instrument. The bridge is
// idempotent per reservation id, so a retry returns the existing instrument.
func (g *HTTPGateway) CreateInstrument(ctx context.Context, reservation *models.Reservation, amount float64) (*models.PaymentInstrument, error) {
	body, err := json.Marshal(instrumentRequest{ReservationID: reservation.ID, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to encode instrument request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/instruments", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Error("GATEWAY", fmt.Sprintf("Instrument request failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer closeBody(resp.Body, g.log)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment gateway returned status: %d", resp.StatusCode)
	}

	var instrument instrumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&instrument); err != nil {
		return nil, fmt.Errorf("failed to decode instrument response: %w", err)
	}

	return &models.PaymentInstrument{Ref: instrument.Ref, Payload: instrument.Payload}, nil
}

// CheckPaid polls the bridge for the instrument's settlement state.
func (g *HTTPGateway) CheckPaid(ctx context.Context, reservation *models.Reservation) (bool, error) {
	if reservation.InstrumentRef == "" {
		return false, nil
	}

	url := fmt.Sprintf("%s/v1/instruments/%s", g.baseURL, reservation.InstrumentRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer closeBody(resp.Body, g.log)

	if resp.StatusCode == http.StatusNotFound {
		// No settlement recorded yet; an expected steady state while polling.
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment gateway returned status: %d", resp.StatusCode)
	}

	var instrument instrumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&instrument); err != nil {
		return false, fmt.Errorf("failed to decode status response: %w", err)
	}

	return instrument.Status == "settled", nil
}

// UpdatePaymentMethod records the customer's chosen payment method on the
// bridge. The bridge historically rejects PATCH behind some proxies, so the
// call goes through the method-fallback transport policy.
func (g *HTTPGateway) UpdatePaymentMethod(ctx context.Context, reservationID, method string) error {
	body, err := json.Marshal(map[string]string{"payment_method": method})
	if err != nil {
		return fmt.Errorf("failed to encode payment method update: %w", err)
	}

	url := fmt.Sprintf("%s/v1/instruments/%s/method", g.baseURL, reservationID)
	resp, err := g.doWithMethodFallback(ctx, http.MethodPatch, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body, g.log)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment gateway returned status: %d", resp.StatusCode)
	}
	return nil
}

func closeBody(body io.ReadCloser, log *logger.Logger) {
	if err := body.Close(); err != nil {
		log.Error("GATEWAY", fmt.Sprintf("Failed to close response body: %v", err))
	}
}
