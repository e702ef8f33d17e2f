package apiclient

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

// Client is the portal's typed wrapper around the reservation service API.
// Responses pass through the normalization boundary before anything else
// touches them.
type Client struct {
	baseURL string
	client  *http.Client
	token   string
	logger  *logger.Logger
}

func NewClient(baseURL string, httpClient *http.Client, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		token:   token,
		logger:  logger.NewLogger(),
	}
}

// APIError carries the status code and body of a non-2xx response so
// callers can distinguish validation failures from conflicts.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reservation service returned status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("PORTAL", fmt.Sprintf("Reservation service error: %v", err))
		return nil, fmt.Errorf("reservation service error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("PORTAL", fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}

// CreateReservation submits the draft-derived request and returns the
// pending reservation.
func (c *Client) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/v1/reservations", req)
	if err != nil {
		return nil, err
	}
	res, err := decodeReservationEnvelope(data)
	if err != nil {
		return nil, err
	}
	c.logger.Info("PORTAL", fmt.Sprintf("Reservation created: %s", res.ID))
	return res, nil
}

func (c *Client) GetReservationByID(ctx context.Context, reservationID string) (*models.Reservation, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/reservations/"+reservationID, nil)
	if err != nil {
		return nil, err
	}
	return decodeReservationEnvelope(data)
}

// ApproveReservation runs a staff action against a pending reservation.
func (c *Client) ApproveReservation(ctx context.Context, reservationID string, action, reason string) (*models.Reservation, error) {
	body := models.ApprovalRequest{Action: action, Reason: reason}
	data, err := c.do(ctx, http.MethodPost, "/api/v1/reservations/"+reservationID+"/approval", body)
	if err != nil {
		return nil, err
	}
	return decodeReservationEnvelope(data)
}

// SelectPaymentOption commits the payment type choice and returns the
// amounts plus the QR instrument for the payment screen.
func (c *Client) SelectPaymentOption(ctx context.Context, reservationID string, paymentType models.PaymentType) (*models.PaymentInfo, error) {
	body := map[string]models.PaymentType{"paymentType": paymentType}
	data, err := c.do(ctx, http.MethodPost, "/api/v1/reservations/"+reservationID+"/payment-option", body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		PaymentInfo *models.PaymentInfo `json:"paymentInfo"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode payment info: %w", err)
	}
	if envelope.PaymentInfo == nil {
		return nil, fmt.Errorf("response has no payment info")
	}
	return envelope.PaymentInfo, nil
}

// CheckPaymentStatus asks the service to re-check the gateway and returns
// the current reservation state. The response shares GetReservationByID's
// shape so both calls go through one decoder.
func (c *Client) CheckPaymentStatus(ctx context.Context, reservationID string) (*models.Reservation, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/reservations/"+reservationID+"/payment-status", nil)
	if err != nil {
		return nil, err
	}
	return decodeReservationEnvelope(data)
}
