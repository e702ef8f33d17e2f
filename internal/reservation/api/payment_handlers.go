package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-reservations/internal/lifecycle"
	"ms-reservations/internal/payment"
	"ms-reservations/internal/payment/gateway"
	"ms-reservations/internal/utils"

	"github.com/go-chi/chi/v5"

	"ms-reservations/internal/models"
)

// SelectPaymentOption converts an approved reservation plus a chosen
// payment type into a payable amount and a QR instrument.
func (h *Handler) SelectPaymentOption(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")

	var req struct {
		PaymentType models.PaymentType `json:"paymentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	info, err := h.ReservationService.SelectPaymentOption(r.Context(), reservationID, req.PaymentType)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SelectPaymentOption %s: %v", reservationID, err))
		if errors.Is(err, payment.ErrInvalidPaymentType) {
			writeError(w, http.StatusBadRequest, "Invalid payment type", err)
			return
		}
		var illegal *lifecycle.IllegalTransitionError
		if errors.As(err, &illegal) {
			writeError(w, http.StatusConflict, "Payment selection not allowed in current status", err)
			return
		}
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			// Recoverable: the portal offers a manual retry.
			writeError(w, http.StatusServiceUnavailable, "Payment gateway unavailable, please retry", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not select payment option", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"paymentInfo": info})
}

// CheckPaymentStatus is the polled payment check. Its response carries the
// same reservation shape as GetReservation so pollers can reuse one decoder.
func (h *Handler) CheckPaymentStatus(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")

	res, err := h.ReservationService.CheckPaymentStatus(r.Context(), reservationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Reservation not found", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": res.ToResponse()})
}

// ConfirmPayment is the settlement callback from the payment bridge.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")

	var req struct {
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.ReservationService.ConfirmPayment(reservationID, req.TransactionID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ConfirmPayment %s: %v", reservationID, err))
		var illegal *lifecycle.IllegalTransitionError
		if errors.As(err, &illegal) {
			writeError(w, http.StatusConflict, "Payment confirmation not allowed in current status", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not confirm payment", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(utils.SuccessResponse("payment confirmed",
		map[string]interface{}{"reservation": res.ToResponse()}))
}
