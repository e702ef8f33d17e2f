package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-reservations/internal/lifecycle"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	ReservationService *reservation.ReservationService
	Logger             *logger.Logger
}

// writeError emits the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(utils.ErrorResponse(message, detail))
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.ReservationService.PlaceReservation(req)
	if err != nil {
		if errors.Is(err, reservation.ErrNoRooms) || errors.Is(err, reservation.ErrInvalidDates) {
			writeError(w, http.StatusBadRequest, "Invalid reservation", err)
			return
		}
		if errors.Is(err, reservation.ErrRoomsHeld) {
			writeError(w, http.StatusConflict, "Rooms unavailable", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not place reservation", err)
		return
	}

	resp := map[string]interface{}{
		"reservation": created.ToResponse(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	res, err := h.ReservationService.GetReservation(reservationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Reservation not found", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": res.ToResponse()})
}

func (h *Handler) GetMyReservations(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	reservations, err := h.ReservationService.GetReservationsByCustomer(customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list reservations", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservations": reservations})
}

// ApproveReservation executes the staff approval action:
// approve | reject | cancel, with a mandatory reason for the latter two.
func (h *Handler) ApproveReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")

	var req models.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.ReservationService.ApplyApproval(reservationID, req.Action, req.Reason)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ApproveReservation %s: %v", reservationID, err))
		var illegal *lifecycle.IllegalTransitionError
		if errors.As(err, &illegal) {
			writeError(w, http.StatusConflict, "Approval not allowed in current status", err)
			return
		}
		if errors.Is(err, reservation.ErrReasonRequired) {
			writeError(w, http.StatusBadRequest, "Reason required", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not apply approval", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": res.ToResponse()})
}

func (h *Handler) ListPendingReservations(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "hotelId")
	reservations, err := h.ReservationService.GetPendingReservations(hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list pending reservations", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservations": reservations})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.ReservationService.CheckIn)
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.ReservationService.CheckOut)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, action func(string) (*models.Reservation, error)) {
	reservationID := chi.URLParam(r, "reservationId")

	res, err := action(reservationID)
	if err != nil {
		var illegal *lifecycle.IllegalTransitionError
		if errors.As(err, &illegal) {
			writeError(w, http.StatusConflict, "Action not allowed in current status", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not update reservation", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": res.ToResponse()})
}
