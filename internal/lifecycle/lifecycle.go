package lifecycle

import (
	"fmt"

	"ms-reservations/internal/models"
)

// transitions is the full reservation status graph. A status missing from
// the map is terminal. Cancellation is only reachable from pending; paid
// sub-states are selected by payment type, not by observed amount.
var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusDraft:   {models.StatusPending},
	models.StatusPending: {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved: {
		models.StatusPaymentSelected,
	},
	models.StatusPaymentSelected: {
		models.StatusPaymentSelected, // re-selecting a payment type is allowed
		models.StatusDepositPaid,
		models.StatusFullyPaid,
	},
	models.StatusDepositPaid: {models.StatusCheckedIn},
	models.StatusFullyPaid:   {models.StatusCheckedIn},
	models.StatusCheckedIn:   {models.StatusCheckedOut},
}

// IllegalTransitionError reports an attempted transition not present in the
// status graph.
type IllegalTransitionError struct {
	From models.ReservationStatus
	To   models.ReservationStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal reservation transition: %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is a legal move on the graph.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns a typed error when the move
// is not on the graph. The caller persists the new status only on nil error.
func Transition(from, to models.ReservationStatus) error {
	if !CanTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

// NextStatuses returns the statuses reachable in one step from the given
// status. Terminal statuses return an empty slice.
func NextStatuses(from models.ReservationStatus) []models.ReservationStatus {
	next := transitions[from]
	out := make([]models.ReservationStatus, len(next))
	copy(out, next)
	return out
}

// PaidStatusFor maps the chosen payment type to the paid sub-state reached
// when the gateway confirms the payment.
func PaidStatusFor(paymentType models.PaymentType) (models.ReservationStatus, error) {
	switch paymentType {
	case models.PaymentFull:
		return models.StatusFullyPaid, nil
	case models.PaymentDeposit:
		return models.StatusDepositPaid, nil
	}
	return "", fmt.Errorf("unknown payment type: %q", paymentType)
}

// StatusForApproval maps a staff approval action to its target status.
func StatusForApproval(action string) (models.ReservationStatus, error) {
	switch action {
	case models.ApprovalActionApprove:
		return models.StatusApproved, nil
	case models.ApprovalActionReject:
		return models.StatusRejected, nil
	case models.ApprovalActionCancel:
		return models.StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown approval action: %q", action)
}
