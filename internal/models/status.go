package models

// ReservationStatus is the lifecycle status of a reservation.
type ReservationStatus string

const (
	// StatusDraft is client-only; a draft never reaches the database.
	StatusDraft           ReservationStatus = "draft"
	StatusPending         ReservationStatus = "pending"
	StatusApproved        ReservationStatus = "approved"
	StatusRejected        ReservationStatus = "rejected"
	StatusCancelled       ReservationStatus = "cancelled"
	StatusPaymentSelected ReservationStatus = "payment_selected"
	StatusDepositPaid     ReservationStatus = "deposit_paid"
	StatusFullyPaid       ReservationStatus = "fully_paid"
	StatusCheckedIn       ReservationStatus = "checked-in"
	StatusCheckedOut      ReservationStatus = "checked-out"
)

func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid checks if the reservation status is a known lifecycle status
func (s ReservationStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled,
		StatusPaymentSelected, StatusDepositPaid, StatusFullyPaid,
		StatusCheckedIn, StatusCheckedOut:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCheckedOut:
		return true
	}
	return false
}

// IsPaid reports whether the reservation has reached a paid sub-state.
func (s ReservationStatus) IsPaid() bool {
	return s == StatusDepositPaid || s == StatusFullyPaid
}

// CanBeCancelled checks if a reservation with this status can still be cancelled by staff
func (s ReservationStatus) CanBeCancelled() bool {
	return s == StatusPending
}

// PaymentType selects how much of the total is payable up front.
type PaymentType string

const (
	PaymentFull    PaymentType = "full"
	PaymentDeposit PaymentType = "deposit"
)

func (p PaymentType) IsValid() bool {
	return p == PaymentFull || p == PaymentDeposit
}

func (p PaymentType) String() string {
	return string(p)
}

// PaymentStatus is the status of the payment sub-record. It is only
// meaningful once the reservation has reached at least "approved".
type PaymentStatus string

const (
	PaymentStatusUnpaid      PaymentStatus = "unpaid"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusFullyPaid   PaymentStatus = "fully_paid"
	PaymentStatusFailed      PaymentStatus = "failed"
)

func (p PaymentStatus) IsPaid() bool {
	return p == PaymentStatusDepositPaid || p == PaymentStatusFullyPaid
}
