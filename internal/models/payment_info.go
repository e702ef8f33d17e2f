package models

// PaymentInfo is the derived, display-oriented snapshot of what is payable
// right now for a reservation, produced when the customer picks a payment
// type and cached for the duration of the payment screen.
type PaymentInfo struct {
	ReservationID    string      `json:"reservationId"`
	PaymentType      PaymentType `json:"paymentType"`
	RequiredAmount   float64     `json:"requiredAmount"`
	ReservationTotal float64     `json:"reservationTotal"`
	DepositAmount    float64     `json:"depositAmount"`
	PaidAmount       float64     `json:"paidAmount"`
	RemainingAmount  float64     `json:"remainingAmount"`
	InstrumentRef    string      `json:"instrumentRef"`
	QRCode           []byte      `json:"qrCode,omitempty"` // PNG, base64 on the wire
}

// PaymentInstrument is what the external gateway hands back when a payment
// obligation is created: a stable reference plus the payload the customer
// scans to pay.
type PaymentInstrument struct {
	Ref     string `json:"ref"`
	Payload string `json:"payload"`
}
