package events

import (
	"encoding/json"
	"fmt"
)

// Routing keys on the marketplace topic exchange.
const (
	RKBookingCreated   = "booking.created"
	RKBookingAccepted  = "booking.accepted"
	RKBookingCancelled = "booking.cancelled"
	RKBookingDisputed  = "booking.disputed"

	RKPaymentEscrowed = "payment.escrowed"
	RKPaymentFailed   = "payment.failed"
	RKPaymentReleased = "payment.released"
	RKPaymentRefunded = "payment.refunded"
	RKPayoutFailed    = "payout.failed"
)

// StateChanged is the notification trigger emitted on user-visible
// transitions. Delivery and formatting are the notify worker's problem.
type StateChanged struct {
	Type          string `json:"type"`
	BookingID     string `json:"booking_id"`
	PaymentID     string `json:"payment_id,omitempty"`
	PayoutID      string `json:"payout_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	RecipientRole string `json:"recipient_role"` // "client" | "provider"
	Reason        string `json:"reason,omitempty"`
}

func Unmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
