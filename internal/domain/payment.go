package domain

import "time"

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentEscrow            PaymentStatus = "ESCROW"
	PaymentProcessingRelease PaymentStatus = "PROCESSING_RELEASE"
	PaymentReleased          PaymentStatus = "RELEASED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentFailed            PaymentStatus = "FAILED"
)

// Payment is the money side of exactly one Booking. Amounts are in the
// smallest currency unit. GatewayRef is the charge reference at the payment
// gateway; it is immutable once set and is the correlation key for every
// gateway-originated event about this payment.
type Payment struct {
	ID           string        `gorm:"primaryKey"`
	BookingID    string        `gorm:"uniqueIndex"`
	Amount       int64
	EscrowAmount int64
	PlatformFee  int64
	Currency     string
	GatewayRef   string        `gorm:"uniqueIndex"`
	Status       PaymentStatus `gorm:"index"`
	PaidAt       *time.Time
	// ReviewFlagged is set by the reconciler when automatic recovery has
	// been exhausted; flagged payments are skipped until an operator clears
	// the flag.
	ReviewFlagged     bool `gorm:"index"`
	ReconcileAttempts int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Payment) Terminal() bool {
	switch p.Status {
	case PaymentReleased, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// SplitAmount computes the platform fee and escrow share of amount at the
// given fee rate in basis points. Fee truncates toward zero so that
// escrow + fee == amount exactly.
func SplitAmount(amount int64, feeBps int64) (escrow, fee int64) {
	fee = amount * feeBps / 10000
	return amount - fee, fee
}
