package domain

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
)

// Payout is one attempt to move escrowed funds to the provider. It is
// created only while its Payment is in PROCESSING_RELEASE, and its own id is
// the idempotency reference handed to the gateway transfer call.
type Payout struct {
	ID           string       `gorm:"primaryKey"`
	PaymentID    string       `gorm:"index"`
	Amount       int64
	TransferRef  string       `gorm:"index"`
	RecipientRef string
	Status       PayoutStatus `gorm:"index"`
	Attempts     int
	LastFailure  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
