package domain

import "time"

type BookingStatus string

const (
	BookingPending              BookingStatus = "PENDING"
	BookingConfirmed            BookingStatus = "CONFIRMED"
	BookingPendingExecution     BookingStatus = "PENDING_EXECUTION"
	BookingInProgress           BookingStatus = "IN_PROGRESS"
	BookingAwaitingConfirmation BookingStatus = "AWAITING_CONFIRMATION"
	BookingPaymentProcessing    BookingStatus = "PAYMENT_PROCESSING"
	BookingCompleted            BookingStatus = "COMPLETED"
	BookingCancelled            BookingStatus = "CANCELLED"
	BookingDisputed             BookingStatus = "DISPUTED"
)

// Booking is a client's request for a provider's service. Money state lives
// on the 1:1 Payment row; Booking tracks the work side of the lifecycle.
type Booking struct {
	ID          string        `gorm:"primaryKey"`
	ClientID    string        `gorm:"index"`
	ProviderID  string        `gorm:"index"`
	ServiceID   string        `gorm:"index"`
	ScheduledAt time.Time     `gorm:"index"`
	DurationMin int
	TotalAmount int64 // smallest currency unit
	Currency    string
	Status      BookingStatus `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the booking can never move again.
func (b *Booking) Terminal() bool {
	switch b.Status {
	case BookingCompleted, BookingCancelled, BookingDisputed:
		return true
	}
	return false
}
