package service

import (
	"context"
	"errors"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
)

// ErrNotFound is returned by store lookups with no matching row.
var ErrNotFound = errors.New("not_found")

// Store is the persistence contract the services run on. Atomic runs fn in
// one database transaction; every read inside it takes a row lock, so a
// logical transition for a given Payment/Booking pair is serialized across
// concurrent requests and webhook deliveries.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	BookingByID(ctx context.Context, id string) (*domain.Booking, error)
	PaymentByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)
	PayoutsByPaymentID(ctx context.Context, paymentID string) ([]domain.Payout, error)
	ProviderByID(ctx context.Context, id string) (*domain.Provider, error)

	// StalePayments lists unflagged payments sitting in one of the given
	// transient statuses since before the cutoff.
	StalePayments(ctx context.Context, statuses []domain.PaymentStatus, before time.Time, limit int) ([]domain.Payment, error)
}

// Tx is the row-locked view inside Atomic. All ForUpdate reads hold their
// lock until the transaction ends.
//
// Lock order invariant: every transaction acquires row locks in Payout,
// Payment, Booking, Provider order. Concurrent transitions for the same
// booking then queue instead of deadlocking.
type Tx interface {
	BookingForUpdate(id string) (*domain.Booking, error)
	PaymentForUpdate(id string) (*domain.Payment, error)
	PaymentByBookingForUpdate(bookingID string) (*domain.Payment, error)
	PaymentByGatewayRefForUpdate(ref string) (*domain.Payment, error)
	PayoutForUpdate(id string) (*domain.Payout, error)
	PayoutByTransferRefForUpdate(ref string) (*domain.Payout, error)
	LatestPayoutForUpdate(paymentID string) (*domain.Payout, error)
	ProviderForUpdate(id string) (*domain.Provider, error)

	CreateBooking(b *domain.Booking) error
	CreatePayment(p *domain.Payment) error
	CreatePayout(p *domain.Payout) error

	SaveBooking(b *domain.Booking) error
	SavePayment(p *domain.Payment) error
	SavePayout(p *domain.Payout) error
	SaveProvider(p *domain.Provider) error

	// EventProcessed and MarkEventProcessed implement webhook dedup. The
	// unique constraint on the event id backs MarkEventProcessed, and both
	// run inside the same transaction as the mutation the event drives.
	EventProcessed(eventID string) (bool, error)
	MarkEventProcessed(ev *domain.WebhookEvent) error
}

// Publisher is the notification trigger sink (pkg/mq.Publisher in prod).
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}
