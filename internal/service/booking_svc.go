package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/events"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
)

// BookingSvc drives the work side of the lifecycle plus payment initiation.
// Terminal money states are never set here; those belong to the webhook
// processor and reconciler.
type BookingSvc struct {
	store Store
	gw    gateway.Client
	pub   Publisher
}

func NewBookingSvc(store Store, gw gateway.Client, pub Publisher) *BookingSvc {
	return &BookingSvc{store: store, gw: gw, pub: pub}
}

type CreateBookingInput struct {
	ClientID    string
	ProviderID  string
	ServiceID   string
	ScheduledAt time.Time
	DurationMin int
	Amount      int64
	Currency    string
}

func (s *BookingSvc) Create(ctx context.Context, in CreateBookingInput) (*domain.Booking, error) {
	if in.Amount <= 0 || in.ClientID == "" || in.ProviderID == "" {
		return nil, fmt.Errorf("create booking: %w", gateway.ErrInvalidRequest)
	}
	b := &domain.Booking{
		ClientID:    in.ClientID,
		ProviderID:  in.ProviderID,
		ServiceID:   in.ServiceID,
		ScheduledAt: in.ScheduledAt.UTC(),
		DurationMin: in.DurationMin,
		TotalAmount: in.Amount,
		Currency:    in.Currency,
		Status:      domain.BookingPending,
	}
	err := s.store.Atomic(ctx, func(tx Tx) error {
		return tx.CreateBooking(b)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.RKBookingCreated, events.StateChanged{
		Type: events.RKBookingCreated, BookingID: b.ID, RecipientRole: "provider",
	})
	return b, nil
}

// Accept is the provider accepting the request: PENDING -> CONFIRMED.
func (s *BookingSvc) Accept(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := s.applyBookingEvent(ctx, bookingID, domain.BookingEvAccept)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.RKBookingAccepted, events.StateChanged{
		Type: events.RKBookingAccepted, BookingID: b.ID, RecipientRole: "client",
	})
	return b, nil
}

// StartWork: PENDING_EXECUTION -> IN_PROGRESS.
func (s *BookingSvc) StartWork(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.applyBookingEvent(ctx, bookingID, domain.BookingEvStartWork)
}

// CompleteWork is the provider marking the job done: IN_PROGRESS ->
// AWAITING_CONFIRMATION. Funds stay in escrow until the client confirms.
func (s *BookingSvc) CompleteWork(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.applyBookingEvent(ctx, bookingID, domain.BookingEvCompleteWork)
}

// Cancel is allowed only while the payment is PENDING or absent. Once money
// is in escrow the dispute path is the only way out.
func (s *BookingSvc) Cancel(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var b *domain.Booking
	err := s.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.PaymentByBookingForUpdate(bookingID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		b, err = tx.BookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		if p != nil && p.Status != domain.PaymentPending && p.Status != domain.PaymentFailed {
			return ErrCancellationLocked
		}
		if err := b.Transition(domain.BookingEvCancel); err != nil {
			return err
		}
		return tx.SaveBooking(b)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.RKBookingCancelled, events.StateChanged{
		Type: events.RKBookingCancelled, BookingID: b.ID, RecipientRole: "provider",
	})
	return b, nil
}

// Dispute: AWAITING_CONFIRMATION -> DISPUTED. The payment stays in ESCROW
// until an operator resolves the dispute (refund or manual release).
func (s *BookingSvc) Dispute(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := s.applyBookingEvent(ctx, bookingID, domain.BookingEvDispute)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.RKBookingDisputed, events.StateChanged{
		Type: events.RKBookingDisputed, BookingID: b.ID, RecipientRole: "provider",
	})
	return b, nil
}

type PayInput struct {
	BookingID string
	CardToken string
}

type PayResult struct {
	Payment      *domain.Payment
	AuthorizeURI string
}

// Pay creates the Payment row for a confirmed booking and initiates the
// gateway charge. The charge reference becomes the payment's immutable
// gateway correlation key; the ESCROW transition itself waits for the
// charge.succeeded webhook.
func (s *BookingSvc) Pay(ctx context.Context, in PayInput) (*PayResult, error) {
	var (
		b *domain.Booking
		p *domain.Payment
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		existing, err := tx.PaymentByBookingForUpdate(in.BookingID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		b, err = tx.BookingForUpdate(in.BookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingConfirmed {
			return &domain.TransitionError{Entity: "booking", From: string(b.Status), Event: "pay"}
		}
		if existing != nil && existing.Status != domain.PaymentFailed {
			return fmt.Errorf("booking %s already has a payment: %w", in.BookingID, gateway.ErrInvalidRequest)
		}
		p = &domain.Payment{
			BookingID: b.ID,
			Amount:    b.TotalAmount,
			Currency:  b.Currency,
			Status:    domain.PaymentPending,
		}
		return tx.CreatePayment(p)
	})
	if err != nil {
		return nil, err
	}

	res, err := s.gw.InitiateCharge(ctx, gateway.ChargeInput{
		Amount:    p.Amount,
		Currency:  p.Currency,
		CardToken: in.CardToken,
		Reference: b.ID,
	})
	if err != nil {
		// No charge exists; the payment row is dead on arrival.
		if errors.Is(err, gateway.ErrAmbiguousOutcome) {
			// Charge may exist gateway-side; leave PENDING for the
			// reconciler to resolve once the staleness window passes.
			return nil, err
		}
		_ = s.store.Atomic(ctx, func(tx Tx) error {
			pp, lerr := tx.PaymentForUpdate(p.ID)
			if lerr != nil {
				return lerr
			}
			if terr := pp.Transition(domain.PaymentEvChargeFailed); terr != nil {
				return terr
			}
			return tx.SavePayment(pp)
		})
		return nil, err
	}

	err = s.store.Atomic(ctx, func(tx Tx) error {
		pp, err := tx.PaymentForUpdate(p.ID)
		if err != nil {
			return err
		}
		pp.GatewayRef = res.ChargeRef
		p = pp
		return tx.SavePayment(pp)
	})
	if err != nil {
		return nil, err
	}
	return &PayResult{Payment: p, AuthorizeURI: res.AuthorizeURI}, nil
}

// Refund moves an escrowed payment back to the client (admin action, e.g.
// dispute resolution). ESCROW -> REFUNDED.
func (s *BookingSvc) Refund(ctx context.Context, bookingID string) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.store.Atomic(ctx, func(tx Tx) error {
		var err error
		p, err = tx.PaymentByBookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		if err := p.Transition(domain.PaymentEvRefund); err != nil {
			return err
		}
		return tx.SavePayment(p)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.RKPaymentRefunded, events.StateChanged{
		Type: events.RKPaymentRefunded, BookingID: bookingID, PaymentID: p.ID,
		Amount: p.Amount, Currency: p.Currency, RecipientRole: "client",
	})
	return p, nil
}

func (s *BookingSvc) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.store.BookingByID(ctx, id)
}

func (s *BookingSvc) PaymentFor(ctx context.Context, bookingID string) (*domain.Payment, error) {
	return s.store.PaymentByBookingID(ctx, bookingID)
}

// PayoutsFor lists the release attempts recorded for a payment, oldest
// first.
func (s *BookingSvc) PayoutsFor(ctx context.Context, paymentID string) ([]domain.Payout, error) {
	return s.store.PayoutsByPaymentID(ctx, paymentID)
}

func (s *BookingSvc) applyBookingEvent(ctx context.Context, id string, ev domain.BookingEvent) (*domain.Booking, error) {
	var b *domain.Booking
	err := s.store.Atomic(ctx, func(tx Tx) error {
		var err error
		b, err = tx.BookingForUpdate(id)
		if err != nil {
			return err
		}
		if err := b.Transition(ev); err != nil {
			return err
		}
		return tx.SaveBooking(b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingSvc) emit(ctx context.Context, key string, ev events.StateChanged) {
	if s.pub == nil {
		return
	}
	_ = s.pub.PublishJSON(ctx, key, ev)
}
