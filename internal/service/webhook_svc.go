package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/events"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
)

// WebhookSvc applies gateway events to the ledger, exactly once per distinct
// event id. It is the authoritative driver of terminal money states; the
// reconciler reuses Process with synthesized events when a webhook never
// arrives.
//
// Dispatch is state-driven, not order-driven: an event for a payment already
// at or past the target state is acknowledged as a no-op, never re-applied.
type WebhookSvc struct {
	store  Store
	pub    Publisher
	feeBps int64
}

func NewWebhookSvc(store Store, pub Publisher, feeBps int64) *WebhookSvc {
	return &WebhookSvc{store: store, pub: pub, feeBps: feeBps}
}

// Process applies one classified event. Dedup check, state mutation and the
// processed marker all commit in a single transaction; on error nothing is
// recorded and the gateway's redelivery will retry the whole thing.
func (s *WebhookSvc) Process(ctx context.Context, ev *gateway.Event) error {
	var notes []events.StateChanged
	err := s.store.Atomic(ctx, func(tx Tx) error {
		done, err := tx.EventProcessed(ev.ID)
		if err != nil {
			return err
		}
		if done {
			return nil // duplicate delivery; already applied
		}

		notes, err = s.dispatch(tx, ev)
		if err != nil {
			return err
		}

		return tx.MarkEventProcessed(&domain.WebhookEvent{
			ID:          ev.ID,
			EventKey:    ev.Kind.String(),
			PayloadHash: ev.PayloadHash,
			Processed:   true,
			ReceivedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	if s.pub != nil {
		for _, n := range notes {
			_ = s.pub.PublishJSON(ctx, n.Type, n)
		}
	}
	return nil
}

func (s *WebhookSvc) dispatch(tx Tx, ev *gateway.Event) ([]events.StateChanged, error) {
	switch ev.Kind {
	case gateway.EventChargeSucceeded:
		return s.applyChargeSucceeded(tx, ev)
	case gateway.EventChargeFailed:
		return s.applyChargeFailed(tx, ev)
	case gateway.EventTransferSucceeded:
		return s.applyTransferSucceeded(tx, ev)
	case gateway.EventTransferFailed:
		return s.applyTransferFailed(tx, ev)
	default:
		log.Printf("[webhook] ignoring unknown event id=%s", ev.ID)
		return nil, nil
	}
}

func (s *WebhookSvc) applyChargeSucceeded(tx Tx, ev *gateway.Event) ([]events.StateChanged, error) {
	p, err := s.locatePayment(tx, ev)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Status != domain.PaymentPending {
		log.Printf("[webhook] charge.succeeded no-op payment=%s status=%s", p.ID, p.Status)
		return nil, nil
	}

	amount := p.Amount
	if ev.Amount > 0 {
		amount = ev.Amount
	}
	escrow, fee := domain.SplitAmount(amount, s.feeBps)
	p.Amount = amount
	p.EscrowAmount = escrow
	p.PlatformFee = fee
	now := time.Now().UTC()
	p.PaidAt = &now
	if err := p.Transition(domain.PaymentEvChargeSucceeded); err != nil {
		return nil, err
	}
	if err := tx.SavePayment(p); err != nil {
		return nil, err
	}

	b, err := tx.BookingForUpdate(p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := b.Transition(domain.BookingEvPaymentCaptured); err != nil {
		return nil, err
	}
	if err := tx.SaveBooking(b); err != nil {
		return nil, err
	}
	return []events.StateChanged{{
		Type: events.RKPaymentEscrowed, BookingID: b.ID, PaymentID: p.ID,
		Amount: p.Amount, Currency: p.Currency, RecipientRole: "provider",
	}}, nil
}

func (s *WebhookSvc) applyChargeFailed(tx Tx, ev *gateway.Event) ([]events.StateChanged, error) {
	p, err := s.locatePayment(tx, ev)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Status != domain.PaymentPending {
		log.Printf("[webhook] charge.failed no-op payment=%s status=%s", p.ID, p.Status)
		return nil, nil
	}
	if err := p.Transition(domain.PaymentEvChargeFailed); err != nil {
		return nil, err
	}
	if err := tx.SavePayment(p); err != nil {
		return nil, err
	}
	return []events.StateChanged{{
		Type: events.RKPaymentFailed, BookingID: p.BookingID, PaymentID: p.ID,
		RecipientRole: "client", Reason: ev.FailureCode,
	}}, nil
}

func (s *WebhookSvc) applyTransferSucceeded(tx Tx, ev *gateway.Event) ([]events.StateChanged, error) {
	po, err := s.locatePayout(tx, ev)
	if err != nil || po == nil {
		return nil, err
	}
	// Tolerate the webhook racing ahead of our own transfer bookkeeping:
	// the gateway can confirm before step 4 of the release recorded
	// PROCESSING locally.
	if po.Status == domain.PayoutPending {
		if err := po.Transition(domain.PayoutEvTransferInitiated); err != nil {
			return nil, err
		}
	}
	if po.Status != domain.PayoutProcessing {
		log.Printf("[webhook] transfer.succeeded no-op payout=%s status=%s", po.ID, po.Status)
		return nil, nil
	}
	if po.TransferRef == "" {
		po.TransferRef = ev.TransferRef
	}
	if err := po.Transition(domain.PayoutEvTransferDone); err != nil {
		return nil, err
	}
	if err := tx.SavePayout(po); err != nil {
		return nil, err
	}

	p, err := tx.PaymentForUpdate(po.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := p.Transition(domain.PaymentEvReleaseDone); err != nil {
		return nil, err
	}
	if err := tx.SavePayment(p); err != nil {
		return nil, err
	}
	b, err := tx.BookingForUpdate(p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := b.Transition(domain.BookingEvReleaseDone); err != nil {
		return nil, err
	}
	if err := tx.SaveBooking(b); err != nil {
		return nil, err
	}
	return []events.StateChanged{{
		Type: events.RKPaymentReleased, BookingID: b.ID, PaymentID: p.ID, PayoutID: po.ID,
		Amount: po.Amount, Currency: p.Currency, RecipientRole: "provider",
	}}, nil
}

func (s *WebhookSvc) applyTransferFailed(tx Tx, ev *gateway.Event) ([]events.StateChanged, error) {
	po, err := s.locatePayout(tx, ev)
	if err != nil || po == nil {
		return nil, err
	}
	if po.Status != domain.PayoutPending && po.Status != domain.PayoutProcessing {
		log.Printf("[webhook] transfer.failed no-op payout=%s status=%s", po.ID, po.Status)
		return nil, nil
	}
	if err := po.Transition(domain.PayoutEvTransferFailed); err != nil {
		return nil, err
	}
	po.LastFailure = ev.FailureCode
	if err := tx.SavePayout(po); err != nil {
		return nil, err
	}

	// Compensating pair: payment back to ESCROW, booking back to
	// AWAITING_CONFIRMATION so the client can try again.
	p, err := tx.PaymentForUpdate(po.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := p.Transition(domain.PaymentEvReleaseFailed); err != nil {
		return nil, err
	}
	if err := tx.SavePayment(p); err != nil {
		return nil, err
	}
	b, err := tx.BookingForUpdate(p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := b.Transition(domain.BookingEvReleaseFailed); err != nil {
		return nil, err
	}
	if err := tx.SaveBooking(b); err != nil {
		return nil, err
	}
	return []events.StateChanged{{
		Type: events.RKPayoutFailed, BookingID: b.ID, PaymentID: p.ID, PayoutID: po.ID,
		RecipientRole: "provider", Reason: ev.FailureCode,
	}}, nil
}

// locatePayment resolves the payment a charge event refers to. The primary
// key is the gateway's charge reference; when that turns up nothing and the
// charge metadata echoed back our booking id, we fall back to the booking and
// backfill the reference. That recovers payments whose charge call succeeded
// but whose reference never got persisted. nil,nil means the event is for
// nothing we track and should be acknowledged.
func (s *WebhookSvc) locatePayment(tx Tx, ev *gateway.Event) (*domain.Payment, error) {
	p, err := tx.PaymentByGatewayRefForUpdate(ev.ChargeRef)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if ev.BookingRef != "" {
		p, err := tx.PaymentByBookingForUpdate(ev.BookingRef)
		if err == nil {
			switch p.GatewayRef {
			case "":
				p.GatewayRef = ev.ChargeRef
				return p, nil
			case ev.ChargeRef:
				return p, nil
			}
			// A different charge already owns this payment.
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	log.Printf("[webhook] charge event for unknown reference %s, acknowledging", ev.ChargeRef)
	return nil, nil
}

// locatePayout resolves the payout a transfer event refers to, preferring
// our own payout id echoed in the gateway reference field. nil,nil means the
// event is for nothing we track and should be acknowledged.
func (s *WebhookSvc) locatePayout(tx Tx, ev *gateway.Event) (*domain.Payout, error) {
	if ev.PayoutRef != "" {
		po, err := tx.PayoutForUpdate(ev.PayoutRef)
		if err == nil {
			return po, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if ev.TransferRef != "" {
		po, err := tx.PayoutByTransferRefForUpdate(ev.TransferRef)
		if err == nil {
			return po, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	log.Printf("[webhook] transfer event with no matching payout (transfer=%s), acknowledging", ev.TransferRef)
	return nil, nil
}
