package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/retry"
)

// EscrowSvc is the release orchestrator: it moves a Payment from ESCROW
// toward RELEASED by registering a recipient and initiating the transfer,
// compensating the optimistic local advance when the gateway says no.
//
// The webhook processor owns the terminal transition; a successful call here
// leaves the Payout in PROCESSING and the Payment in PROCESSING_RELEASE.
type EscrowSvc struct {
	store Store
	gw    gateway.Client
	pub   Publisher
	// recipient creation is idempotent enough to retry inline; transfers
	// never are.
	recipientRetry retry.Policy
}

func NewEscrowSvc(store Store, gw gateway.Client, pub Publisher, recipientRetry retry.Policy) *EscrowSvc {
	return &EscrowSvc{store: store, gw: gw, pub: pub, recipientRetry: recipientRetry}
}

// Release is invoked by the client confirming completed work.
func (s *EscrowSvc) Release(ctx context.Context, bookingID string) (*domain.Payout, error) {
	// Step 1: optimistic local advance, all inside one row-locked
	// transaction. Preconditions are re-checked under the lock.
	var (
		payout   *domain.Payout
		payment  *domain.Payment
		provider *domain.Provider
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		// Lock order: payment, booking, provider.
		p, err := tx.PaymentByBookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		b, err := tx.BookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		prov, err := tx.ProviderForUpdate(b.ProviderID)
		if err != nil {
			return err
		}
		if !prov.PayoutReady() {
			return ErrPayoutDetailsMissing
		}
		if err := p.Transition(domain.PaymentEvBeginRelease); err != nil {
			return err
		}
		if err := b.Transition(domain.BookingEvBeginRelease); err != nil {
			return err
		}
		po := &domain.Payout{
			PaymentID: p.ID,
			Amount:    p.EscrowAmount,
			Status:    domain.PayoutPending,
			Attempts:  1,
		}
		if err := tx.CreatePayout(po); err != nil {
			return err
		}
		if err := tx.SavePayment(p); err != nil {
			return err
		}
		if err := tx.SaveBooking(b); err != nil {
			return err
		}
		payout, payment, provider = po, p, prov
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 2: resolve the gateway recipient, reusing the provider's cached
	// reference when present.
	recipientRef := provider.RecipientRef
	if recipientRef == "" {
		recipientRef, err = s.createRecipient(ctx, provider)
		if err != nil {
			s.compensate(ctx, bookingID, payout.ID, err.Error())
			return nil, &ReleaseError{
				Stage:          StageRecipient,
				ActionRequired: "provider must complete or correct payout bank details",
				Err:            err,
			}
		}
	}

	// Step 3: initiate the transfer, keyed by the payout id.
	transferRef, err := s.gw.InitiateTransfer(ctx, payout.Amount, recipientRef, payout.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrAmbiguousOutcome) {
			// Funds may already be queued. No compensation, no retry:
			// the reconciler resolves this against the gateway record.
			log.Printf("[escrow] transfer outcome unknown payment=%s payout=%s", payment.ID, payout.ID)
			s.recordFailure(ctx, payout.ID, "ambiguous_outcome")
			return nil, fmt.Errorf("%w: %v", ErrReleasePending, err)
		}
		if errors.Is(err, gateway.ErrInvalidRecipient) {
			// Cached reference went stale gateway-side; drop it so the
			// next attempt re-registers.
			s.invalidateRecipient(ctx, provider.ID)
		}
		s.compensate(ctx, bookingID, payout.ID, err.Error())
		return nil, &ReleaseError{
			Stage:          StageTransfer,
			ActionRequired: "retry later; if the error persists contact support",
			Err:            err,
		}
	}

	// Step 4: transfer queued. Record the reference and wait for the
	// webhook to confirm.
	err = s.store.Atomic(ctx, func(tx Tx) error {
		po, err := tx.PayoutForUpdate(payout.ID)
		if err != nil {
			return err
		}
		if err := po.Transition(domain.PayoutEvTransferInitiated); err != nil {
			return err
		}
		po.TransferRef = transferRef
		po.RecipientRef = recipientRef
		payout = po
		return tx.SavePayout(po)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *EscrowSvc) createRecipient(ctx context.Context, provider *domain.Provider) (string, error) {
	var ref string
	err := s.recipientRetry.Do(ctx, func() error {
		var err error
		ref, err = s.gw.CreateRecipient(ctx, gateway.BankDetails{
			Name:          provider.Name,
			BankName:      provider.BankName,
			BankBranch:    provider.BankBranch,
			AccountName:   provider.AccountName,
			AccountNumber: provider.AccountNumber,
		})
		return err
	}, func(err error) bool {
		// Bad bank details will not get better by retrying.
		return !errors.Is(err, gateway.ErrInvalidBankDetails) && !errors.Is(err, gateway.ErrInvalidRequest)
	})
	if err != nil {
		return "", err
	}
	err = s.store.Atomic(ctx, func(tx Tx) error {
		prov, err := tx.ProviderForUpdate(provider.ID)
		if err != nil {
			return err
		}
		prov.RecipientRef = ref
		return tx.SaveProvider(prov)
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// compensate reverts the optimistic advance: Payout -> FAILED, Payment ->
// ESCROW, Booking -> AWAITING_CONFIRMATION, all in one transaction.
func (s *EscrowSvc) compensate(ctx context.Context, bookingID, payoutID, reason string) {
	err := s.store.Atomic(ctx, func(tx Tx) error {
		po, err := tx.PayoutForUpdate(payoutID)
		if err != nil {
			return err
		}
		p, err := tx.PaymentByBookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		b, err := tx.BookingForUpdate(bookingID)
		if err != nil {
			return err
		}
		if err := po.Transition(domain.PayoutEvTransferFailed); err != nil {
			return err
		}
		po.LastFailure = reason
		if err := p.Transition(domain.PaymentEvReleaseFailed); err != nil {
			return err
		}
		if err := b.Transition(domain.BookingEvReleaseFailed); err != nil {
			return err
		}
		if err := tx.SavePayout(po); err != nil {
			return err
		}
		if err := tx.SavePayment(p); err != nil {
			return err
		}
		return tx.SaveBooking(b)
	})
	if err != nil {
		log.Printf("[escrow] compensation failed booking=%s payout=%s: %v", bookingID, payoutID, err)
	}
}

func (s *EscrowSvc) recordFailure(ctx context.Context, payoutID, reason string) {
	err := s.store.Atomic(ctx, func(tx Tx) error {
		po, err := tx.PayoutForUpdate(payoutID)
		if err != nil {
			return err
		}
		po.LastFailure = reason
		return tx.SavePayout(po)
	})
	if err != nil {
		log.Printf("[escrow] record failure payout=%s: %v", payoutID, err)
	}
}

func (s *EscrowSvc) invalidateRecipient(ctx context.Context, providerID string) {
	err := s.store.Atomic(ctx, func(tx Tx) error {
		prov, err := tx.ProviderForUpdate(providerID)
		if err != nil {
			return err
		}
		prov.RecipientRef = ""
		return tx.SaveProvider(prov)
	})
	if err != nil {
		log.Printf("[escrow] invalidate recipient provider=%s: %v", providerID, err)
	}
}
