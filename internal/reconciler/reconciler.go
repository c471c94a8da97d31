// Package reconciler is the backstop for lost or delayed gateway webhooks:
// a periodic sweep that re-queries the gateway for payments stuck in a
// transient state and replays the webhook dispatch with the query result.
// It never initiates new transfers.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/retry"
)

type Reconciler struct {
	store       service.Store
	gw          gateway.Client
	webhooks    *service.WebhookSvc
	window      time.Duration // staleness before a transient state is suspect
	interval    time.Duration
	maxAttempts int // recovery attempts before flagging for manual review
	// QueryRetry governs read-only gateway status queries.
	QueryRetry  retry.Policy
	batch       int
}

func New(store service.Store, gw gateway.Client, webhooks *service.WebhookSvc, window, interval time.Duration, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Reconciler{
		store:       store,
		gw:          gw,
		webhooks:    webhooks,
		window:      window,
		interval:    interval,
		maxAttempts: maxAttempts,
		QueryRetry:  retry.Default,
		batch:       50,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Sweep(ctx); err != nil {
				log.Printf("[reconciler] sweep error: %v", err)
			}
		}
	}
}

// Sweep runs one pass over stale transient payments.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.window)
	stale, err := r.store.StalePayments(ctx,
		[]domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessingRelease},
		cutoff, r.batch)
	if err != nil {
		return fmt.Errorf("list stale payments: %w", err)
	}
	for i := range stale {
		p := &stale[i]
		if err := r.recover(ctx, p); err != nil {
			log.Printf("[reconciler] payment=%s status=%s: %v", p.ID, p.Status, err)
			r.noteAttempt(ctx, p.ID)
		}
	}
	return nil
}

func (r *Reconciler) recover(ctx context.Context, p *domain.Payment) error {
	switch p.Status {
	case domain.PaymentPending:
		return r.recoverCharge(ctx, p)
	case domain.PaymentProcessingRelease:
		return r.recoverTransfer(ctx, p)
	default:
		return nil
	}
}

func (r *Reconciler) recoverCharge(ctx context.Context, p *domain.Payment) error {
	// A pending payment with no charge reference never reached the gateway.
	if p.GatewayRef == "" {
		return r.failPendingPayment(ctx, p.ID)
	}
	st, err := r.query(ctx, func(ctx context.Context) (*gateway.StatusResult, error) {
		return r.gw.QueryCharge(ctx, p.GatewayRef)
	})
	if err != nil {
		return err
	}
	switch st.Status {
	case gateway.StatusSuccessful:
		return r.webhooks.Process(ctx, &gateway.Event{
			ID:        reconEventID(p.ID, "charge-succeeded"),
			Kind:      gateway.EventChargeSucceeded,
			ChargeRef: p.GatewayRef,
			Amount:    st.Amount,
		})
	case gateway.StatusFailed, gateway.StatusNotFound:
		// No record at the gateway means the charge never existed; the
		// payment is a dead end either way.
		return r.webhooks.Process(ctx, &gateway.Event{
			ID:          reconEventID(p.ID, "charge-failed"),
			Kind:        gateway.EventChargeFailed,
			ChargeRef:   p.GatewayRef,
			FailureCode: st.FailureCode,
		})
	default:
		return nil // still pending gateway-side; leave it alone
	}
}

// failPendingPayment handles the no-gateway-ref case where webhook dispatch
// could never correlate the payment: fail it by id instead.
func (r *Reconciler) failPendingPayment(ctx context.Context, paymentID string) error {
	return r.store.Atomic(ctx, func(tx service.Tx) error {
		pp, err := tx.PaymentForUpdate(paymentID)
		if err != nil {
			return err
		}
		if pp.Status != domain.PaymentPending {
			return nil
		}
		if err := pp.Transition(domain.PaymentEvChargeFailed); err != nil {
			return err
		}
		return tx.SavePayment(pp)
	})
}

func (r *Reconciler) recoverTransfer(ctx context.Context, p *domain.Payment) error {
	var po *domain.Payout
	err := r.store.Atomic(ctx, func(tx service.Tx) error {
		var err error
		po, err = tx.LatestPayoutForUpdate(p.ID)
		return err
	})
	if errors.Is(err, service.ErrNotFound) {
		// PROCESSING_RELEASE without any payout should be impossible;
		// flag rather than guess.
		return r.flag(ctx, p.ID, "processing_release_without_payout")
	}
	if err != nil {
		return err
	}

	if po.TransferRef == "" {
		// The transfer initiation outcome was ambiguous. We cannot query
		// by reference and we must not issue a new transfer; compensate
		// only after the attempts budget is spent.
		return fmt.Errorf("payout %s has no transfer reference yet", po.ID)
	}

	st, err := r.query(ctx, func(ctx context.Context) (*gateway.StatusResult, error) {
		return r.gw.QueryTransfer(ctx, po.TransferRef)
	})
	if err != nil {
		return err
	}
	switch st.Status {
	case gateway.StatusSuccessful:
		return r.webhooks.Process(ctx, &gateway.Event{
			ID:          reconEventID(po.ID, "transfer-succeeded"),
			Kind:        gateway.EventTransferSucceeded,
			TransferRef: po.TransferRef,
			PayoutRef:   po.ID,
			Amount:      st.Amount,
		})
	case gateway.StatusFailed, gateway.StatusNotFound:
		return r.webhooks.Process(ctx, &gateway.Event{
			ID:          reconEventID(po.ID, "transfer-failed"),
			Kind:        gateway.EventTransferFailed,
			TransferRef: po.TransferRef,
			PayoutRef:   po.ID,
			FailureCode: st.FailureCode,
		})
	default:
		return nil // transfer still in flight
	}
}

func (r *Reconciler) query(ctx context.Context, fn func(context.Context) (*gateway.StatusResult, error)) (*gateway.StatusResult, error) {
	var st *gateway.StatusResult
	err := r.QueryRetry.Do(ctx, func() error {
		var err error
		st, err = fn(ctx)
		return err
	}, func(err error) bool {
		// Status queries are read-only, so anything transient is safe to
		// retry.
		return errors.Is(err, gateway.ErrGatewayUnavailable) || errors.Is(err, gateway.ErrAmbiguousOutcome)
	})
	return st, err
}

// noteAttempt bumps the recovery counter and flags the payment for manual
// review once the budget is spent.
func (r *Reconciler) noteAttempt(ctx context.Context, paymentID string) {
	err := r.store.Atomic(ctx, func(tx service.Tx) error {
		p, err := tx.PaymentForUpdate(paymentID)
		if err != nil {
			return err
		}
		p.ReconcileAttempts++
		if p.ReconcileAttempts >= r.maxAttempts {
			p.ReviewFlagged = true
			log.Printf("[reconciler] payment=%s flagged for manual review after %d attempts", p.ID, p.ReconcileAttempts)
		}
		return tx.SavePayment(p)
	})
	if err != nil {
		log.Printf("[reconciler] note attempt payment=%s: %v", paymentID, err)
	}
}

func (r *Reconciler) flag(ctx context.Context, paymentID, reason string) error {
	log.Printf("[reconciler] payment=%s flagged: %s", paymentID, reason)
	return r.store.Atomic(ctx, func(tx service.Tx) error {
		p, err := tx.PaymentForUpdate(paymentID)
		if err != nil {
			return err
		}
		p.ReviewFlagged = true
		return tx.SavePayment(p)
	})
}

// reconEventID builds a deterministic synthetic event id so a replay dedups
// against itself; a later real webhook for the same fact no-ops on state.
func reconEventID(id, kind string) string {
	return "recon-" + kind + "-" + id
}
