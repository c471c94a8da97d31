package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service/servicetest"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond, MaxBackoff: time.Millisecond}

func seedEscrow(s *servicetest.MemStore, recipientRef string) {
	s.Bookings["bk-1"] = &domain.Booking{
		ID: "bk-1", ClientID: "cl-1", ProviderID: "pr-1", ServiceID: "sv-1",
		TotalAmount: 1000, Currency: "ZAR", Status: domain.BookingAwaitingConfirmation,
	}
	s.Payments["pay-1"] = &domain.Payment{
		ID: "pay-1", BookingID: "bk-1", Amount: 1000, EscrowAmount: 900, PlatformFee: 100,
		Currency: "ZAR", GatewayRef: "chrg_1", Status: domain.PaymentEscrow,
	}
	s.Providers["pr-1"] = &domain.Provider{
		ID: "pr-1", Name: "Thandi M", BankName: "capitec", BankBranch: "main",
		AccountName: "T Mokoena", AccountNumber: "123456789", RecipientRef: recipientRef,
	}
}

func TestEscrowRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path leaves payout processing", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "")
		gw := &servicetest.FakeGateway{}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		po, err := svc.Release(ctx, "bk-1")
		if err != nil {
			t.Fatal(err)
		}
		if po.Status != domain.PayoutProcessing {
			t.Fatalf("payout %s", po.Status)
		}
		if po.Amount != 900 {
			t.Fatalf("payout amount %d", po.Amount)
		}
		if po.TransferRef == "" || po.RecipientRef != "recp_test" {
			t.Fatalf("refs %q/%q", po.TransferRef, po.RecipientRef)
		}
		if store.Payments["pay-1"].Status != domain.PaymentProcessingRelease {
			t.Fatalf("payment %s", store.Payments["pay-1"].Status)
		}
		if store.Bookings["bk-1"].Status != domain.BookingPaymentProcessing {
			t.Fatalf("booking %s", store.Bookings["bk-1"].Status)
		}
		// recipient reference is cached for the next release
		if store.Providers["pr-1"].RecipientRef != "recp_test" {
			t.Fatal("recipient not cached")
		}
		if gw.RecipientCalls != 1 || gw.TransferCalls != 1 {
			t.Fatalf("calls recipient=%d transfer=%d", gw.RecipientCalls, gw.TransferCalls)
		}
	})

	t.Run("cached recipient skips registration", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "recp_cached")
		gw := &servicetest.FakeGateway{}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		po, err := svc.Release(ctx, "bk-1")
		if err != nil {
			t.Fatal(err)
		}
		if gw.RecipientCalls != 0 {
			t.Fatalf("recipient calls %d", gw.RecipientCalls)
		}
		if po.RecipientRef != "recp_cached" {
			t.Fatalf("recipient %q", po.RecipientRef)
		}
	})

	t.Run("missing payout details rejects before any mutation", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "")
		store.Providers["pr-1"].AccountNumber = ""
		gw := &servicetest.FakeGateway{}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		if _, err := svc.Release(ctx, "bk-1"); !errors.Is(err, service.ErrPayoutDetailsMissing) {
			t.Fatalf("err %v", err)
		}
		if store.Payments["pay-1"].Status != domain.PaymentEscrow {
			t.Fatal("payment mutated")
		}
		if len(store.Payouts) != 0 {
			t.Fatal("payout created")
		}
		if gw.TransferCalls != 0 {
			t.Fatal("transfer attempted")
		}
	})

	t.Run("wrong booking state is rejected", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "")
		store.Bookings["bk-1"].Status = domain.BookingInProgress
		svc := service.NewEscrowSvc(store, &servicetest.FakeGateway{}, &servicetest.RecordingPublisher{}, fastRetry)

		if _, err := svc.Release(ctx, "bk-1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("err %v", err)
		}
		if len(store.Payouts) != 0 {
			t.Fatal("payout created")
		}
	})

	t.Run("transient recipient failure is retried then succeeds", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "")
		gw := &servicetest.FakeGateway{}
		calls := 0
		gw.RecipientFunc = func(in gateway.BankDetails) (string, error) {
			calls++
			if calls < 3 {
				return "", gateway.ErrGatewayUnavailable
			}
			return "recp_retry", nil
		}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		po, err := svc.Release(ctx, "bk-1")
		if err != nil {
			t.Fatal(err)
		}
		if calls != 3 {
			t.Fatalf("recipient attempts %d", calls)
		}
		if po.RecipientRef != "recp_retry" {
			t.Fatalf("recipient %q", po.RecipientRef)
		}
	})

	t.Run("invalid bank details fail fast and compensate", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "")
		gw := &servicetest.FakeGateway{}
		gw.RecipientFunc = func(in gateway.BankDetails) (string, error) {
			return "", gateway.ErrInvalidBankDetails
		}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		_, err := svc.Release(ctx, "bk-1")
		var re *service.ReleaseError
		if !errors.As(err, &re) || re.Stage != service.StageRecipient {
			t.Fatalf("err %v", err)
		}
		if gw.RecipientCalls != 1 {
			t.Fatalf("recipient calls %d, want no retry", gw.RecipientCalls)
		}
		assertCompensated(t, store)
	})

	t.Run("definite transfer failure compensates", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "recp_cached")
		gw := &servicetest.FakeGateway{}
		gw.TransferFunc = func(amount int64, recipientRef, reference string) (string, error) {
			return "", gateway.ErrInsufficientBalance
		}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		_, err := svc.Release(ctx, "bk-1")
		var re *service.ReleaseError
		if !errors.As(err, &re) || re.Stage != service.StageTransfer {
			t.Fatalf("err %v", err)
		}
		if gw.TransferCalls != 1 {
			t.Fatalf("transfer calls %d, transfers must never retry", gw.TransferCalls)
		}
		assertCompensated(t, store)
	})

	t.Run("stale recipient is invalidated on rejection", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "recp_stale")
		gw := &servicetest.FakeGateway{}
		gw.TransferFunc = func(amount int64, recipientRef, reference string) (string, error) {
			return "", gateway.ErrInvalidRecipient
		}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		if _, err := svc.Release(ctx, "bk-1"); err == nil {
			t.Fatal("want error")
		}
		if store.Providers["pr-1"].RecipientRef != "" {
			t.Fatal("stale recipient kept")
		}
		assertCompensated(t, store)
	})

	t.Run("ambiguous transfer outcome pends without compensation", func(t *testing.T) {
		store := servicetest.NewMemStore()
		seedEscrow(store, "recp_cached")
		gw := &servicetest.FakeGateway{}
		gw.TransferFunc = func(amount int64, recipientRef, reference string) (string, error) {
			return "", gateway.ErrAmbiguousOutcome
		}
		svc := service.NewEscrowSvc(store, gw, &servicetest.RecordingPublisher{}, fastRetry)

		_, err := svc.Release(ctx, "bk-1")
		if !errors.Is(err, service.ErrReleasePending) {
			t.Fatalf("err %v", err)
		}
		// funds may be in flight: the states must stay where the reconciler
		// expects them
		if store.Payments["pay-1"].Status != domain.PaymentProcessingRelease {
			t.Fatalf("payment %s", store.Payments["pay-1"].Status)
		}
		if store.Bookings["bk-1"].Status != domain.BookingPaymentProcessing {
			t.Fatalf("booking %s", store.Bookings["bk-1"].Status)
		}
		po := singlePayout(t, store)
		if po.Status != domain.PayoutPending {
			t.Fatalf("payout %s", po.Status)
		}
		if po.LastFailure != "ambiguous_outcome" {
			t.Fatalf("failure %q", po.LastFailure)
		}
	})
}

func singlePayout(t *testing.T, store *servicetest.MemStore) *domain.Payout {
	t.Helper()
	if len(store.Payouts) != 1 {
		t.Fatalf("payouts %d", len(store.Payouts))
	}
	for _, po := range store.Payouts {
		return po
	}
	return nil
}

func assertCompensated(t *testing.T, store *servicetest.MemStore) {
	t.Helper()
	if store.Payments["pay-1"].Status != domain.PaymentEscrow {
		t.Fatalf("payment %s", store.Payments["pay-1"].Status)
	}
	if store.Bookings["bk-1"].Status != domain.BookingAwaitingConfirmation {
		t.Fatalf("booking %s", store.Bookings["bk-1"].Status)
	}
	if po := singlePayout(t, store); po.Status != domain.PayoutFailed {
		t.Fatalf("payout %s", po.Status)
	}
}
