package servicetest

import (
	"context"
	"sync"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
)

// FakeGateway implements gateway.Client with per-call hooks. Unset hooks
// succeed with canned values.
type FakeGateway struct {
	mu sync.Mutex

	ChargeFunc        func(in gateway.ChargeInput) (*gateway.ChargeResult, error)
	RecipientFunc     func(in gateway.BankDetails) (string, error)
	TransferFunc      func(amount int64, recipientRef, reference string) (string, error)
	QueryChargeFunc   func(chargeRef string) (*gateway.StatusResult, error)
	QueryTransferFunc func(transferRef string) (*gateway.StatusResult, error)
	Secret            string

	ChargeCalls    int
	RecipientCalls int
	TransferCalls  int
}

func (f *FakeGateway) InitiateCharge(ctx context.Context, in gateway.ChargeInput) (*gateway.ChargeResult, error) {
	f.mu.Lock()
	f.ChargeCalls++
	f.mu.Unlock()
	if f.ChargeFunc != nil {
		return f.ChargeFunc(in)
	}
	return &gateway.ChargeResult{ChargeRef: "chrg_" + in.Reference, Status: "pending"}, nil
}

func (f *FakeGateway) CreateRecipient(ctx context.Context, in gateway.BankDetails) (string, error) {
	f.mu.Lock()
	f.RecipientCalls++
	f.mu.Unlock()
	if f.RecipientFunc != nil {
		return f.RecipientFunc(in)
	}
	return "recp_test", nil
}

func (f *FakeGateway) InitiateTransfer(ctx context.Context, amount int64, recipientRef, reference string) (string, error) {
	f.mu.Lock()
	f.TransferCalls++
	f.mu.Unlock()
	if f.TransferFunc != nil {
		return f.TransferFunc(amount, recipientRef, reference)
	}
	return "trsf_" + reference, nil
}

func (f *FakeGateway) QueryCharge(ctx context.Context, chargeRef string) (*gateway.StatusResult, error) {
	if f.QueryChargeFunc != nil {
		return f.QueryChargeFunc(chargeRef)
	}
	return &gateway.StatusResult{Status: gateway.StatusPending}, nil
}

func (f *FakeGateway) QueryTransfer(ctx context.Context, transferRef string) (*gateway.StatusResult, error) {
	if f.QueryTransferFunc != nil {
		return f.QueryTransferFunc(transferRef)
	}
	return &gateway.StatusResult{Status: gateway.StatusPending}, nil
}

func (f *FakeGateway) VerifySignature(rawBody []byte, signatureHeader string) bool {
	return signatureHeader == gateway.Sign(rawBody, f.Secret)
}

// RecordingPublisher captures notification triggers.
type RecordingPublisher struct {
	mu   sync.Mutex
	Keys []string
}

func (p *RecordingPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return nil
}
