package gateway

import (
	"context"
	"errors"
)

// Client is the contract the escrow core has with the payment gateway. The
// core depends on this interface only; the Omise-backed implementation lives
// in omise.go and tests substitute their own.
type Client interface {
	// InitiateCharge captures the client's money. Reference travels in the
	// charge metadata so webhook events can be correlated back.
	InitiateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error)

	// CreateRecipient registers a payee record at the gateway for the given
	// bank details and returns its reference.
	CreateRecipient(ctx context.Context, in BankDetails) (string, error)

	// InitiateTransfer queues amount for payout to the recipient. Reference
	// is the caller's idempotency key for the transfer (the payout id).
	InitiateTransfer(ctx context.Context, amount int64, recipientRef, reference string) (string, error)

	// QueryCharge and QueryTransfer return the gateway's authoritative
	// record for a reference; used by the stuck-state reconciler.
	QueryCharge(ctx context.Context, chargeRef string) (*StatusResult, error)
	QueryTransfer(ctx context.Context, transferRef string) (*StatusResult, error)

	// VerifySignature checks the webhook signature header against the raw
	// body in constant time.
	VerifySignature(rawBody []byte, signatureHeader string) bool
}

type ChargeInput struct {
	Amount    int64
	Currency  string
	CardToken string
	Reference string // booking id, carried in charge metadata
}

type ChargeResult struct {
	ChargeRef    string
	Status       string
	AuthorizeURI string // present when the client must complete 3DS/redirect
}

type BankDetails struct {
	Name          string
	BankName      string
	BankBranch    string
	AccountName   string
	AccountNumber string
}

// StatusResult is the gateway's view of a charge or transfer.
type StatusResult struct {
	Status      Status
	FailureCode string
	Amount      int64
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	// StatusNotFound means the gateway has no record for the reference.
	StatusNotFound Status = "not_found"
)

// Failure classification. GatewayUnavailable means the request definitely
// did not take effect (connection refused, 5xx before processing) and is
// safe to retry later. ErrAmbiguousOutcome means we cannot know whether it
// took effect (timeout); callers must never retry a money movement on it.
// Reconciliation resolves it against the gateway's record.
var (
	ErrGatewayUnavailable  = errors.New("gateway_unavailable")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidBankDetails  = errors.New("invalid_bank_details")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidRecipient    = errors.New("invalid_recipient")
	ErrAmbiguousOutcome    = errors.New("ambiguous_outcome")
)
