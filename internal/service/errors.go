package service

import (
	"errors"
	"fmt"
)

// Release failure stages. The stage tells the caller what to do about it:
// recipient failures mean the provider must fix payout details, transfer
// failures mean retry later or top up the platform balance.
type ReleaseStage string

const (
	StageRecipient ReleaseStage = "recipient_creation"
	StageTransfer  ReleaseStage = "transfer_initiation"
)

// ReleaseError is the structured failure surfaced by the escrow release
// orchestrator after its compensating rollback has run.
type ReleaseError struct {
	Stage          ReleaseStage
	ActionRequired string
	Err            error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("escrow release failed at %s: %v (%s)", e.Stage, e.Err, e.ActionRequired)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// ErrReleasePending is returned when the transfer outcome is ambiguous (the
// gateway call timed out). Local state stays in PROCESSING_RELEASE and the
// reconciler resolves it; the caller must not retry.
var ErrReleasePending = errors.New("release_pending_reconciliation")

// ErrCancellationLocked rejects booking cancellation once money is in
// escrow; the dispute path is the only way out from there.
var ErrCancellationLocked = errors.New("cancellation_locked_use_dispute")

// ErrPayoutDetailsMissing rejects release when the provider has no usable
// bank details on file.
var ErrPayoutDetailsMissing = errors.New("provider_payout_details_missing")
