package domain

// Events drive the three state machines. The transition tables below are the
// single source of truth for what is legal; everything else (orchestrator,
// webhook processor, reconciler) goes through Transition and gets a
// TransitionError for anything the table does not allow.

type BookingEvent string

const (
	BookingEvAccept          BookingEvent = "accept"
	BookingEvPaymentCaptured BookingEvent = "payment_captured"
	BookingEvStartWork       BookingEvent = "start_work"
	BookingEvCompleteWork    BookingEvent = "complete_work"
	BookingEvBeginRelease    BookingEvent = "begin_release"
	BookingEvReleaseDone     BookingEvent = "release_done"
	BookingEvReleaseFailed   BookingEvent = "release_failed"
	BookingEvCancel          BookingEvent = "cancel"
	BookingEvDispute         BookingEvent = "dispute"
)

var bookingTransitions = map[BookingStatus]map[BookingEvent]BookingStatus{
	BookingPending: {
		BookingEvAccept: BookingConfirmed,
		BookingEvCancel: BookingCancelled,
	},
	BookingConfirmed: {
		BookingEvPaymentCaptured: BookingPendingExecution,
		BookingEvCancel:          BookingCancelled,
	},
	BookingPendingExecution: {
		BookingEvStartWork: BookingInProgress,
		BookingEvCancel:    BookingCancelled,
	},
	BookingInProgress: {
		BookingEvCompleteWork: BookingAwaitingConfirmation,
	},
	BookingAwaitingConfirmation: {
		BookingEvBeginRelease: BookingPaymentProcessing,
		BookingEvDispute:      BookingDisputed,
	},
	BookingPaymentProcessing: {
		BookingEvReleaseDone:   BookingCompleted,
		BookingEvReleaseFailed: BookingAwaitingConfirmation,
	},
}

// Transition applies ev to the booking, mutating its status, or returns a
// TransitionError leaving the booking untouched.
func (b *Booking) Transition(ev BookingEvent) error {
	next, ok := bookingTransitions[b.Status][ev]
	if !ok {
		return &TransitionError{Entity: "booking", From: string(b.Status), Event: string(ev)}
	}
	b.Status = next
	return nil
}

type PaymentEvent string

const (
	PaymentEvChargeSucceeded PaymentEvent = "charge_succeeded"
	PaymentEvChargeFailed    PaymentEvent = "charge_failed"
	PaymentEvBeginRelease    PaymentEvent = "begin_release"
	PaymentEvReleaseDone     PaymentEvent = "release_done"
	PaymentEvReleaseFailed   PaymentEvent = "release_failed" // compensating: back to ESCROW
	PaymentEvRefund          PaymentEvent = "refund"
)

var paymentTransitions = map[PaymentStatus]map[PaymentEvent]PaymentStatus{
	PaymentPending: {
		PaymentEvChargeSucceeded: PaymentEscrow,
		PaymentEvChargeFailed:    PaymentFailed,
	},
	PaymentEscrow: {
		PaymentEvBeginRelease: PaymentProcessingRelease,
		PaymentEvRefund:       PaymentRefunded,
	},
	PaymentProcessingRelease: {
		PaymentEvReleaseDone:   PaymentReleased,
		PaymentEvReleaseFailed: PaymentEscrow,
	},
}

func (p *Payment) Transition(ev PaymentEvent) error {
	next, ok := paymentTransitions[p.Status][ev]
	if !ok {
		return &TransitionError{Entity: "payment", From: string(p.Status), Event: string(ev)}
	}
	p.Status = next
	return nil
}

type PayoutEvent string

const (
	PayoutEvTransferInitiated PayoutEvent = "transfer_initiated"
	PayoutEvTransferDone      PayoutEvent = "transfer_done"
	PayoutEvTransferFailed    PayoutEvent = "transfer_failed"
)

var payoutTransitions = map[PayoutStatus]map[PayoutEvent]PayoutStatus{
	PayoutPending: {
		PayoutEvTransferInitiated: PayoutProcessing,
		PayoutEvTransferFailed:    PayoutFailed,
	},
	PayoutProcessing: {
		PayoutEvTransferDone:   PayoutCompleted,
		PayoutEvTransferFailed: PayoutFailed,
	},
}

func (p *Payout) Transition(ev PayoutEvent) error {
	next, ok := payoutTransitions[p.Status][ev]
	if !ok {
		return &TransitionError{Entity: "payout", From: string(p.Status), Event: string(ev)}
	}
	p.Status = next
	return nil
}
