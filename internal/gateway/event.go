package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventKind is the closed set of webhook event types the processor
// dispatches on. Adding a kind means extending this enum and the dispatch
// switch; unknown gateway keys map to EventUnknown and are acknowledged
// without effect.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventChargeSucceeded
	EventChargeFailed
	EventTransferSucceeded
	EventTransferFailed
)

func (k EventKind) String() string {
	switch k {
	case EventChargeSucceeded:
		return "charge.succeeded"
	case EventChargeFailed:
		return "charge.failed"
	case EventTransferSucceeded:
		return "transfer.succeeded"
	case EventTransferFailed:
		return "transfer.failed"
	default:
		return "unknown"
	}
}

// Event is a webhook delivery after classification.
type Event struct {
	ID          string
	Kind        EventKind
	ChargeRef   string // correlation key for charge.* events
	BookingRef  string // our booking id echoed back in charge metadata
	TransferRef string // gateway transfer reference for transfer.* events
	PayoutRef   string // our payout id echoed back by the gateway
	Amount      int64
	FailureCode string
	PayloadHash string
}

type rawEvent struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Data struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Amount      int64  `json:"amount"`
		FailureCode string `json:"failure_code"`
		Reference   string `json:"reference"`
		Metadata    struct {
			BookingID string `json:"booking_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body into a classified Event. The gateway's
// charge.complete key folds into succeeded/failed on the embedded status,
// matching how the charge object reports its outcome.
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("decode event: missing event id")
	}

	sum := sha256.Sum256(body)
	ev := &Event{
		ID:          raw.ID,
		Amount:      raw.Data.Amount,
		FailureCode: raw.Data.FailureCode,
		PayloadHash: hex.EncodeToString(sum[:]),
	}

	switch raw.Key {
	case "charge.complete", "charge.create":
		ev.ChargeRef = raw.Data.ID
		ev.BookingRef = raw.Data.Metadata.BookingID
		if raw.Data.Status == "successful" {
			ev.Kind = EventChargeSucceeded
		} else if raw.Data.Status == "failed" {
			ev.Kind = EventChargeFailed
		}
	case "transfer.pay", "transfer.complete":
		ev.TransferRef = raw.Data.ID
		ev.PayoutRef = raw.Data.Reference
		if raw.Data.Status == "failed" {
			ev.Kind = EventTransferFailed
		} else if raw.Data.Status == "paid" || raw.Data.Status == "sent" || raw.Data.Status == "successful" {
			ev.Kind = EventTransferSucceeded
		}
	}
	return ev, nil
}
