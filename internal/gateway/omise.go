package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// OmiseClient implements Client on the Omise Go SDK. Webhook signatures are
// a deployment-level shared secret over the raw body, checked here so the
// whole gateway contract lives in one place.
type OmiseClient struct {
	client        *omise.Client
	webhookSecret string
}

func NewOmiseClient(pub, sec, webhookSecret string) (*OmiseClient, error) {
	c, err := omise.NewClient(pub, sec)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return &OmiseClient{client: c, webhookSecret: webhookSecret}, nil
}

func (o *OmiseClient) InitiateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	if in.Amount <= 0 || in.Currency == "" || in.CardToken == "" {
		return nil, ErrInvalidRequest
	}
	ch := &omise.Charge{}
	req := &operations.CreateCharge{
		Amount:   in.Amount,
		Currency: in.Currency,
		Card:     in.CardToken,
		Metadata: map[string]any{"booking_id": in.Reference},
	}
	if err := o.client.Do(ch, req); err != nil {
		return nil, classify(err)
	}
	return &ChargeResult{
		ChargeRef:    ch.ID,
		Status:       string(ch.Status),
		AuthorizeURI: ch.AuthorizeURI,
	}, nil
}

func (o *OmiseClient) CreateRecipient(ctx context.Context, in BankDetails) (string, error) {
	if in.AccountNumber == "" || in.AccountName == "" {
		return "", ErrInvalidBankDetails
	}
	rcp := &omise.Recipient{}
	req := &operations.CreateRecipient{
		Name: in.Name,
		Type: omise.Individual,
		BankAccount: &omise.BankAccountRequest{
			Brand:  in.BankName,
			Number: in.AccountNumber,
			Name:   in.AccountName,
		},
	}
	if err := o.client.Do(rcp, req); err != nil {
		return "", classify(err)
	}
	return rcp.ID, nil
}

func (o *OmiseClient) InitiateTransfer(ctx context.Context, amount int64, recipientRef, reference string) (string, error) {
	if amount <= 0 || recipientRef == "" {
		return "", ErrInvalidRequest
	}
	tr := &omise.Transfer{}
	req := &operations.CreateTransfer{
		Amount:    amount,
		Recipient: recipientRef,
		Metadata:  map[string]any{"payout_id": reference},
	}
	if err := o.client.Do(tr, req); err != nil {
		return "", classify(err)
	}
	return tr.ID, nil
}

func (o *OmiseClient) QueryCharge(ctx context.Context, chargeRef string) (*StatusResult, error) {
	ch := &omise.Charge{}
	if err := o.client.Do(ch, &operations.RetrieveCharge{ChargeID: chargeRef}); err != nil {
		if isNotFound(err) {
			return &StatusResult{Status: StatusNotFound}, nil
		}
		return nil, classify(err)
	}
	out := &StatusResult{Amount: ch.Amount}
	switch string(ch.Status) {
	case "successful":
		out.Status = StatusSuccessful
	case "failed":
		out.Status = StatusFailed
		if ch.FailureCode != nil {
			out.FailureCode = *ch.FailureCode
		}
	default:
		out.Status = StatusPending
	}
	return out, nil
}

func (o *OmiseClient) QueryTransfer(ctx context.Context, transferRef string) (*StatusResult, error) {
	tr := &omise.Transfer{}
	if err := o.client.Do(tr, &operations.RetrieveTransfer{TransferID: transferRef}); err != nil {
		if isNotFound(err) {
			return &StatusResult{Status: StatusNotFound}, nil
		}
		return nil, classify(err)
	}
	out := &StatusResult{Amount: tr.Amount}
	switch {
	case tr.FailureCode != nil:
		out.Status = StatusFailed
		out.FailureCode = *tr.FailureCode
	case tr.Paid || tr.Sent:
		out.Status = StatusSuccessful
	default:
		out.Status = StatusPending
	}
	return out, nil
}

func (o *OmiseClient) VerifySignature(rawBody []byte, signatureHeader string) bool {
	return verifySignature(rawBody, signatureHeader, o.webhookSecret)
}

// classify maps SDK and transport errors onto the gateway error taxonomy.
// Timeouts are ambiguous: the request may have been processed even though we
// never saw the response.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrAmbiguousOutcome
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrAmbiguousOutcome
	}
	var oerr *omise.Error
	if errors.As(err, &oerr) {
		switch oerr.Code {
		case "invalid_bank_account", "invalid_account_number":
			return ErrInvalidBankDetails
		case "insufficient_fund", "insufficient_balance":
			return ErrInsufficientBalance
		case "not_found":
			return ErrInvalidRecipient
		default:
			return ErrInvalidRequest
		}
	}
	return ErrGatewayUnavailable
}

func isNotFound(err error) bool {
	var oerr *omise.Error
	return errors.As(err, &oerr) && oerr.Code == "not_found"
}
