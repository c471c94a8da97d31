package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/omise/omise-go"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"deadline exceeded is ambiguous", context.DeadlineExceeded, ErrAmbiguousOutcome},
		{"network timeout is ambiguous", timeoutErr{}, ErrAmbiguousOutcome},
		{"invalid bank account", &omise.Error{Code: "invalid_bank_account"}, ErrInvalidBankDetails},
		{"insufficient fund", &omise.Error{Code: "insufficient_fund"}, ErrInsufficientBalance},
		{"insufficient balance", &omise.Error{Code: "insufficient_balance"}, ErrInsufficientBalance},
		{"recipient not found", &omise.Error{Code: "not_found"}, ErrInvalidRecipient},
		{"other gateway rejection", &omise.Error{Code: "used_token"}, ErrInvalidRequest},
		{"transport failure", errors.New("connection refused"), ErrGatewayUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// Input validation happens before any SDK call, so a zero client must reject
// bad input without dereferencing anything.
func TestOmiseClientInputValidation(t *testing.T) {
	ctx := context.Background()
	o := &OmiseClient{}

	t.Run("charge requires amount, currency and token", func(t *testing.T) {
		_, err := o.InitiateCharge(ctx, ChargeInput{Amount: 0, Currency: "THB", CardToken: "tok"})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("err %v", err)
		}
		_, err = o.InitiateCharge(ctx, ChargeInput{Amount: 100, Currency: "THB"})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("err %v", err)
		}
	})

	t.Run("recipient requires account name and number", func(t *testing.T) {
		_, err := o.CreateRecipient(ctx, BankDetails{Name: "x", BankName: "capitec"})
		if !errors.Is(err, ErrInvalidBankDetails) {
			t.Fatalf("err %v", err)
		}
	})

	t.Run("transfer requires amount and recipient", func(t *testing.T) {
		_, err := o.InitiateTransfer(ctx, 900, "", "po-1")
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("err %v", err)
		}
	})
}
