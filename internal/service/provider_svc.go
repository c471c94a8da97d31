package service

import (
	"context"
	"errors"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
)

// ProviderSvc manages provider payout profiles. Changing bank details
// invalidates the cached gateway recipient so the next release re-registers
// against the new details.
type ProviderSvc struct {
	store Store
}

func NewProviderSvc(store Store) *ProviderSvc { return &ProviderSvc{store: store} }

type PayoutDetailsInput struct {
	Name          string
	BankName      string
	BankBranch    string
	AccountName   string
	AccountNumber string
}

func (s *ProviderSvc) UpsertPayoutDetails(ctx context.Context, providerID string, in PayoutDetailsInput) (*domain.Provider, error) {
	var out *domain.Provider
	err := s.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.ProviderForUpdate(providerID)
		if errors.Is(err, ErrNotFound) {
			p = &domain.Provider{ID: providerID}
		} else if err != nil {
			return err
		}
		p.Name = in.Name
		p.BankName = in.BankName
		p.BankBranch = in.BankBranch
		p.AccountName = in.AccountName
		p.AccountNumber = in.AccountNumber
		p.RecipientRef = "" // stale against the new details
		out = p
		return tx.SaveProvider(p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProviderSvc) Get(ctx context.Context, id string) (*domain.Provider, error) {
	return s.store.ProviderByID(ctx, id)
}
