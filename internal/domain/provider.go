package domain

import "time"

// Provider holds the payout profile for a service provider. RecipientRef
// caches the gateway-side recipient registered for these bank details. The
// gateway decides whether it is still valid; the cache is cleared whenever
// the details change or the gateway rejects it.
type Provider struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	BankName      string
	BankBranch    string
	AccountName   string
	AccountNumber string
	RecipientRef  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PayoutReady reports whether the provider has enough bank details for a
// transfer recipient to be registered.
func (p *Provider) PayoutReady() bool {
	return p.BankName != "" && p.AccountName != "" && p.AccountNumber != ""
}
