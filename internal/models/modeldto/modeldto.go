// Package modeldto provides types exchanged between services and API adapters.

package modeldto

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Credentials is a dashboard login pair.
	Credentials struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	// NewAccount is a provider's submission of a rentable account.
	NewAccount struct {
		Login  string `json:"login"`
		Secret string `json:"password"`
		Tariff string `json:"tariff"`
	}
	// Receipt is returned to the renter after a successful claim.
	Receipt struct {
		AccountID   int64
		Login       string
		Secret      string
		TariffKey   string
		TariffLabel string
		ExpiresAt   time.Time
		Price       decimal.Decimal
	}
	// Settlement describes the outcome of a release. Released is false for a no-op release.
	Settlement struct {
		AccountID  int64           `json:"account_id"`
		ProviderID string          `json:"provider_id"`
		Released   bool            `json:"released"`
		Amount     decimal.Decimal `json:"amount"`
	}
	// SweepReport summarizes a single expiry sweep tick.
	SweepReport struct {
		Scanned  int
		Released int
		Failed   int
		Credited decimal.Decimal
	}
	// Account is a provider-facing view of a rentable account.
	Account struct {
		ID          int64      `json:"id"`
		Login       string     `json:"login"`
		Tariff      string     `json:"tariff"`
		IsRented    bool       `json:"is_rented"`
		RentedUntil *time.Time `json:"rented_until,omitempty"`
	}
	// Dashboard lists a provider's own accounts with computed counts.
	Dashboard struct {
		Accounts  []Account `json:"accounts"`
		Available int       `json:"available"`
		Rented    int       `json:"rented"`
	}
	// Balance is a provider's accrued earnings and payout destination.
	Balance struct {
		Balance       decimal.Decimal `json:"balance"`
		WalletAddress string          `json:"wallet_address,omitempty"`
	}
	// RentResponse is the HTTP rendering of a Receipt.
	RentResponse struct {
		Login    string          `json:"login"`
		Password string          `json:"password"`
		Tariff   string          `json:"tariff"`
		Until    string          `json:"until"`
		Price    decimal.Decimal `json:"price"`
	}
	// CreatedAccount is the HTTP response for a newly listed account.
	CreatedAccount struct {
		ID int64 `json:"id"`
	}
	// Warning is the HTTP body of an expected rejection.
	Warning struct {
		Message string `json:"message"`
	}
)
