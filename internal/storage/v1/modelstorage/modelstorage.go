// Package modelstorage provides types for querying relational DB.

package modelstorage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderStorageEntry mirrors a row of the providers table.
type ProviderStorageEntry struct {
	ID            string          `db:"id"`
	ChatID        *int64          `db:"chat_id"`
	Login         *string         `db:"login"`
	PasswordHash  string          `db:"password_hash"`
	WalletAddress string          `db:"wallet_address"`
	Balance       decimal.Decimal `db:"balance"`
	RegisteredAt  time.Time       `db:"registered_at"`
}

// AccountStorageEntry mirrors a row of the accounts table.
// RentedUntil and RentalPrice are set if and only if IsRented is true.
type AccountStorageEntry struct {
	ID          int64            `db:"id"`
	ProviderID  string           `db:"provider_id"`
	Login       string           `db:"login"`
	Secret      string           `db:"secret"`
	Tariff      string           `db:"tariff"`
	IsRented    bool             `db:"is_rented"`
	RentedUntil *time.Time       `db:"rented_until"`
	RentalPrice *decimal.Decimal `db:"rental_price"`
	CreatedAt   time.Time        `db:"created_at"`
}

// ClaimEntry is the state written by a successful claim.
type ClaimEntry struct {
	Tariff      string
	RentedUntil time.Time
	Price       decimal.Decimal
}

// SettlementEntry is the state change committed by a release.
type SettlementEntry struct {
	AccountID  int64
	ProviderID string
	Released   bool
	Amount     decimal.Decimal
}
