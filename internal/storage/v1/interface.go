// Package storage defines the catalog store contract for providers and rentable accounts.
package storage

import (
	"context"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/modelstorage"
)

// Providers stores provider records and balances.
type Providers interface {
	AddProvider(ctx context.Context, provider modelstorage.ProviderStorageEntry) error
	GetProvider(ctx context.Context, providerID string) (*modelstorage.ProviderStorageEntry, error)
	GetProviderByLogin(ctx context.Context, login string) (*modelstorage.ProviderStorageEntry, error)
	GetProviderByChatID(ctx context.Context, chatID int64) (*modelstorage.ProviderStorageEntry, error)
	SetWallet(ctx context.Context, providerID, wallet string) error
}

// Accounts stores rentable accounts and owns the atomic rental transitions.
type Accounts interface {
	AddAccount(ctx context.Context, account modelstorage.AccountStorageEntry) (int64, error)
	GetAccount(ctx context.Context, accountID int64) (*modelstorage.AccountStorageEntry, error)
	GetAccounts(ctx context.Context, providerID string) ([]modelstorage.AccountStorageEntry, error)
	GetAvailableAccounts(ctx context.Context, limit int) ([]modelstorage.AccountStorageEntry, error)
	GetExpiredAccountIDs(ctx context.Context, now time.Time) ([]int64, error)
	// ClaimAccount moves an available account to rented as one atomic step.
	// A rented account yields AlreadyRentedError and is left untouched.
	ClaimAccount(ctx context.Context, accountID int64, claim modelstorage.ClaimEntry) (*modelstorage.AccountStorageEntry, error)
	// ReleaseAccount moves a rented account to available and credits its
	// provider by the claimed price in the same atomic step. Releasing an
	// available account is a no-op with Released=false.
	ReleaseAccount(ctx context.Context, accountID int64) (*modelstorage.SettlementEntry, error)
}

// Storage is the complete catalog store.
type Storage interface {
	Providers
	Accounts
}
