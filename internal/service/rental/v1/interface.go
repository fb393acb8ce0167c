// Package rental defines the rental lifecycle engine contract.
package rental

import (
	"context"

	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
)

// Engine owns the Available/Rented state machine of rentable accounts.
type Engine interface {
	Claim(ctx context.Context, accountID int64, tariff string) (*modeldto.Receipt, error)
	ClaimRestingTariff(ctx context.Context, accountID int64) (*modeldto.Receipt, error)
	Release(ctx context.Context, accountID int64) (*modeldto.Settlement, error)
	AddAccount(ctx context.Context, providerID string, account modeldto.NewAccount) (int64, error)
	ListAvailable(ctx context.Context, limit int) ([]modeldto.Account, error)
	ListExpired(ctx context.Context) ([]int64, error)
}
