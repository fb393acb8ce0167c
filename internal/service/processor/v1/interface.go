// Package processor defines the provider-facing service used by the API and bot adapters.
package processor

import (
	"context"

	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
)

// Processor defines a set of methods for types implementing Processor.
type Processor interface {
	GetProviderID(accessToken string) (string, error)
	RegisterProvider(ctx context.Context, credentials modeldto.Credentials) (string, error)
	LoginProvider(ctx context.Context, credentials modeldto.Credentials) (string, error)
	EnsureChatProvider(ctx context.Context, chatID int64) (string, error)
	GetDashboard(ctx context.Context, providerID string) (*modeldto.Dashboard, error)
	GetBalance(ctx context.Context, providerID string) (*modeldto.Balance, error)
	SetWallet(ctx context.Context, providerID, wallet string) (string, error)
	AddAccount(ctx context.Context, providerID string, account modeldto.NewAccount) (int64, error)
	Rent(ctx context.Context, accountID int64, tariff string) (*modeldto.Receipt, error)
	RentRestingTariff(ctx context.Context, accountID int64) (*modeldto.Receipt, error)
	Release(ctx context.Context, providerID string, accountID int64) (*modeldto.Settlement, error)
	ListAvailable(ctx context.Context) ([]modeldto.Account, error)
}
