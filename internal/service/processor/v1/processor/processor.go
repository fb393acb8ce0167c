// Package processor provides intermediary layer functionality between the rental engine, the DB and API adapters.

package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	serviceErrors "github.com/danilovkiri/dk-go-maxrent/internal/service/errors"
	rentalService "github.com/danilovkiri/dk-go-maxrent/internal/service/rental/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/rental/v1/rental"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/secretary/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/modelstorage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Processor defines attributes of a struct available to its methods.
type Processor struct {
	storage   storage.Storage
	engine    rentalService.Engine
	secretary secretary.Secretary
	rules     *config.RentalConfig
	log       *zerolog.Logger
}

// InitService initializes an intermediary service for data processing.
func InitService(st storage.Storage, engine rentalService.Engine, sec secretary.Secretary, rules *config.RentalConfig, log *zerolog.Logger) (*Processor, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if engine == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil rental engine was passed to service initializer"}
	}
	if sec == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil secretary was passed to service initializer"}
	}
	if rules == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil rental config was passed to service initializer"}
	}
	return &Processor{
		storage:   st,
		engine:    engine,
		secretary: sec,
		rules:     rules,
		log:       log,
	}, nil
}

// ValidateWallet checks a payout address against the configured prefix and minimum length.
func ValidateWallet(wallet, prefix string, minLength int) error {
	if !strings.HasPrefix(wallet, prefix) {
		return &serviceErrors.ValidationError{Field: "wallet", Msg: fmt.Sprintf("must start with %q", prefix)}
	}
	if utf8.RuneCountInString(wallet) < minLength {
		return &serviceErrors.ValidationError{Field: "wallet", Msg: fmt.Sprintf("must be at least %d characters long", minLength)}
	}
	return nil
}

// GetProviderID retrieves the provider identifier from an access token.
func (proc *Processor) GetProviderID(accessToken string) (string, error) {
	return proc.secretary.ValidateToken(accessToken)
}

// RegisterProvider processes dashboard register requests.
func (proc *Processor) RegisterProvider(ctx context.Context, credentials modeldto.Credentials) (string, error) {
	if credentials.Login == "" || credentials.Password == "" {
		return "", &serviceErrors.ValidationError{Field: "credentials", Msg: "empty values are not allowed"}
	}
	hash, err := proc.secretary.HashPassword(credentials.Password)
	if err != nil {
		return "", err
	}
	providerID := uuid.New().String()
	login := credentials.Login
	err = proc.storage.AddProvider(ctx, modelstorage.ProviderStorageEntry{
		ID:           providerID,
		Login:        &login,
		PasswordHash: hash,
	})
	if err != nil {
		return "", err
	}
	proc.log.Info().Msg(fmt.Sprintf("provider %s registered", providerID))
	return proc.secretary.NewToken(providerID)
}

// LoginProvider processes dashboard login requests.
func (proc *Processor) LoginProvider(ctx context.Context, credentials modeldto.Credentials) (string, error) {
	provider, err := proc.storage.GetProviderByLogin(ctx, credentials.Login)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if errors.As(err, &notFoundError) {
			return "", &serviceErrors.InvalidCredentialsError{Login: credentials.Login}
		}
		return "", err
	}
	if !proc.secretary.ComparePassword(provider.PasswordHash, credentials.Password) {
		return "", &serviceErrors.InvalidCredentialsError{Login: credentials.Login}
	}
	return proc.secretary.NewToken(provider.ID)
}

// EnsureChatProvider returns the provider bound to a Telegram chat, registering it on first contact.
func (proc *Processor) EnsureChatProvider(ctx context.Context, chatID int64) (string, error) {
	provider, err := proc.storage.GetProviderByChatID(ctx, chatID)
	if err == nil {
		return provider.ID, nil
	}
	var notFoundError *storageErrors.NotFoundError
	if !errors.As(err, &notFoundError) {
		return "", err
	}
	providerID := uuid.New().String()
	id := chatID
	err = proc.storage.AddProvider(ctx, modelstorage.ProviderStorageEntry{ID: providerID, ChatID: &id})
	if err != nil {
		var alreadyExistsError *storageErrors.AlreadyExistsError
		if errors.As(err, &alreadyExistsError) {
			// a concurrent /start registered the chat first
			provider, err = proc.storage.GetProviderByChatID(ctx, chatID)
			if err != nil {
				return "", err
			}
			return provider.ID, nil
		}
		return "", err
	}
	proc.log.Info().Msg(fmt.Sprintf("provider %s registered for chat %d", providerID, chatID))
	return providerID, nil
}

// GetDashboard lists the provider's own accounts with availability counts.
func (proc *Processor) GetDashboard(ctx context.Context, providerID string) (*modeldto.Dashboard, error) {
	entries, err := proc.storage.GetAccounts(ctx, providerID)
	if err != nil {
		return nil, err
	}
	dashboard := &modeldto.Dashboard{Accounts: rental.ToAccounts(entries)}
	for _, account := range dashboard.Accounts {
		if account.IsRented {
			dashboard.Rented++
		} else {
			dashboard.Available++
		}
	}
	return dashboard, nil
}

// GetBalance processes balance query requests.
func (proc *Processor) GetBalance(ctx context.Context, providerID string) (*modeldto.Balance, error) {
	provider, err := proc.storage.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return &modeldto.Balance{
		Balance:       provider.Balance,
		WalletAddress: provider.WalletAddress,
	}, nil
}

// SetWallet validates and stores a payout address, returning the stored value.
func (proc *Processor) SetWallet(ctx context.Context, providerID, wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if err := ValidateWallet(wallet, proc.rules.WalletPrefix, proc.rules.WalletMinLength); err != nil {
		return "", err
	}
	if err := proc.storage.SetWallet(ctx, providerID, wallet); err != nil {
		return "", err
	}
	proc.log.Info().Msg(fmt.Sprintf("wallet updated for provider %s", providerID))
	return wallet, nil
}

// AddAccount lists a new rentable account on behalf of a provider.
func (proc *Processor) AddAccount(ctx context.Context, providerID string, account modeldto.NewAccount) (int64, error) {
	return proc.engine.AddAccount(ctx, providerID, account)
}

// Rent claims an account under the chosen tariff.
func (proc *Processor) Rent(ctx context.Context, accountID int64, tariff string) (*modeldto.Receipt, error) {
	return proc.engine.Claim(ctx, accountID, tariff)
}

// RentRestingTariff claims an account under the tariff it was listed with.
func (proc *Processor) RentRestingTariff(ctx context.Context, accountID int64) (*modeldto.Receipt, error) {
	return proc.engine.ClaimRestingTariff(ctx, accountID)
}

// Release ends a rental early on behalf of the account owner.
func (proc *Processor) Release(ctx context.Context, providerID string, accountID int64) (*modeldto.Settlement, error) {
	account, err := proc.storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ProviderID != providerID {
		return nil, &serviceErrors.ForbiddenError{Msg: fmt.Sprintf("account %d belongs to another provider", accountID)}
	}
	return proc.engine.Release(ctx, accountID)
}

// ListAvailable returns the accounts offered to privileged renters.
func (proc *Processor) ListAvailable(ctx context.Context) ([]modeldto.Account, error) {
	return proc.engine.ListAvailable(ctx, proc.rules.AdminListLimit)
}
