// Package rental implements the rental lifecycle engine.

package rental

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltariff"
	serviceErrors "github.com/danilovkiri/dk-go-maxrent/internal/service/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/modelstorage"
	"github.com/rs/zerolog"
)

// Engine defines attributes of a struct available to its methods.
type Engine struct {
	storage storage.Accounts
	log     *zerolog.Logger
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for rental deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// InitService initializes the rental engine on top of an account store.
func InitService(st storage.Accounts, log *zerolog.Logger, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to rental engine initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to rental engine initializer"}
	}
	engine := &Engine{
		storage: st,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Claim rents an available account under the given tariff.
func (e *Engine) Claim(ctx context.Context, accountID int64, tariffKey string) (*modeldto.Receipt, error) {
	tariff, ok := modeltariff.Lookup(tariffKey)
	if !ok {
		return nil, &serviceErrors.InvalidTariffError{Tariff: tariffKey}
	}
	claim := modelstorage.ClaimEntry{
		Tariff:      tariff.Key,
		RentedUntil: e.now().Add(tariff.Duration),
		Price:       tariff.Price,
	}
	account, err := e.storage.ClaimAccount(ctx, accountID, claim)
	if err != nil {
		if isExpected(err) {
			e.log.Debug().Err(err).Msg(fmt.Sprintf("claim rejected for account %d", accountID))
		}
		return nil, err
	}
	e.log.Info().Msg(fmt.Sprintf("account %d rented on %s until %s", accountID, tariff.Key, claim.RentedUntil.Format(time.RFC3339)))
	return &modeldto.Receipt{
		AccountID:   account.ID,
		Login:       account.Login,
		Secret:      account.Secret,
		TariffKey:   tariff.Key,
		TariffLabel: tariff.Label,
		ExpiresAt:   claim.RentedUntil,
		Price:       tariff.Price,
	}, nil
}

// ClaimRestingTariff rents an account under the tariff it was listed with.
func (e *Engine) ClaimRestingTariff(ctx context.Context, accountID int64) (*modeldto.Receipt, error) {
	account, err := e.storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return e.Claim(ctx, accountID, account.Tariff)
}

// Release returns a rented account to the pool and credits its provider. Releasing an available account is a no-op.
func (e *Engine) Release(ctx context.Context, accountID int64) (*modeldto.Settlement, error) {
	settlement, err := e.storage.ReleaseAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if settlement.Released {
		e.log.Info().Msg(fmt.Sprintf("account %d released, provider %s credited %s", accountID, settlement.ProviderID, settlement.Amount.String()))
	} else {
		e.log.Debug().Msg(fmt.Sprintf("account %d already available, nothing to release", accountID))
	}
	return &modeldto.Settlement{
		AccountID:  settlement.AccountID,
		ProviderID: settlement.ProviderID,
		Released:   settlement.Released,
		Amount:     settlement.Amount,
	}, nil
}

// AddAccount lists a new available account for a provider. An empty tariff selects the default one.
func (e *Engine) AddAccount(ctx context.Context, providerID string, account modeldto.NewAccount) (int64, error) {
	if strings.TrimSpace(account.Login) == "" {
		return 0, &serviceErrors.ValidationError{Field: "login", Msg: "must not be empty"}
	}
	if strings.TrimSpace(account.Secret) == "" {
		return 0, &serviceErrors.ValidationError{Field: "password", Msg: "must not be empty"}
	}
	tariffKey := account.Tariff
	if tariffKey == "" {
		tariffKey = modeltariff.Default
	}
	if _, ok := modeltariff.Lookup(tariffKey); !ok {
		return 0, &serviceErrors.InvalidTariffError{Tariff: tariffKey}
	}
	id, err := e.storage.AddAccount(ctx, modelstorage.AccountStorageEntry{
		ProviderID: providerID,
		Login:      account.Login,
		Secret:     account.Secret,
		Tariff:     tariffKey,
	})
	if err != nil {
		return 0, err
	}
	e.log.Info().Msg(fmt.Sprintf("account %d listed by provider %s", id, providerID))
	return id, nil
}

// ListAvailable returns up to limit accounts ready to be rented.
func (e *Engine) ListAvailable(ctx context.Context, limit int) ([]modeldto.Account, error) {
	entries, err := e.storage.GetAvailableAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToAccounts(entries), nil
}

// ListExpired returns identifiers of rented accounts past their deadline.
func (e *Engine) ListExpired(ctx context.Context) ([]int64, error) {
	return e.storage.GetExpiredAccountIDs(ctx, e.now())
}

// ToAccounts converts storage entries into their provider-facing view, dropping secrets.
func ToAccounts(entries []modelstorage.AccountStorageEntry) []modeldto.Account {
	accounts := make([]modeldto.Account, 0, len(entries))
	for _, entry := range entries {
		accounts = append(accounts, modeldto.Account{
			ID:          entry.ID,
			Login:       entry.Login,
			Tariff:      entry.Tariff,
			IsRented:    entry.IsRented,
			RentedUntil: entry.RentedUntil,
		})
	}
	return accounts
}

// isExpected reports whether err is a user-facing outcome rather than a system failure.
func isExpected(err error) bool {
	var notFoundError *storageErrors.NotFoundError
	var alreadyRentedError *storageErrors.AlreadyRentedError
	return errors.As(err, &notFoundError) || errors.As(err, &alreadyRentedError)
}
