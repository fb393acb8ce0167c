// Package inmemory implements the catalog store in process memory.
//
// Every account carries its own mutex so that rental transitions on
// different accounts run in parallel. Lock order is account, then the
// provider table.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/modelstorage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type accountSlot struct {
	mu    sync.Mutex
	entry modelstorage.AccountStorageEntry
}

// Storage defines attributes of a struct available to its methods.
type Storage struct {
	accountsMu sync.RWMutex
	accounts   map[int64]*accountSlot
	lastID     int64

	providersMu sync.RWMutex
	providers   map[string]*modelstorage.ProviderStorageEntry
	byLogin     map[string]string
	byChatID    map[int64]string

	log *zerolog.Logger
}

// InitStorage initializes an empty in-memory store.
func InitStorage(log *zerolog.Logger) *Storage {
	log.Info().Msg("in-memory storage initialized")
	return &Storage{
		accounts:  make(map[int64]*accountSlot),
		providers: make(map[string]*modelstorage.ProviderStorageEntry),
		byLogin:   make(map[string]string),
		byChatID:  make(map[int64]string),
		log:       log,
	}
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	return nil
}

func copyAccount(e modelstorage.AccountStorageEntry) modelstorage.AccountStorageEntry {
	if e.RentedUntil != nil {
		until := *e.RentedUntil
		e.RentedUntil = &until
	}
	if e.RentalPrice != nil {
		price := *e.RentalPrice
		e.RentalPrice = &price
	}
	return e
}

func copyProvider(p modelstorage.ProviderStorageEntry) *modelstorage.ProviderStorageEntry {
	if p.ChatID != nil {
		id := *p.ChatID
		p.ChatID = &id
	}
	if p.Login != nil {
		l := *p.Login
		p.Login = &l
	}
	return &p
}

func (s *Storage) slot(accountID int64) (*accountSlot, error) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	slot, ok := s.accounts[accountID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "account", ID: fmt.Sprint(accountID)}
	}
	return slot, nil
}

// AddProvider inserts a new provider with a zero balance.
func (s *Storage) AddProvider(ctx context.Context, provider modelstorage.ProviderStorageEntry) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.providersMu.Lock()
	defer s.providersMu.Unlock()
	if _, ok := s.providers[provider.ID]; ok {
		return &storageErrors.AlreadyExistsError{ID: provider.ID}
	}
	if provider.Login != nil {
		if _, ok := s.byLogin[*provider.Login]; ok {
			return &storageErrors.AlreadyExistsError{ID: *provider.Login}
		}
	}
	if provider.ChatID != nil {
		if _, ok := s.byChatID[*provider.ChatID]; ok {
			return &storageErrors.AlreadyExistsError{ID: fmt.Sprint(*provider.ChatID)}
		}
	}
	entry := copyProvider(provider)
	entry.Balance = decimal.Zero
	entry.RegisteredAt = time.Now().UTC()
	s.providers[entry.ID] = entry
	if entry.Login != nil {
		s.byLogin[*entry.Login] = entry.ID
	}
	if entry.ChatID != nil {
		s.byChatID[*entry.ChatID] = entry.ID
	}
	s.log.Debug().Msg(fmt.Sprintf("adding new provider done for %s", entry.ID))
	return nil
}

// GetProvider retrieves a provider by identifier.
func (s *Storage) GetProvider(ctx context.Context, providerID string) (*modelstorage.ProviderStorageEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.providersMu.RLock()
	defer s.providersMu.RUnlock()
	entry, ok := s.providers[providerID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "provider", ID: providerID}
	}
	return copyProvider(*entry), nil
}

// GetProviderByLogin retrieves a provider by dashboard login.
func (s *Storage) GetProviderByLogin(ctx context.Context, login string) (*modelstorage.ProviderStorageEntry, error) {
	s.providersMu.RLock()
	id, ok := s.byLogin[login]
	s.providersMu.RUnlock()
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "provider", ID: login}
	}
	return s.GetProvider(ctx, id)
}

// GetProviderByChatID retrieves a provider by Telegram chat identifier.
func (s *Storage) GetProviderByChatID(ctx context.Context, chatID int64) (*modelstorage.ProviderStorageEntry, error) {
	s.providersMu.RLock()
	id, ok := s.byChatID[chatID]
	s.providersMu.RUnlock()
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "provider", ID: fmt.Sprint(chatID)}
	}
	return s.GetProvider(ctx, id)
}

// SetWallet stores the payout destination of a provider.
func (s *Storage) SetWallet(ctx context.Context, providerID, wallet string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.providersMu.Lock()
	defer s.providersMu.Unlock()
	entry, ok := s.providers[providerID]
	if !ok {
		return &storageErrors.NotFoundError{Entity: "provider", ID: providerID}
	}
	entry.WalletAddress = wallet
	return nil
}

// AddAccount inserts an available account and returns its identifier.
func (s *Storage) AddAccount(ctx context.Context, account modelstorage.AccountStorageEntry) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	s.providersMu.RLock()
	_, ok := s.providers[account.ProviderID]
	s.providersMu.RUnlock()
	if !ok {
		return 0, &storageErrors.NotFoundError{Entity: "provider", ID: account.ProviderID}
	}
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	s.lastID++
	account.ID = s.lastID
	account.IsRented = false
	account.RentedUntil = nil
	account.RentalPrice = nil
	account.CreatedAt = time.Now().UTC()
	s.accounts[account.ID] = &accountSlot{entry: account}
	s.log.Debug().Msg(fmt.Sprintf("adding new account done for %d", account.ID))
	return account.ID, nil
}

// GetAccount retrieves an account by identifier.
func (s *Storage) GetAccount(ctx context.Context, accountID int64) (*modelstorage.AccountStorageEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	slot, err := s.slot(accountID)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	entry := copyAccount(slot.entry)
	return &entry, nil
}

// snapshot copies every account matching keep, ordered by identifier.
func (s *Storage) snapshot(keep func(modelstorage.AccountStorageEntry) bool) []modelstorage.AccountStorageEntry {
	s.accountsMu.RLock()
	slots := make([]*accountSlot, 0, len(s.accounts))
	for _, slot := range s.accounts {
		slots = append(slots, slot)
	}
	s.accountsMu.RUnlock()

	var out []modelstorage.AccountStorageEntry
	for _, slot := range slots {
		slot.mu.Lock()
		entry := copyAccount(slot.entry)
		slot.mu.Unlock()
		if keep(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAccounts lists the accounts owned by a provider.
func (s *Storage) GetAccounts(ctx context.Context, providerID string) ([]modelstorage.AccountStorageEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(func(e modelstorage.AccountStorageEntry) bool {
		return e.ProviderID == providerID
	}), nil
}

// GetAvailableAccounts lists up to limit available accounts.
func (s *Storage) GetAvailableAccounts(ctx context.Context, limit int) ([]modelstorage.AccountStorageEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	out := s.snapshot(func(e modelstorage.AccountStorageEntry) bool {
		return !e.IsRented
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetExpiredAccountIDs lists rented accounts whose deadline is before now.
func (s *Storage) GetExpiredAccountIDs(ctx context.Context, now time.Time) ([]int64, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	expired := s.snapshot(func(e modelstorage.AccountStorageEntry) bool {
		return e.IsRented && e.RentedUntil.Before(now)
	})
	ids := make([]int64, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// ClaimAccount checks and sets the rental state under the account lock.
func (s *Storage) ClaimAccount(ctx context.Context, accountID int64, claim modelstorage.ClaimEntry) (*modelstorage.AccountStorageEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	slot, err := s.slot(accountID)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.entry.IsRented {
		return nil, &storageErrors.AlreadyRentedError{AccountID: accountID}
	}
	until := claim.RentedUntil
	price := claim.Price
	slot.entry.IsRented = true
	slot.entry.Tariff = claim.Tariff
	slot.entry.RentedUntil = &until
	slot.entry.RentalPrice = &price
	entry := copyAccount(slot.entry)
	return &entry, nil
}

// ReleaseAccount clears the rental and credits the provider while holding the account lock.
func (s *Storage) ReleaseAccount(ctx context.Context, accountID int64) (*modelstorage.SettlementEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	slot, err := s.slot(accountID)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	settlement := &modelstorage.SettlementEntry{AccountID: accountID, ProviderID: slot.entry.ProviderID}
	if !slot.entry.IsRented {
		return settlement, nil
	}
	amount := decimal.Zero
	if slot.entry.RentalPrice != nil {
		amount = *slot.entry.RentalPrice
	}

	s.providersMu.Lock()
	defer s.providersMu.Unlock()
	provider, ok := s.providers[slot.entry.ProviderID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "provider", ID: slot.entry.ProviderID}
	}
	provider.Balance = provider.Balance.Add(amount)
	slot.entry.IsRented = false
	slot.entry.RentedUntil = nil
	slot.entry.RentalPrice = nil

	settlement.Released = true
	settlement.Amount = amount
	return settlement, nil
}
