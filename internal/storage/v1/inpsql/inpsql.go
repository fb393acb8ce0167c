// Package inpsql implements the catalog store on top of PostgreSQL.
package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/modelstorage"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const accountColumns = "id, provider_id, login, secret, tariff, is_rented, rented_until, rental_price, created_at"

const providerColumns = "id, chat_id, login, password_hash, wallet_address, balance, registered_at"

// Storage defines attributes of a struct available to its methods.
type Storage struct {
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

// InitStorage opens a connection pool and makes sure the schema exists.
func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// mutationTimeout bounds claim and release independently of the caller deadline.
const mutationTimeout = 5 * time.Second

// run executes fn in a separate goroutine and gives up as soon as ctx is done.
// Only read-only operations go through run.
func (s *Storage) run(ctx context.Context, op string, fn func() error) error {
	chanEr := make(chan error, 1)
	go func() {
		chanEr <- fn()
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("%s failed", op))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		return s.report(op, methodErr)
	}
}

// mutate runs a state transition to completion and always reports its real outcome.
// The caller context only decides whether the transition starts: once started,
// fn runs under its own deadline so a committed transition is never reported as failed.
func (s *Storage) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		s.log.Error().Err(err).Msg(fmt.Sprintf("%s failed", op))
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	opCtx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
	defer cancel()
	return s.report(op, fn(opCtx))
}

func (s *Storage) report(op string, methodErr error) error {
	if methodErr != nil {
		var notFoundError *storageErrors.NotFoundError
		var alreadyRentedError *storageErrors.AlreadyRentedError
		var alreadyExistsError *storageErrors.AlreadyExistsError
		if errors.As(methodErr, &notFoundError) || errors.As(methodErr, &alreadyRentedError) || errors.As(methodErr, &alreadyExistsError) {
			s.log.Debug().Err(methodErr).Msg(fmt.Sprintf("%s rejected", op))
		} else {
			s.log.Error().Err(methodErr).Msg(fmt.Sprintf("%s failed", op))
		}
		return methodErr
	}
	s.log.Debug().Msg(fmt.Sprintf("%s done", op))
	return nil
}

// classify maps driver errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) || pgerrcode.IsDataException(pgErr.Code) || pgerrcode.IsSyntaxErrororAccessRuleViolation(pgErr.Code) {
			return &storageErrors.ExecutionPSQLError{Err: err}
		}
	}
	return &storageErrors.TransientStorageError{Err: &storageErrors.ExecutionPSQLError{Err: err}}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*modelstorage.AccountStorageEntry, error) {
	var entry modelstorage.AccountStorageEntry
	var rentedUntil sql.NullTime
	var rentalPrice decimal.NullDecimal
	err := row.Scan(&entry.ID, &entry.ProviderID, &entry.Login, &entry.Secret, &entry.Tariff, &entry.IsRented, &rentedUntil, &rentalPrice, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rentedUntil.Valid {
		until := rentedUntil.Time
		entry.RentedUntil = &until
	}
	if rentalPrice.Valid {
		price := rentalPrice.Decimal
		entry.RentalPrice = &price
	}
	return &entry, nil
}

func scanProvider(row scanner) (*modelstorage.ProviderStorageEntry, error) {
	var entry modelstorage.ProviderStorageEntry
	var chatID sql.NullInt64
	var login sql.NullString
	err := row.Scan(&entry.ID, &chatID, &login, &entry.PasswordHash, &entry.WalletAddress, &entry.Balance, &entry.RegisteredAt)
	if err != nil {
		return nil, err
	}
	if chatID.Valid {
		id := chatID.Int64
		entry.ChatID = &id
	}
	if login.Valid {
		l := login.String
		entry.Login = &l
	}
	return &entry, nil
}

// AddProvider inserts a new provider with a zero balance.
func (s *Storage) AddProvider(ctx context.Context, provider modelstorage.ProviderStorageEntry) error {
	return s.run(ctx, "adding new provider", func() error {
		_, err := s.DB.ExecContext(ctx,
			"INSERT INTO providers (id, chat_id, login, password_hash, wallet_address, balance, registered_at) VALUES ($1, $2, $3, $4, $5, 0, $6)",
			provider.ID, provider.ChatID, provider.Login, provider.PasswordHash, provider.WalletAddress, time.Now().UTC())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				id := provider.ID
				if provider.Login != nil {
					id = *provider.Login
				}
				return &storageErrors.AlreadyExistsError{Err: err, ID: id}
			}
			return classify(err)
		}
		return nil
	})
}

func (s *Storage) getProvider(ctx context.Context, op, where string, arg interface{}) (*modelstorage.ProviderStorageEntry, error) {
	var out *modelstorage.ProviderStorageEntry
	err := s.run(ctx, op, func() error {
		entry, err := scanProvider(s.DB.QueryRowContext(ctx, "SELECT "+providerColumns+" FROM providers WHERE "+where+" = $1", arg))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &storageErrors.NotFoundError{Err: err, Entity: "provider", ID: fmt.Sprint(arg)}
			}
			return classify(err)
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProvider retrieves a provider by identifier.
func (s *Storage) GetProvider(ctx context.Context, providerID string) (*modelstorage.ProviderStorageEntry, error) {
	return s.getProvider(ctx, "getting provider", "id", providerID)
}

// GetProviderByLogin retrieves a provider by dashboard login.
func (s *Storage) GetProviderByLogin(ctx context.Context, login string) (*modelstorage.ProviderStorageEntry, error) {
	return s.getProvider(ctx, "getting provider by login", "login", login)
}

// GetProviderByChatID retrieves a provider by Telegram chat identifier.
func (s *Storage) GetProviderByChatID(ctx context.Context, chatID int64) (*modelstorage.ProviderStorageEntry, error) {
	return s.getProvider(ctx, "getting provider by chat", "chat_id", chatID)
}

// SetWallet stores the payout destination of a provider.
func (s *Storage) SetWallet(ctx context.Context, providerID, wallet string) error {
	return s.run(ctx, "setting wallet", func() error {
		res, err := s.DB.ExecContext(ctx, "UPDATE providers SET wallet_address = $2 WHERE id = $1", providerID, wallet)
		if err != nil {
			return classify(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if affected == 0 {
			return &storageErrors.NotFoundError{Entity: "provider", ID: providerID}
		}
		return nil
	})
}

// AddAccount inserts an available account and returns its identifier.
func (s *Storage) AddAccount(ctx context.Context, account modelstorage.AccountStorageEntry) (int64, error) {
	var id int64
	err := s.run(ctx, "adding new account", func() error {
		err := s.DB.QueryRowContext(ctx,
			"INSERT INTO accounts (provider_id, login, secret, tariff, is_rented, created_at) VALUES ($1, $2, $3, $4, FALSE, $5) RETURNING id",
			account.ProviderID, account.Login, account.Secret, account.Tariff, time.Now().UTC()).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return &storageErrors.NotFoundError{Err: err, Entity: "provider", ID: account.ProviderID}
			}
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetAccount retrieves an account by identifier.
func (s *Storage) GetAccount(ctx context.Context, accountID int64) (*modelstorage.AccountStorageEntry, error) {
	var out *modelstorage.AccountStorageEntry
	err := s.run(ctx, "getting account", func() error {
		entry, err := scanAccount(s.DB.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", accountID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &storageErrors.NotFoundError{Err: err, Entity: "account", ID: fmt.Sprint(accountID)}
			}
			return classify(err)
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) queryAccounts(ctx context.Context, op, query string, args ...interface{}) ([]modelstorage.AccountStorageEntry, error) {
	var out []modelstorage.AccountStorageEntry
	err := s.run(ctx, op, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return classify(err)
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanAccount(rows)
			if err != nil {
				return &storageErrors.ScanningPSQLError{Err: err}
			}
			out = append(out, *entry)
		}
		if err := rows.Err(); err != nil {
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccounts lists the accounts owned by a provider.
func (s *Storage) GetAccounts(ctx context.Context, providerID string) ([]modelstorage.AccountStorageEntry, error) {
	return s.queryAccounts(ctx, "getting provider accounts",
		"SELECT "+accountColumns+" FROM accounts WHERE provider_id = $1 ORDER BY id", providerID)
}

// GetAvailableAccounts lists up to limit available accounts.
func (s *Storage) GetAvailableAccounts(ctx context.Context, limit int) ([]modelstorage.AccountStorageEntry, error) {
	query, args := availableAccountsQuery(limit)
	return s.queryAccounts(ctx, "getting available accounts", query, args...)
}

// availableAccountsQuery builds the listing query; a non-positive limit lists every available account.
func availableAccountsQuery(limit int) (string, []interface{}) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE NOT is_rented ORDER BY id"
	if limit <= 0 {
		return query, nil
	}
	return query + " LIMIT $1", []interface{}{limit}
}

// GetExpiredAccountIDs lists rented accounts whose deadline is before now.
func (s *Storage) GetExpiredAccountIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := s.run(ctx, "getting expired accounts", func() error {
		rows, err := s.DB.QueryContext(ctx, "SELECT id FROM accounts WHERE is_rented AND rented_until < $1", now)
		if err != nil {
			return classify(err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return &storageErrors.ScanningPSQLError{Err: err}
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ClaimAccount performs a conditional update: among concurrent callers only one matches NOT is_rented.
func (s *Storage) ClaimAccount(ctx context.Context, accountID int64, claim modelstorage.ClaimEntry) (*modelstorage.AccountStorageEntry, error) {
	var out *modelstorage.AccountStorageEntry
	err := s.mutate(ctx, "claiming account", func(ctx context.Context) error {
		entry, err := scanAccount(s.DB.QueryRowContext(ctx,
			"UPDATE accounts SET is_rented = TRUE, tariff = $2, rented_until = $3, rental_price = $4 WHERE id = $1 AND NOT is_rented RETURNING "+accountColumns,
			accountID, claim.Tariff, claim.RentedUntil, claim.Price))
		if err == nil {
			out = entry
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return classify(err)
		}
		var exists bool
		err = s.DB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", accountID).Scan(&exists)
		if err != nil {
			return classify(err)
		}
		if !exists {
			return &storageErrors.NotFoundError{Entity: "account", ID: fmt.Sprint(accountID)}
		}
		return &storageErrors.AlreadyRentedError{AccountID: accountID}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseAccount clears the rental and credits the provider within one transaction holding the account row lock.
func (s *Storage) ReleaseAccount(ctx context.Context, accountID int64) (*modelstorage.SettlementEntry, error) {
	var out *modelstorage.SettlementEntry
	err := s.mutate(ctx, "releasing account", func(ctx context.Context) (err error) {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return classify(err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		var providerID string
		var isRented bool
		var price decimal.NullDecimal
		err = tx.QueryRowContext(ctx, "SELECT provider_id, is_rented, rental_price FROM accounts WHERE id = $1 FOR UPDATE", accountID).
			Scan(&providerID, &isRented, &price)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &storageErrors.NotFoundError{Err: err, Entity: "account", ID: fmt.Sprint(accountID)}
			}
			return classify(err)
		}
		settlement := &modelstorage.SettlementEntry{AccountID: accountID, ProviderID: providerID}
		if !isRented {
			out = settlement
			return classify(tx.Rollback())
		}

		_, err = tx.ExecContext(ctx, "UPDATE accounts SET is_rented = FALSE, rented_until = NULL, rental_price = NULL WHERE id = $1", accountID)
		if err != nil {
			return classify(err)
		}
		amount := price.Decimal
		res, err := tx.ExecContext(ctx, "UPDATE providers SET balance = balance + $2 WHERE id = $1", providerID, amount)
		if err != nil {
			return classify(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if affected == 0 {
			return &storageErrors.NotFoundError{Entity: "provider", ID: providerID}
		}
		if err = tx.Commit(); err != nil {
			return classify(err)
		}
		settlement.Released = true
		settlement.Amount = amount
		out = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS providers (
		id             TEXT           PRIMARY KEY,
		chat_id        BIGINT         UNIQUE,
		login          TEXT           UNIQUE,
		password_hash  TEXT           NOT NULL DEFAULT '',
		wallet_address TEXT           NOT NULL DEFAULT '',
		balance        NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		registered_at  TIMESTAMPTZ    NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS accounts (
		id           BIGSERIAL      PRIMARY KEY,
		provider_id  TEXT           NOT NULL REFERENCES providers (id),
		login        TEXT           NOT NULL,
		secret       TEXT           NOT NULL,
		tariff       TEXT           NOT NULL,
		is_rented    BOOLEAN        NOT NULL DEFAULT FALSE,
		rented_until TIMESTAMPTZ,
		rental_price NUMERIC(12, 2),
		created_at   TIMESTAMPTZ    NOT NULL,
		CHECK (is_rented = (rented_until IS NOT NULL)),
		CHECK (is_rented = (rental_price IS NOT NULL))
	);`
	queries = append(queries, query)
	query = `CREATE INDEX IF NOT EXISTS accounts_rented_until_idx ON accounts (rented_until) WHERE is_rented;`
	queries = append(queries, query)
	query = `CREATE INDEX IF NOT EXISTS accounts_provider_id_idx ON accounts (provider_id);`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
