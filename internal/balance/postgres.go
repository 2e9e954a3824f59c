package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

// PostgresStore persists balances in PostgreSQL using guarded row updates so
// concurrent adjustments of the same (wallet, currency) pair serialize at the
// database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed balance store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureWallet is a no-op for Postgres; wallet existence is owned by the
// wallets table and checked on every adjustment.
func (s *PostgresStore) EnsureWallet(_ context.Context, _ string) error {
	return nil
}

// Get fetches the balance row, synthesizing the zero record when the currency
// has never been touched.
func (s *PostgresStore) Get(ctx context.Context, walletID string, currency money.Currency) (Balance, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return Balance{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	const query = `SELECT available::text, pending::text, reserved::text, updated_at
        FROM balances WHERE wallet_id = $1 AND currency = $2`
	b, err := scanBalance(s.db.QueryRow(ctx, query, walletUUID, currency.String()), walletID, currency)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.walletExists(ctx, walletUUID); err != nil {
			return Balance{}, err
		}
		return Zero(walletID, currency), nil
	}
	return b, err
}

// All returns every currency balance recorded for the wallet.
func (s *PostgresStore) All(ctx context.Context, walletID string) ([]Balance, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	if err := s.walletExists(ctx, walletUUID); err != nil {
		return nil, err
	}

	const query = `SELECT currency, available::text, pending::text, reserved::text, updated_at
        FROM balances WHERE wallet_id = $1 ORDER BY currency`
	rows, err := s.db.Query(ctx, query, walletUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var currency string
		var available, pending, reserved string
		var updatedAt time.Time
		if err := rows.Scan(&currency, &available, &pending, &reserved, &updatedAt); err != nil {
			return nil, err
		}
		b, err := buildBalance(walletID, money.Currency(currency), available, pending, reserved, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Adjust applies delta to the named component in a single guarded UPDATE. The
// non-negativity check rides in the WHERE clause so two concurrent debits can
// never both pass a stale read.
func (s *PostgresStore) Adjust(ctx context.Context, walletID string, currency money.Currency, component Component, delta decimal.Decimal) (Balance, error) {
	if !component.Valid() {
		return Balance{}, fmt.Errorf("%w: %q", ErrInvalidComponent, component)
	}
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return Balance{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Balance{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletUUID).Scan(&exists); err != nil {
		return Balance{}, err
	}
	if !exists {
		return Balance{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO balances (wallet_id, currency, available, pending, reserved, updated_at)
        VALUES ($1, $2, 0, 0, 0, now()) ON CONFLICT (wallet_id, currency) DO NOTHING`, walletUUID, currency.String()); err != nil {
		return Balance{}, err
	}

	// component is validated against the closed enum above, never caller text.
	update := fmt.Sprintf(`UPDATE balances
        SET %[1]s = %[1]s + $3, updated_at = now()
        WHERE wallet_id = $1 AND currency = $2 AND %[1]s + $3 >= 0
        RETURNING available::text, pending::text, reserved::text, updated_at`, string(component))

	b, err := scanBalance(tx.QueryRow(ctx, update, walletUUID, currency.String(), delta.String()), walletID, currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, fmt.Errorf("wallet %s %s %s: %w", walletID, currency, component, ErrInsufficientFunds)
	}
	if err != nil {
		return Balance{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *PostgresStore) walletExists(ctx context.Context, walletUUID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletUUID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("wallet %s: %w", walletUUID, ErrWalletNotFound)
	}
	return nil
}

func scanBalance(row pgx.Row, walletID string, currency money.Currency) (Balance, error) {
	var available, pending, reserved string
	var updatedAt time.Time
	if err := row.Scan(&available, &pending, &reserved, &updatedAt); err != nil {
		return Balance{}, err
	}
	return buildBalance(walletID, currency, available, pending, reserved, updatedAt)
}

func buildBalance(walletID string, currency money.Currency, available, pending, reserved string, updatedAt time.Time) (Balance, error) {
	b := Balance{WalletID: walletID, Currency: currency, UpdatedAt: updatedAt.UTC()}
	var err error
	if b.Available, err = decimal.NewFromString(available); err != nil {
		return Balance{}, err
	}
	if b.Pending, err = decimal.NewFromString(pending); err != nil {
		return Balance{}, err
	}
	if b.Reserved, err = decimal.NewFromString(reserved); err != nil {
		return Balance{}, err
	}
	return b, nil
}
