package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torget/walletd/internal/money"
)

var (
	// ErrWalletNotFound indicates no wallet exists for the lookup.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists signals a second wallet creation for the same user,
	// typically a lost get-or-create race. Callers re-read instead of failing.
	ErrWalletExists = errors.New("wallet already exists")
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByUser(ctx context.Context, userID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record; the user_id unique index enforces one
// wallet per user.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, default_currency, created_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (user_id) DO NOTHING`,
		walletID, wallet.UserID, wallet.DefaultCurrency.String(), wallet.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", wallet.UserID, ErrWalletExists)
	}
	return nil
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletUUID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, ErrWalletNotFound)
	}
	row := r.db.QueryRow(ctx, `SELECT id, user_id, default_currency, created_at
        FROM wallets WHERE id = $1`, walletUUID)
	return scanWallet(row)
}

// GetByUser fetches the user's wallet.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, default_currency, created_at
        FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var idVal uuid.UUID
	var currency string
	var createdAt time.Time
	if err := row.Scan(&idVal, &w.UserID, &currency, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.DefaultCurrency = money.Currency(currency)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
