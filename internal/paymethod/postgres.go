package paymethod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry stores payment methods in PostgreSQL. Default promotion and
// demotion run inside one transaction with the wallet's rows locked, keeping
// the at-most-one-default invariant under concurrent edits.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry builds a registry backed by PostgreSQL.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Add inserts a method, auto-promoting the first of its type to default.
func (r *PostgresRegistry) Add(ctx context.Context, walletID string, method Method) (Method, error) {
	walletUUID, err := walletUUIDFor(walletID)
	if err != nil {
		return Method{}, err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Method{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockWallet(ctx, tx, walletUUID); err != nil {
		return Method{}, err
	}

	if method.ID == "" {
		method.ID = uuid.NewString()
	}
	if method.CreatedAt.IsZero() {
		method.CreatedAt = time.Now().UTC()
	}

	var hasDefault bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payment_methods
        WHERE wallet_id = $1 AND type = $2 AND is_default)`, walletUUID, method.Type).Scan(&hasDefault); err != nil {
		return Method{}, err
	}
	method.IsDefault = !hasDefault

	if _, err := tx.Exec(ctx, `INSERT INTO payment_methods (id, wallet_id, type, brand, last4, expiry, is_default, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		method.ID, walletUUID, method.Type, method.Brand, method.Last4, method.Expiry, method.IsDefault, method.CreatedAt.UTC()); err != nil {
		return Method{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Method{}, err
	}
	return method, nil
}

// Remove deletes a method, reporting whether a row existed.
func (r *PostgresRegistry) Remove(ctx context.Context, walletID, methodID string) (bool, error) {
	walletUUID, err := walletUUIDFor(walletID)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM payment_methods WHERE wallet_id = $1 AND id = $2`, walletUUID, methodID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetDefault demotes the current default of the target's type and promotes the
// target within one transaction.
func (r *PostgresRegistry) SetDefault(ctx context.Context, walletID, methodID string) (bool, error) {
	walletUUID, err := walletUUIDFor(walletID)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockWallet(ctx, tx, walletUUID); err != nil {
		return false, err
	}

	var methodType string
	err = tx.QueryRow(ctx, `SELECT type FROM payment_methods WHERE wallet_id = $1 AND id = $2`,
		walletUUID, methodID).Scan(&methodType)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = (id = $3)
        WHERE wallet_id = $1 AND type = $2`, walletUUID, methodType, methodID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the wallet's methods, optionally filtered by type.
func (r *PostgresRegistry) List(ctx context.Context, walletID, methodType string) ([]Method, error) {
	walletUUID, err := walletUUIDFor(walletID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, type, brand, last4, expiry, is_default, created_at
        FROM payment_methods WHERE wallet_id = $1`
	args := []any{walletUUID}
	if methodType != "" {
		args = append(args, methodType)
		query += " AND type = $2"
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Method
	for rows.Next() {
		var m Method
		var createdAt time.Time
		if err := rows.Scan(&m.ID, &m.Type, &m.Brand, &m.Last4, &m.Expiry, &m.IsDefault, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetDefault returns the default method of the type, or nil when none exists.
func (r *PostgresRegistry) GetDefault(ctx context.Context, walletID, methodType string) (*Method, error) {
	walletUUID, err := walletUUIDFor(walletID)
	if err != nil {
		return nil, err
	}

	var m Method
	var createdAt time.Time
	err = r.db.QueryRow(ctx, `SELECT id, type, brand, last4, expiry, is_default, created_at
        FROM payment_methods WHERE wallet_id = $1 AND type = $2 AND is_default`,
		walletUUID, methodType).Scan(&m.ID, &m.Type, &m.Brand, &m.Last4, &m.Expiry, &m.IsDefault, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = createdAt.UTC()
	return &m, nil
}

func walletUUIDFor(walletID string) (uuid.UUID, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	return walletUUID, nil
}

func lockWallet(ctx context.Context, tx pgx.Tx, walletUUID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, walletUUID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("wallet %s: %w", walletUUID, ErrWalletNotFound)
	}
	return err
}
