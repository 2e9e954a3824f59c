package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

// PostgresLedger persists transactions in PostgreSQL. The table is append-only;
// status is the only updatable column.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const txColumns = `id, wallet_id, user_id, type, amount::text, currency, status, description, metadata, created_at`

// Append inserts one immutable transaction row.
func (l *PostgresLedger) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	walletUUID, err := uuid.Parse(tx.WalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("wallet %s: %w", tx.WalletID, ErrWalletNotFound)
	}

	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletUUID).Scan(&exists); err != nil {
		return Transaction{}, err
	}
	if !exists {
		return Transaction{}, fmt.Errorf("wallet %s: %w", tx.WalletID, ErrWalletNotFound)
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]string{}
	}

	_, err = l.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, user_id, type, amount, currency, status, description, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, walletUUID, tx.UserID, string(tx.Type), tx.Amount.String(), tx.Currency.String(),
		string(tx.Status), tx.Description, tx.Metadata, tx.CreatedAt.UTC())
	if err != nil {
		// The partial unique index on (wallet_id, metadata->>'reference')
		// decides replay races; the conflict is the duplicate signal.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Transaction{}, fmt.Errorf("reference %s: %w", tx.Metadata[MetaReference], ErrDuplicateReference)
		}
		return Transaction{}, err
	}
	return tx, nil
}

// List returns matching transactions, newest first.
func (l *PostgresLedger) List(ctx context.Context, walletID string, filter Filter) ([]Transaction, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE wallet_id = $1`
	args := []any{walletUUID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Currency != "" {
		args = append(args, filter.Currency.String())
		query += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Get fetches one transaction scoped to the wallet.
func (l *PostgresLedger) Get(ctx context.Context, walletID, txID string) (Transaction, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 AND wallet_id = $2`, txID, walletUUID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrTransactionNotFound)
	}
	return tx, err
}

// MarkStatus advances a pending row to a terminal status.
func (l *PostgresLedger) MarkStatus(ctx context.Context, txID string, status Status) error {
	if !CanTransition(StatusPending, status) {
		return fmt.Errorf("transaction %s ->%s: %w", txID, status, ErrInvalidStateTransition)
	}

	tag, err := l.db.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1 AND status = $3`,
		txID, string(status), string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = l.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, txID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", txID, ErrTransactionNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("transaction %s %s->%s: %w", txID, current, status, ErrInvalidStateTransition)
}

// FindByIntent locates the transaction correlated with a gateway intent id.
func (l *PostgresLedger) FindByIntent(ctx context.Context, intentID string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE metadata->>$1 = $2`,
		MetaIntentID, intentID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("intent %s: %w", intentID, ErrTransactionNotFound)
	}
	return tx, err
}

// FindByReference locates the wallet's transaction carrying the idempotency
// reference.
func (l *PostgresLedger) FindByReference(ctx context.Context, walletID, reference string) (Transaction, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE wallet_id = $1 AND metadata->>$2 = $3`,
		walletUUID, MetaReference, reference)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("reference %s: %w", reference, ErrTransactionNotFound)
	}
	return tx, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var id, walletID uuid.UUID
	var txType, currency, status, amount string
	var createdAt time.Time
	if err := row.Scan(&id, &walletID, &tx.UserID, &txType, &amount, &currency, &status, &tx.Description, &tx.Metadata, &createdAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.WalletID = walletID.String()
	tx.Type = Type(txType)
	tx.Currency = money.Currency(currency)
	tx.Status = Status(status)
	tx.CreatedAt = createdAt.UTC()
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, err
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]string{}
	}
	return tx, nil
}
