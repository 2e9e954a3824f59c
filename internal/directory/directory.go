package directory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers whether a user identity exists. User management itself
// lives outside this service; this is the only question the wallet asks of it.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Postgres checks the users table maintained by the identity service.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres builds a directory backed by the shared users table.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// UserExists reports whether the user id has a row in the users table.
func (d *Postgres) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// Static is a seeded in-memory directory for tests and local development.
type Static struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// NewStatic seeds a directory with the given user ids.
func NewStatic(userIDs ...string) *Static {
	d := &Static{users: make(map[string]struct{}, len(userIDs))}
	for _, id := range userIDs {
		d.users[id] = struct{}{}
	}
	return d
}

// Register adds a user id to the directory.
func (d *Static) Register(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = struct{}{}
}

// UserExists reports whether the user id was seeded or registered.
func (d *Static) UserExists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}

// AllowAll accepts every non-empty user id. Used by the in-memory dev wiring
// where no identity service is present.
type AllowAll struct{}

// UserExists reports true for every non-empty id.
func (AllowAll) UserExists(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}
