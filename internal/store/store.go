// Package store owns the canonical copies of users, content and purchases.
// Two backends satisfy the same Store contract: a volatile in-memory store
// and a durable sqlite store. Which one is used is decided once at startup.
package store

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("record with this id already exists")
)

// Store is the contract shared by both backends. Lookups of a single record
// return (nil, nil) when nothing matches.
//
// AddPurchase does not check for an existing (user, content) pair; callers
// that need the one-purchase invariant enforce it themselves.
type Store interface {
	AddUser(ctx context.Context, user *User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)

	AddContent(ctx context.Context, content *Content) (*Content, error)
	GetContent(ctx context.Context, id string) (*Content, error)
	GetContentByOwner(ctx context.Context, ownerID string) ([]Content, error)
	SearchContent(ctx context.Context, query string) ([]Content, error)
	GetNItems(ctx context.Context, n int) ([]Content, error)
	UpdateContentMetadata(ctx context.Context, id string, metadata map[string]any) error

	AddPurchase(ctx context.Context, purchase *Purchase) (*Purchase, error)
	GetPurchasesByUser(ctx context.Context, userID string) ([]Purchase, error)
	GetPurchasesByContent(ctx context.Context, contentID string) ([]Purchase, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	UseSQLite  bool
	SQLitePath string
}

// New builds the backend chosen by opts. The choice is fixed for the life of
// the returned Store.
func New(ctx context.Context, opts Options, logger *log.Logger) (Store, error) {
	if opts.UseSQLite {
		logger.Info("Using SQLite database", "path", opts.SQLitePath)
		return NewSQLiteStore(ctx, opts.SQLitePath)
	}
	logger.Info("Using in-memory database")
	return NewMemoryStore(), nil
}
