package store

import (
	"context"
	"errors"
	"fmt"

	config "example.com/tinyfeed/internal/init"
	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
)

var logg = logger.New()

var (
	// ErrNotFound is returned by GetUser when no record exists for the key.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnsupported is returned when a backend cannot serve a query shape.
	ErrUnsupported = errors.New("store: query not supported")
)

// --- Interfaces ---

// Store is the document store the feed runs on. Users are keyed by name,
// posts by an opaque generated ID. Post queries return most recent first.
type Store interface {
	GetUser(ctx context.Context, name string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
	PutPost(ctx context.Context, post *models.Post) error
	PostsByAuthor(ctx context.Context, author string, limit int) ([]models.Post, error)
	Close() error
}

// MembershipQuerier is implemented by backends that can filter posts on a
// set of authors in a single query.
type MembershipQuerier interface {
	PostsByAuthors(ctx context.Context, authors []string, limit int) ([]models.Post, error)
}

// New opens the backend selected by cfg.StoreDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		logg.Info("store", "Using in-memory store")
		return NewMemory(), nil
	case "cassandra":
		return NewCassandra(cfg)
	case "mongodb":
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "datastore":
		return NewDatastore(ctx, cfg.DatastoreProject)
	case "postgres":
		return NewSQL(postgres.Open(cfg.SQLDSN))
	case "sqlite":
		return NewSQL(sqlite.Open(cfg.SQLDSN))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// WithoutMembership hides the MembershipQuerier capability of s, leaving
// only equality queries.
func WithoutMembership(s Store) Store {
	return equalityOnly{s}
}

type equalityOnly struct {
	Store
}

var (
	_ Store             = (*MemoryStore)(nil)
	_ MembershipQuerier = (*MemoryStore)(nil)
	_ Store             = FailingStore{}
	_ Store             = (*CassandraStore)(nil)
	_ MembershipQuerier = (*CassandraStore)(nil)
	_ Store             = (*MongoStore)(nil)
	_ MembershipQuerier = (*MongoStore)(nil)
	_ Store             = (*DatastoreStore)(nil)
	_ MembershipQuerier = (*DatastoreStore)(nil)
	_ Store             = (*SQLStore)(nil)
	_ MembershipQuerier = (*SQLStore)(nil)
)
