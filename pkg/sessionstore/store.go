// Package sessionstore persists MTProto client sessions in a relational
// database. Any number of named sessions share one database, every row
// carries the session name as part of its primary key. The package speaks
// MySQL, PostgreSQL and SQLite through the database package.
package sessionstore

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/database"
	"github.com/sessiondb/sessiondb/pkg/driver"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"sync"
)

// Store provides access to one named session within a shared database.
// All reads and writes are scoped to that session, stores of different
// sessions never observe each other's rows. A Store is safe for
// concurrent use.
type Store struct {
	db     *database.DB
	logger *logging.Logger
	name   string
}

// schemaGuard tracks the one EnsureSchema run per database handle.
type schemaGuard struct {
	once sync.Once
	err  error
}

var schemaGuards sync.Map // map[*database.DB]*schemaGuard

// Open returns a Store for the named session backed by db.
// The first Open per database handle ensures the schema,
// subsequent calls reuse its outcome.
func Open(ctx context.Context, db *database.DB, name string, logger *logging.Logger) (*Store, error) {
	if name == "" {
		return nil, errors.New("session name must not be empty")
	}

	g, _ := schemaGuards.LoadOrStore(db, &schemaGuard{})
	guard := g.(*schemaGuard)
	guard.once.Do(func() {
		guard.err = EnsureSchema(ctx, db)
	})
	if guard.err != nil {
		return nil, errors.Wrap(guard.err, "can't ensure session schema")
	}

	return &Store{db: db, logger: logger, name: name}, nil
}

// OpenURL is Open for callers holding a connection URL instead of a
// database handle. Closing the returned Store closes the handle it opened.
func OpenURL(ctx context.Context, url, name string, logger *logging.Logger) (*Store, error) {
	db, err := openDb(url, logger)
	if err != nil {
		return nil, err
	}

	store, err := Open(ctx, db, name, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Name returns the session name this store is scoped to.
func (s *Store) Name() string {
	return s.name
}

// DB exposes the underlying database handle, e.g. for ListSessions.
func (s *Store) DB() *database.DB {
	return s.db
}

// Close releases the underlying database handle.
// The Store must not be used afterwards.
func (s *Store) Close() error {
	schemaGuards.Delete(s.db)

	return s.db.Close()
}

// scope returns the named WHERE scope of this store's session.
func (s *Store) scope() *SessionScope {
	return &SessionScope{SessionName: s.name}
}

func openDb(url string, logger *logging.Logger) (*database.DB, error) {
	c, err := database.ParseURL(url)
	if err != nil {
		return nil, err
	}

	driver.Register(logger)

	return database.NewDbFromConfig(c, logger)
}

// ListSessionsURL is ListSessions for callers holding a connection URL,
// pure discovery without opening a Store per name first.
func ListSessionsURL(ctx context.Context, url string, logger *logging.Logger) ([]string, error) {
	db, err := openDb(url, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return ListSessions(ctx, db)
}

// ListSessions returns the names of all sessions stored in db, sorted
// ascending. A database without the session schema yields an empty list.
func ListSessions(ctx context.Context, db *database.DB) ([]string, error) {
	ok, err := hasTable(ctx, db, "sessions")
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, nil
	}

	names := make([]string, 0)
	err = db.SelectContext(
		ctx, &names, `SELECT DISTINCT "session_name" FROM "sessions" ORDER BY "session_name"`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "can't list sessions")
	}

	return names, nil
}
