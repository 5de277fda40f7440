// Package sqlite implements the metadata store on a sqlite database.
//
// Relations between rows are declared as deferred foreign keys, so that referential
// integrity is verified when each transaction commits.
package sqlite

import (
	"context"
	"runtime"
	"sync"

	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

var _ store.Store = &Store{}

const schema = `
CREATE TABLE IF NOT EXISTS artifact_graph (
	id   TEXT PRIMARY KEY,
	hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS artifact (
	id                TEXT PRIMARY KEY,
	graph_id          TEXT NOT NULL REFERENCES artifact_graph(id) DEFERRABLE INITIALLY DEFERRED,
	position          INTEGER NOT NULL,
	hash              TEXT NOT NULL,
	kind              TEXT NOT NULL,
	name              TEXT NOT NULL,
	self_partitioning INTEGER NOT NULL,
	params            TEXT
);

CREATE TABLE IF NOT EXISTS artifact_edge (
	graph_id     TEXT NOT NULL REFERENCES artifact_graph(id) DEFERRABLE INITIALLY DEFERRED,
	position     INTEGER NOT NULL,
	source_id    TEXT NOT NULL REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	dependent_id TEXT NOT NULL REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	kind         TEXT NOT NULL CHECK (kind IN ('dtype', 'producer')),
	name         TEXT NOT NULL,
	PRIMARY KEY (source_id, dependent_id)
);

CREATE TABLE IF NOT EXISTS producer_artifact (
	id       TEXT PRIMARY KEY REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	policies TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS version (
	id             TEXT PRIMARY KEY,
	artifact_id    TEXT NOT NULL REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	hash           TEXT,
	status         TEXT NOT NULL CHECK (status IN ('staging', 'committed')),
	representation TEXT NOT NULL CHECK (representation IN ('state', 'delta', 'cumulative_delta')),
	message        TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	committed_at   INTEGER
);

CREATE INDEX IF NOT EXISTS version_by_artifact ON version(artifact_id);

CREATE TABLE IF NOT EXISTS version_parent (
	child_id  TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	parent_id TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	position  INTEGER NOT NULL,
	PRIMARY KEY (child_id, parent_id)
);

CREATE TABLE IF NOT EXISTS version_relation (
	dependent_id  TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	dependency_id TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	artifact_id   TEXT NOT NULL REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	PRIMARY KEY (dependent_id, artifact_id)
);

CREATE TABLE IF NOT EXISTS producer_version (
	version_id TEXT PRIMARY KEY REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	strategy   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hunk (
	version_id      TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	partition_index INTEGER NOT NULL,
	id              TEXT NOT NULL,
	hash            TEXT NOT NULL,
	representation  TEXT NOT NULL CHECK (representation IN ('state', 'delta', 'cumulative_delta')),
	completion      TEXT NOT NULL CHECK (completion IN ('complete', 'ragged')),
	payload         TEXT NOT NULL,
	size            INTEGER NOT NULL,
	PRIMARY KEY (version_id, partition_index)
);

CREATE TABLE IF NOT EXISTS hunk_precedence (
	version_id      TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	partition_index INTEGER NOT NULL,
	precedent_id    TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	PRIMARY KEY (version_id, partition_index)
);

CREATE TABLE IF NOT EXISTS branch (
	ref_id     TEXT NOT NULL REFERENCES artifact(id) DEFERRABLE INITIALLY DEFERRED,
	name       TEXT NOT NULL,
	version_id TEXT NOT NULL REFERENCES version(id) DEFERRABLE INITIALLY DEFERRED,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (ref_id, name)
);
`

// Option for the sqlite store
type Option func(*Store)

// PoolSize sets the number of pooled connections. In-memory databases always use a single connection.
func PoolSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// Logger for the store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is a metadata store backed by a pool of sqlite connections
type Store struct {
	path     string
	poolSize int
	logger   *zap.Logger

	pool      *sqlitex.Pool
	once      sync.Once
	closeOnce sync.Once
	err       error
}

// New sqlite store for a database file
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		poolSize: runtime.NumCPU(),
		logger:   zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.poolSize < 4 {
		s.poolSize = 4
	}
	if path == MemoryPath {
		s.poolSize = 1
	}
	return s
}

// Initialize opens the connection pool and creates the schema
func (s *Store) Initialize() error {
	s.once.Do(func() {
		s.pool, s.err = sqlitex.NewPool(s.path, sqlitex.PoolOptions{
			PoolSize:    s.poolSize,
			PrepareConn: prepareConnection,
		})
		if s.err != nil {
			return
		}

		var conn *sqlite.Conn
		conn, s.err = s.pool.Take(context.Background())
		if s.err != nil {
			return
		}
		defer s.pool.Put(conn)
		s.err = sqlitex.ExecuteScript(conn, schema, nil)
		if s.err == nil {
			s.logger.Debug("sqlite store opened", zap.String("path", s.path), zap.Int("pool_size", s.poolSize))
		}
	})
	return s.err
}

// Close the connection pool
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.pool != nil {
			err = s.pool.Close()
		}
	})
	return err
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	if s.pool == nil {
		return nil, store.ClosedStore
	}
	return s.pool.Take(ctx)
}

// read runs fn on a pooled connection
func (s *Store) read(ctx context.Context, fn func(*sqlite.Conn) error) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return mapError(fn(conn))
}

// write runs fn in an immediate transaction. Deferred foreign keys are checked on commit.
func (s *Store) write(ctx context.Context, fn func(*sqlite.Conn) error) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return mapError(transact(conn, fn))
}

func transact(conn *sqlite.Conn, fn func(*sqlite.Conn) error) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)
	return fn(conn)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintForeignKey:
		return store.IntegrityViolation
	case sqlite.ResultConstraintPrimaryKey, sqlite.ResultConstraintUnique:
		return store.AlreadyExists
	default:
		return err
	}
}

func exec(conn *sqlite.Conn, query string, args ...interface{}) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
