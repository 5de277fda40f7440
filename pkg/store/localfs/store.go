// Package localfs implements the metadata store on a local badger key-value database.
package localfs

import (
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
)

var _ store.Store = &Store{}

// Option for the badger store
type Option func(*Store)

// InMemory runs the store without touching the disk
func InMemory() Option {
	return func(s *Store) {
		s.inMemory = true
	}
}

// Logger for the store and the underlying database
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is a metadata store backed by badger
type Store struct {
	baseDir  string
	inMemory bool
	logger   *zap.Logger

	db        *badger.DB
	once      sync.Once
	closeOnce sync.Once
	err       error
}

// New badger store located in some directory
func New(baseDir string, opts ...Option) *Store {
	s := &Store{
		baseDir: baseDir,
		logger:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Initialize opens the database
func (s *Store) Initialize() error {
	s.once.Do(func() {
		s.db, s.err = makeBadgerDb(s.baseDir, s.inMemory, s.logger)
		if s.err == nil {
			s.logger.Debug("badger store opened", zap.String("dir", s.baseDir), zap.Bool("in_memory", s.inMemory))
		}
	})
	return s.err
}

// Close the database
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func (s *Store) view(fn func(*badger.Txn) error) error {
	if s.db == nil {
		return store.ClosedStore
	}
	return mapError(s.db.View(fn))
}

// update runs fn in a read-write transaction and verifies the collected references before committing
func (s *Store) update(fn func(*badger.Txn, *deferred) error) error {
	if s.db == nil {
		return store.ClosedStore
	}
	return mapError(s.db.Update(func(txn *badger.Txn) error {
		var refs deferred
		if err := fn(txn, &refs); err != nil {
			return err
		}
		return refs.check(txn)
	}))
}
