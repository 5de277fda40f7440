package localfs

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
)

func makeBadgerDb(dir string, inMemory bool, logger *zap.Logger) (*badger.DB, error) {
	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir)
	}
	bopts = bopts.WithLogger(badgerLogger{logger.Sugar()})

	return badger.Open(bopts)
}

// badgerLogger routes badger's internal logs to zap, one level down
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.SugaredLogger.Errorf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.SugaredLogger.Warnf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.SugaredLogger.Debugf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.SugaredLogger.Debugf(format, args...)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case badger.ErrKeyNotFound:
		return store.NotFound
	case badger.ErrEmptyKey:
		return store.IDIsRequired
	case badger.ErrDBClosed:
		return store.ClosedStore
	default:
		return err
	}
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	default:
		return false, err
	}
}

func getValue(txn *badger.Txn, key []byte, target interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return mapError(err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return mapError(err)
	}
	if e := jsoniter.Unmarshal(data, target); e != nil {
		return fmt.Errorf("json unmarshal failed: %v", e)
	}
	return nil
}

func setValue(txn *badger.Txn, key []byte, value interface{}) error {
	data, err := jsoniter.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal failed: %v", err)
	}
	return txn.Set(key, data)
}

// scan iterates over all entries under a prefix, in key order
func scan(txn *badger.Txn, prefix []byte, keysOnly bool, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var value []byte
		if !keysOnly {
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value = v
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// deferred collects the keys a transaction refers to, checked when the transaction ends
type deferred struct {
	keys [][]byte
}

func (d *deferred) require(key []byte) {
	d.keys = append(d.keys, key)
}

func (d *deferred) check(txn *badger.Txn) error {
	for _, key := range d.keys {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s does not exist", store.IntegrityViolation, key)
		}
	}
	return nil
}
