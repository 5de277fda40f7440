package cafs

import (
	"github.com/oneconcern/heraclitus/pkg/storage"
	"go.uber.org/zap"
)

// Option to configure content addressable FS components
type Option func(*defaultFs)

// Prefix sets a prefix on keys
func Prefix(prefix string) Option {
	return func(w *defaultFs) {
		w.prefix = prefix
	}
}

// Backend specifies the backend store
func Backend(store storage.Store) Option {
	return func(w *defaultFs) {
		w.backend = store
	}
}

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(w *defaultFs) {
		if l != nil {
			w.l = l
		}
	}
}

// CacheSize sets the target size of the LRU payload cache in bytes. Zero disables the cache.
func CacheSize(size int) Option {
	return func(w *defaultFs) {
		w.lruSize = size
	}
}

// MaxPayloadSize sets the largest payload accepted by Put
func MaxPayloadSize(size int64) Option {
	return func(w *defaultFs) {
		w.maxPayloadSize = size
	}
}

// VerifyHash checks payloads against their key when they are read
func VerifyHash(enabled bool) Option {
	return func(w *defaultFs) {
		w.withVerifyHash = enabled
	}
}

// Retries sets the maximum number of retries of failed writes to the backend
func Retries(n uint64) Option {
	return func(w *defaultFs) {
		w.retries = n
	}
}
