package cafs

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage"
	"go.uber.org/zap"
)

const (
	// DefaultCacheSize sets the default target LRU payload cache in bytes.
	DefaultCacheSize = 32 * units.MiB

	// DefaultMaxPayloadSize is the default largest payload accepted by Put
	DefaultMaxPayloadSize = 512 * units.MiB

	// cacheSlotSize is the expected payload size used to size the LRU cache
	cacheSlotSize = 64 * units.KiB
)

// PutRes holds the result from a Put operation
type PutRes struct {
	Key     model.Hash // content address of the payload
	Written int64      // size of the payload
	Found   bool       // the payload already existed
}

// Fs implementations provide content-addressable storage operations
type Fs interface {
	Put(context.Context, []byte) (PutRes, error)
	Get(context.Context, model.Hash) ([]byte, error)
	Has(context.Context, model.Hash) (bool, error)
	Delete(context.Context, model.Hash) error
	Keys(context.Context) ([]model.Hash, error)
	Clear(context.Context) error
}

var _ Fs = &defaultFs{}

type defaultFs struct {
	backend storage.Store
	l       *zap.Logger
	prefix  string

	lru     *lru.Cache
	lruSize int

	maxPayloadSize int64
	withVerifyHash bool
	retries        uint64
}

// New creates a new instance of a content-addressable store
func New(opts ...Option) (Fs, error) {
	f := &defaultFs{
		l:              zap.NewNop(),
		lruSize:        DefaultCacheSize,
		maxPayloadSize: DefaultMaxPayloadSize,
		withVerifyHash: true,
		retries:        3,
	}
	for _, apply := range opts {
		apply(f)
	}
	if f.backend == nil {
		return nil, fmt.Errorf("cafs requires a backend store")
	}

	if f.lruSize > 0 {
		slots := f.lruSize / cacheSlotSize
		if slots < 1 {
			slots = 1
		}
		var err error
		f.lru, err = lru.New(slots)
		if err != nil {
			return nil, err
		}
	}
	f.l.Debug("cafs ready",
		zap.Stringer("backend", f.backend),
		zap.String("cache", units.BytesSize(float64(f.lruSize))),
	)
	return f, nil
}

// pather shards keys over 256 directories
func (d *defaultFs) pather(key model.Hash) string {
	hex := key.String()
	return path.Join(d.prefix, hex[:2], hex)
}

func (d *defaultFs) Put(ctx context.Context, payload []byte) (PutRes, error) {
	if int64(len(payload)) > d.maxPayloadSize {
		return PutRes{}, fmt.Errorf("%w: payload of %s exceeds %s",
			storage.ErrObjectTooBig,
			units.BytesSize(float64(len(payload))),
			units.BytesSize(float64(d.maxPayloadSize)),
		)
	}
	res := PutRes{
		Key:     model.HashBytes(payload),
		Written: int64(len(payload)),
	}
	key := d.pather(res.Key)

	found, err := d.backend.Has(ctx, key)
	if err != nil {
		return PutRes{}, err
	}
	if found {
		res.Found = true
		return res, nil
	}

	put := func() error {
		err := d.backend.Put(ctx, key, bytes.NewReader(payload), true)
		switch err {
		case nil:
			return nil
		case storage.ErrExists:
			res.Found = true
			return nil
		default:
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			d.l.Warn("retrying payload write", zap.Stringer("key", res.Key), zap.Error(err))
			return err
		}
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.retries), ctx)
	if err := backoff.Retry(put, policy); err != nil {
		return PutRes{}, err
	}
	d.cache(res.Key, payload)
	return res, nil
}

// Get returns a payload by key. The returned slice is shared with the cache and must not be modified.
func (d *defaultFs) Get(ctx context.Context, key model.Hash) ([]byte, error) {
	if d.lru != nil {
		if v, ok := d.lru.Get(key); ok {
			return v.([]byte), nil
		}
	}

	rdr, err := d.backend.Get(ctx, d.pather(key))
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	payload, err := ioutil.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	if d.withVerifyHash && model.HashBytes(payload) != key {
		d.l.Error("payload does not match its key", zap.Stringer("key", key))
		return nil, fmt.Errorf("%w: payload %s", storage.ErrCorrupted, key)
	}
	d.cache(key, payload)
	return payload, nil
}

func (d *defaultFs) cache(key model.Hash, payload []byte) {
	if d.lru == nil || len(payload) > d.lruSize {
		return
	}
	d.lru.Add(key, payload)
}

func (d *defaultFs) Has(ctx context.Context, key model.Hash) (bool, error) {
	if d.lru != nil && d.lru.Contains(key) {
		return true, nil
	}
	return d.backend.Has(ctx, d.pather(key))
}

func (d *defaultFs) Delete(ctx context.Context, key model.Hash) error {
	if d.lru != nil {
		d.lru.Remove(key)
	}
	return d.backend.Delete(ctx, d.pather(key))
}

func (d *defaultFs) Keys(ctx context.Context) ([]model.Hash, error) {
	paths, err := d.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]model.Hash, 0, len(paths))
	for _, p := range paths {
		k, err := model.ParseHash(path.Base(p))
		if err != nil || k.IsZero() {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (d *defaultFs) Clear(ctx context.Context) error {
	if d.lru != nil {
		d.lru.Purge()
	}
	return d.backend.Clear(ctx)
}
