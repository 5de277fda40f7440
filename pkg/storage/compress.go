// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/zstd"
)

// Compress decorates a store so that objects are zstd-compressed at rest.
//
// The returned store must be closed to release the codec.
func Compress(store Store) (*CompressedStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &CompressedStore{
		Store: store,
		enc:   enc,
		dec:   dec,
	}, nil
}

// CompressedStore compresses objects before handing them to the decorated store
type CompressedStore struct {
	Store
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (c *CompressedStore) String() string {
	return "zstd+" + c.Store.String()
}

func (c *CompressedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	compressed, err := ioutil.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrCorrupted
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (c *CompressedStore) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	data, err := ioutil.ReadAll(source)
	if err != nil {
		return err
	}
	return c.Store.Put(ctx, key, bytes.NewReader(c.enc.EncodeAll(data, nil)), exclusive)
}

// Close releases the codec
func (c *CompressedStore) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
