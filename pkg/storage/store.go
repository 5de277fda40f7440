// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
)

type errString string

func (e errString) Error() string { return string(e) }

const (
	ErrNotFound     errString = "not found"
	ErrExists       errString = "exists already"
	ErrInvalidKey   errString = "invalid key"
	ErrCorrupted    errString = "corrupted object"
	ErrObjectTooBig errString = "object too big to be read into memory"
)

// Store implementations know how to write objects to a K/V store.
//
// Typically this is something file system-like.
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)

	// Put writes an object. With exclusive set, an existing object is not overwritten and ErrExists is returned.
	Put(ctx context.Context, key string, source io.Reader, exclusive bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}
