// Copyright © 2018 One Concern

// Package localfs implements object storage on a local file system.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage"
	"github.com/spf13/afero"
)

// staging area for atomic puts, within the file system itself
const nestedPutStageName = ".put-stage"

// New creates a new local file system backed storage.
//
// Puts are atomic: objects are written to a staging area then renamed into place.
func New(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".hera", "payloads"))
	}
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, fmt.Errorf("ensuring put staging directory for %q: %v", nestedPutStageName, err)
	}
	return &localFS{
		fs: fs,
	}, nil
}

type localFS struct {
	fs afero.Fs
}

func validKey(key string) error {
	const pathSepString = string(os.PathSeparator)
	clean := strings.TrimLeft(filepath.Clean(key), pathSepString)
	if clean == "" || clean == "." || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	if strings.Split(clean, pathSepString)[0] == nestedPutStageName {
		return fmt.Errorf("%w: key %q conflicts with put staging area name %q", storage.ErrInvalidKey, key, nestedPutStageName)
	}
	return nil
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, storage.ErrNotFound
	}
	return l.fs.Open(key)
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := validKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return storage.ErrExists
		}
	}

	putStageKey := filepath.Join(nestedPutStageName, model.NewID())
	target, err := l.fs.OpenFile(putStageKey, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create record for %q: %v", key, err)
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		_ = l.fs.Remove(putStageKey)
		return fmt.Errorf("write record for %q: %v", key, err)
	}
	if err = target.Close(); err != nil {
		_ = l.fs.Remove(putStageKey)
		return err
	}

	// Rename() doesn't create directories automatically
	if dir := filepath.Dir(key); dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	return l.fs.Rename(putStageKey, key)
}

func (l *localFS) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %v", key, err)
	}
	return nil
}

func (l *localFS) Keys(_ context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			if info.Name() == nestedPutStageName {
				return filepath.SkipDir
			}
			return nil
		}
		res = append(res, path)
		return nil
	})
	if e != nil {
		return nil, e
	}
	return res, nil
}

func (l *localFS) Clear(_ context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == nestedPutStageName {
			continue
		}
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
