// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system (or any afero file system)
//
// Decorators add zstd compression and tracing to any backend.
package storage
