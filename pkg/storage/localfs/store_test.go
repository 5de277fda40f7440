// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	stateKey = "5c/5c1f0e8a9d3b"
	deltaKey = "a7/a7e24410bb02"
)

// payloads is a fixture of hunk payloads, keyed the way cafs lays them out
var payloads = map[string]string{
	stateKey: "\x01\x02\x03\x04",
	deltaKey: "\x82\x41\x00\x41\xff",
}

func setupStore(t testing.TB) storage.Store {
	t.Helper()

	fs := afero.NewMemMapFs()
	for key, payload := range payloads {
		require.NoError(t, afero.WriteFile(fs, key, []byte(payload), 0600))
	}

	bs, err := New(fs)
	require.NoError(t, err)
	return bs
}

func TestHas(t *testing.T) {
	bs := setupStore(t)

	for key, expected := range map[string]bool{
		stateKey:         true,
		deltaKey:         true,
		"5c/000000000000": false,
		"5c":              false,
	} {
		has, err := bs.Has(context.Background(), key)
		require.NoError(t, err)
		assert.Equalf(t, expected, has, "key %q", key)
	}
}

func TestGet(t *testing.T) {
	bs := setupStore(t)

	rdr, err := bs.Get(context.Background(), deltaKey)
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, payloads[deltaKey], string(b))

	_, err = bs.Get(context.Background(), "5c/000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeys(t *testing.T) {
	bs := setupStore(t)

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stateKey, deltaKey}, keys)
}

func TestDelete(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Delete(context.Background(), deltaKey))
	require.NoError(t, bs.Delete(context.Background(), deltaKey))
	k, _ := bs.Keys(context.Background())
	assert.Equal(t, []string{stateKey}, k)
}

func TestClear(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Clear(context.Background()))
	k, _ := bs.Keys(context.Background())
	require.Empty(t, k)

	// the staging area survives
	require.NoError(t, bs.Put(context.Background(), stateKey, bytes.NewBufferString("x"), false))
}

func TestPut(t *testing.T) {
	bs := setupStore(t)
	const key = "e0/e0d1c2b3a495"

	require.NoError(t, bs.Put(context.Background(), key, bytes.NewBufferString("\xfe\xfd"), true))

	rdr, err := bs.Get(context.Background(), key)
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "\xfe\xfd", string(b))

	err = bs.Put(context.Background(), key, bytes.NewBufferString("other"), true)
	assert.ErrorIs(t, err, storage.ErrExists)

	require.NoError(t, bs.Put(context.Background(), key, bytes.NewBufferString("other"), false))

	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 3)
}

func TestInvalidKeys(t *testing.T) {
	bs := setupStore(t)

	for _, key := range []string{"", ".", "../escape", nestedPutStageName + "/x"} {
		err := bs.Put(context.Background(), key, bytes.NewBufferString("x"), false)
		assert.ErrorIsf(t, err, storage.ErrInvalidKey, "key %q", key)
	}
}

func TestOnDisk(t *testing.T) {
	td, err := ioutil.TempDir("", "hera-storage-")
	require.NoError(t, err)
	defer os.RemoveAll(td)

	bs, err := New(afero.NewBasePathFs(afero.NewOsFs(), td))
	require.NoError(t, err)
	assert.Equal(t, "localfs@"+td, bs.String())

	require.NoError(t, bs.Put(context.Background(), "ab/cdef", bytes.NewBufferString("payload"), true))
	has, err := bs.Has(context.Background(), "ab/cdef")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCompressed(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw, err := New(fs)
	require.NoError(t, err)
	bs, err := storage.Compress(raw)
	require.NoError(t, err)
	defer bs.Close()

	payload := bytes.Repeat([]byte("heraclitus "), 1000)
	require.NoError(t, bs.Put(context.Background(), "ab/compressed", bytes.NewReader(payload), true))

	stored, err := afero.ReadFile(fs, "ab/compressed")
	require.NoError(t, err)
	assert.Less(t, len(stored), len(payload))

	rdr, err := bs.Get(context.Background(), "ab/compressed")
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, payload, b)
	assert.Equal(t, "zstd+localfs", bs.String())

	require.NoError(t, afero.WriteFile(fs, "ab/garbage", []byte("not zstd"), 0600))
	_, err = bs.Get(context.Background(), "ab/garbage")
	assert.ErrorIs(t, err, storage.ErrCorrupted)
}
