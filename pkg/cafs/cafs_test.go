package cafs

import (
	"bytes"
	"context"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage"
	"github.com/oneconcern/heraclitus/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupFs(t testing.TB, opts ...Option) (Fs, afero.Fs) {
	mfs := afero.NewMemMapFs()
	backend, err := localfs.New(mfs)
	require.NoError(t, err)
	fs, err := New(append([]Option{Backend(backend)}, opts...)...)
	require.NoError(t, err)
	return fs, mfs
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	fs, mfs := setupFs(t, Prefix("payloads"))

	payload := []byte{0x01, 0x02, 0xff}
	res, err := fs.Put(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, model.HashBytes(payload), res.Key)
	assert.EqualValues(t, 3, res.Written)
	assert.False(t, res.Found)

	hex := res.Key.String()
	exists, err := afero.Exists(mfs, "payloads/"+hex[:2]+"/"+hex)
	require.NoError(t, err)
	assert.True(t, exists)

	again, err := fs.Put(ctx, append([]byte(nil), payload...))
	require.NoError(t, err)
	assert.True(t, again.Found)
	assert.Equal(t, res.Key, again.Key)

	got, err := fs.Get(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	has, err := fs.Has(ctx, res.Key)
	require.NoError(t, err)
	assert.True(t, has)

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Hash{res.Key}, keys)

	require.NoError(t, fs.Delete(ctx, res.Key))
	_, err = fs.Get(ctx, res.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetVerifiesHash(t *testing.T) {
	ctx := context.Background()
	fs, mfs := setupFs(t, CacheSize(0))

	res, err := fs.Put(ctx, []byte("genuine"))
	require.NoError(t, err)

	hex := res.Key.String()
	require.NoError(t, afero.WriteFile(mfs, hex[:2]+"/"+hex, []byte("tampered"), 0600))

	_, err = fs.Get(ctx, res.Key)
	assert.ErrorIs(t, err, storage.ErrCorrupted)
}

func TestPutTooBig(t *testing.T) {
	fs, _ := setupFs(t, MaxPayloadSize(4))

	_, err := fs.Put(context.Background(), bytes.Repeat([]byte{0}, 5))
	assert.ErrorIs(t, err, storage.ErrObjectTooBig)
}

func TestEmptyPayload(t *testing.T) {
	ctx := context.Background()
	fs, _ := setupFs(t)

	res, err := fs.Put(ctx, []byte{})
	require.NoError(t, err)
	got, err := fs.Get(ctx, res.Key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	fs, _ := setupFs(t)

	res, err := fs.Put(ctx, []byte("to be cleared"))
	require.NoError(t, err)
	require.NoError(t, fs.Clear(ctx))

	has, err := fs.Has(ctx, res.Key)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestNoBackend(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}
