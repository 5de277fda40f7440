package localfs

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"github.com/oneconcern/heraclitus/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInMemory(t *testing.T) {
	storetest.Run(t, func(t testing.TB) (store.Store, func()) {
		s := New("", InMemory())
		require.NoError(t, s.Initialize())
		return s, func() { _ = s.Close() }
	})
}

func TestStoreOnDisk(t *testing.T) {
	storetest.Run(t, func(t testing.TB) (store.Store, func()) {
		td, err := ioutil.TempDir("", "hera-badger-")
		require.NoError(t, err)
		s := New(td)
		require.NoError(t, s.Initialize())
		return s, func() {
			_ = s.Close()
			os.RemoveAll(td)
		}
	})
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	td, err := ioutil.TempDir("", "hera-badger-")
	require.NoError(t, err)
	defer os.RemoveAll(td)

	g := model.NewArtifactGraph()
	_, err = g.AddArtifact(model.KindBlob, "blob")
	require.NoError(t, err)
	g.Freeze()

	st := New(td)
	require.NoError(t, st.Initialize())
	require.NoError(t, st.CreateGraph(ctx, g.Descriptor()))
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	st = New(td)
	require.NoError(t, st.Initialize())
	defer st.Close()

	loaded, err := st.GetGraph(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, g.Hash(), loaded.Hash)
}

func TestStoreClosed(t *testing.T) {
	st := New("", InMemory())
	_, err := st.GetVersion(context.Background(), model.NewID())
	assert.ErrorIs(t, err, store.ClosedStore)
}

func TestPartitionSuffix(t *testing.T) {
	assert.Equal(t, "00000000000000000000", partitionSuffix(0))
	assert.Equal(t, "00000000000000000042", partitionSuffix(42))
	assert.Equal(t, "18446744073709551615", partitionSuffix(^uint64(0)))
	assert.True(t, partitionSuffix(9) < partitionSuffix(10))
	assert.Equal(t, "hunk:abc:00000000000000000003", string(hunkKey("abc", 3)))
}
