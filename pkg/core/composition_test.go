package core_test

import (
	"fmt"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func (e *testEnv) singleBlob() *model.Artifact {
	g := core.CreateGraph()
	a := e.addArtifact(g, model.KindBlob, "blob")
	e.write(g)
	return a
}

func (e *testEnv) writeDelta(versionID string, partition uint64, representation model.Representation, from, to string) {
	d, err := datatype.Diff([]byte(from), []byte(to))
	require.NoError(e.t, err)
	payload, err := datatype.EncodeDelta(d)
	require.NoError(e.t, err)
	_, err = e.s.WriteHunk(e.ctx, core.HunkSpec{
		VersionID:      versionID,
		Partition:      partition,
		Representation: representation,
		Payload:        payload,
	})
	require.NoError(e.t, err)
}

func (e *testEnv) stageDelta(artifactID string, representation model.Representation, from, to string, parents ...string) *model.Version {
	v, err := e.s.CreateStagingVersion(e.ctx, artifactID, core.WithParents(parents...), core.WithRepresentation(representation))
	require.NoError(e.t, err)
	e.writeDelta(v.ID, model.UnaryPartition, representation, from, to)
	return v
}

func hunkVersions(hunks model.Hunks) []string {
	ids := make([]string, 0, len(hunks))
	for _, h := range hunks {
		ids = append(ids, h.VersionID)
	}
	return ids
}

func TestMaterializeDeltaAndState(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()

	a1 := e.commitBlob(blob.ID, []byte("hello"))
	a2 := e.commit(e.stageDelta(blob.ID, model.Delta, "hello", "jello!", a1.ID).ID)
	a3 := e.commitBlob(blob.ID, []byte("jello!"))

	assert.Equal(t, []byte("hello"), e.read(a1.ID, model.UnaryPartition))
	assert.Equal(t, e.read(a3.ID, model.UnaryPartition), e.read(a2.ID, model.UnaryPartition))

	comp, err := e.s.Composition(e.ctx, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID}, hunkVersions(comp[model.UnaryPartition]))
	tip, ok := comp.Tip(model.UnaryPartition)
	require.True(t, ok)
	assert.Equal(t, a2.ID, tip)

	t.Run("staging versions materialize too", func(t *testing.T) {
		v := e.stageDelta(blob.ID, model.Delta, "jello!", "jelly!", a2.ID)
		assert.Equal(t, []byte("jelly!"), e.read(v.ID, model.UnaryPartition))
	})

	t.Run("the nearest state wins", func(t *testing.T) {
		a4 := e.commitBlob(blob.ID, []byte("world"), core.WithParents(a2.ID))
		comp, err := e.s.Composition(e.ctx, a4.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{a4.ID}, hunkVersions(comp[model.UnaryPartition]))
	})
}

func TestMaterializeRaggedState(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()

	a1 := e.commitBlob(blob.ID, []byte("abcdef"))
	v, err := e.s.CreateStagingVersion(e.ctx, blob.ID, core.WithParents(a1.ID))
	require.NoError(t, err)
	payload, err := datatype.EncodeBlob([]byte("XY"))
	require.NoError(t, err)
	hunk, err := e.s.WriteHunk(e.ctx, core.HunkSpec{
		VersionID:  v.ID,
		Partition:  model.UnaryPartition,
		Completion: model.Ragged,
		Payload:    payload,
	})
	require.NoError(t, err)
	assert.Equal(t, model.State, hunk.Representation)
	assert.False(t, hunk.IsSufficient())

	a2 := e.commit(v.ID)
	assert.Equal(t, []byte("XYcdef"), e.read(a2.ID, model.UnaryPartition))
}

func TestMaterializeCumulativeDelta(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()

	a1 := e.commitBlob(blob.ID, []byte("aaaa"))
	a2 := e.commit(e.stageDelta(blob.ID, model.Delta, "aaaa", "baaa", a1.ID).ID)
	// cumulative deltas are relative to the last state
	a3 := e.commit(e.stageDelta(blob.ID, model.CumulativeDelta, "aaaa", "bbca", a2.ID).ID)
	a4 := e.commit(e.stageDelta(blob.ID, model.Delta, "bbca", "bbcd", a3.ID).ID)

	comp, err := e.s.Composition(e.ctx, a4.ID, model.UnaryPartition)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a3.ID, a4.ID}, hunkVersions(comp[model.UnaryPartition]), "older deltas are superseded")

	assert.Equal(t, []byte("baaa"), e.read(a2.ID, model.UnaryPartition))
	assert.Equal(t, []byte("bbca"), e.read(a3.ID, model.UnaryPartition))
	assert.Equal(t, []byte("bbcd"), e.read(a4.ID, model.UnaryPartition))

	t.Run("cumulative versions reject deltas", func(t *testing.T) {
		v, err := e.s.CreateStagingVersion(e.ctx, blob.ID, core.WithParents(a4.ID), core.WithRepresentation(model.CumulativeDelta))
		require.NoError(t, err)
		payload, err := datatype.EncodeDelta(datatype.Delta{Indices: []uint64{0}, Bytes: []byte("z")})
		require.NoError(t, err)
		_, err = e.s.WriteHunk(e.ctx, core.HunkSpec{
			VersionID:      v.ID,
			Representation: model.Delta,
			Payload:        payload,
		})
		assert.True(t, errors.Is(err, status.ErrInvalidHunk))
	})
}

func TestIncompleteHistory(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()

	orphan := e.commit(e.stageDelta(blob.ID, model.Delta, "", "abc").ID)
	_, err := e.s.Materialize(e.ctx, orphan.ID, model.UnaryPartition)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrIncompleteHistory))

	child := e.commit(e.stageDelta(blob.ID, model.Delta, "abc", "abd", orphan.ID).ID)
	_, err = e.s.Composition(e.ctx, child.ID)
	assert.True(t, errors.Is(err, status.ErrIncompleteHistory))

	empty := e.commit(e.stage(blob.ID, nil).ID)
	_, err = e.s.Materialize(e.ctx, empty.ID, model.UnaryPartition)
	assert.True(t, errors.Is(err, status.ErrNotFound), "a partition without content is absent")

	all, err := e.s.MaterializeAll(e.ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMaterializePartitions(t *testing.T) {
	e := newEnv(t)
	pg := e.partitioned()

	p1 := e.commitPartitions(pg.partitioning.ID, 1, 0)
	partitions, err := e.s.Partitions(e.ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Partitions{model.UnaryPartition}, partitions, "partitionings partition themselves with the unary partition")

	a1 := e.stage(pg.blob.ID, map[uint64][]byte{0: []byte("zero")}, core.WithDependencies(p1.ID))
	e.commit(a1.ID)

	partitions, err = e.s.Partitions(e.ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Partitions{0, 1}, partitions)

	assert.Equal(t, []byte("zero"), e.read(a1.ID, 0))
	_, err = e.s.Materialize(e.ctx, a1.ID, 1)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, err = e.s.Materialize(e.ctx, a1.ID, 5)
	assert.True(t, errors.Is(err, status.ErrUnknownPartition))

	all, err := e.s.MaterializeAll(e.ctx, a1.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	content, err := datatype.DecodeBlob(all[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("zero"), content)
}

func TestMaterializeAllConcurrently(t *testing.T) {
	e := newEnv(t, core.Concurrency(4))
	pg := e.partitioned()

	const n = 40
	ids := make([]uint64, 0, n)
	contents := make(map[uint64][]byte, n)
	for i := uint64(0); i < n; i++ {
		ids = append(ids, i)
		contents[i] = []byte(fmt.Sprintf("partition %d", i))
	}
	p1 := e.commitPartitions(pg.partitioning.ID, ids...)
	a1 := e.commit(e.stage(pg.blob.ID, contents, core.WithDependencies(p1.ID)).ID)

	ignore := goleak.IgnoreCurrent()
	all, err := e.s.MaterializeAll(e.ctx, a1.ID)
	require.NoError(t, err)
	goleak.VerifyNone(t, ignore)

	require.Len(t, all, n)
	for p, state := range all {
		content, err := datatype.DecodeBlob(state)
		require.NoError(t, err)
		assert.Equal(t, contents[p], content)
	}
}

func TestCompositionTieBreak(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()

	root := e.commitBlob(blob.ID, []byte("root"))
	older := e.commitBlob(blob.ID, []byte("older"), core.WithParents(root.ID))
	newer := e.commitBlob(blob.ID, []byte("newer"), core.WithParents(root.ID))
	require.True(t, newer.CreatedAt.After(older.CreatedAt))

	for _, parents := range [][]string{{older.ID, newer.ID}, {newer.ID, older.ID}} {
		v, err := e.s.CreateStagingVersion(e.ctx, blob.ID, core.WithParents(parents...), core.WithRepresentation(model.Delta))
		require.NoError(t, err)

		assert.Equal(t, []byte("newer"), e.read(v.ID, model.UnaryPartition))
		comp, err := e.s.Composition(e.ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{newer.ID}, hunkVersions(comp[model.UnaryPartition]))
	}

	t.Run("a newer state further away wins", func(t *testing.T) {
		far := e.commitBlob(blob.ID, []byte("far"), core.WithParents(root.ID))
		mid := e.commit(e.stageDelta(blob.ID, model.Delta, "far", "fat", far.ID).ID)

		v, err := e.s.CreateStagingVersion(e.ctx, blob.ID, core.WithParents(newer.ID, mid.ID), core.WithRepresentation(model.Delta))
		require.NoError(t, err)

		assert.Equal(t, []byte("fat"), e.read(v.ID, model.UnaryPartition))
		comp, err := e.s.Composition(e.ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{far.ID, mid.ID}, hunkVersions(comp[model.UnaryPartition]))
	})
}
