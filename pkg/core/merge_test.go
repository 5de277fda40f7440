package core_test

import (
	"context"
	"sort"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// concatBlob resolves conflicts by concatenating the contents of the candidates, by version id
type concatBlob struct {
	datatype.Blob
}

func (concatBlob) ResolveConflict(ctx context.Context, h core.Handle, merge *model.Version, partition uint64, candidates model.Versions) error {
	sorted := append(model.Versions(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var content []byte
	for _, c := range sorted {
		part, err := datatype.ReadBlob(ctx, h, c.ID, partition)
		if err != nil {
			return err
		}
		content = append(content, part...)
	}
	_, err := datatype.WriteBlob(ctx, h, merge.ID, partition, content)
	return err
}

type mergeFixture struct {
	*testEnv
	pg partitionedGraph
	p1 *model.Version
	a1 *model.Version
}

// newMergeFixture commits a blob with two partitions: "aa" and "bb"
func newMergeFixture(t *testing.T, catalog core.Catalog) *mergeFixture {
	e := newEnvWith(t, memoryStore, catalog)
	f := &mergeFixture{testEnv: e, pg: e.partitioned()}
	f.p1 = e.commitPartitions(f.pg.partitioning.ID, 0, 1)
	f.a1 = e.commit(e.stage(f.pg.blob.ID, map[uint64][]byte{0: []byte("aa"), 1: []byte("bb")}, core.WithDependencies(f.p1.ID)).ID)
	return f
}

func (f *mergeFixture) change(parent *model.Version, partition uint64, content string) *model.Version {
	return f.commit(f.stage(f.pg.blob.ID, map[uint64][]byte{partition: []byte(content)},
		core.WithParents(parent.ID),
		core.WithDependencies(f.p1.ID),
	).ID)
}

func (f *mergeFixture) merge(inputs []string, opts ...core.MergeOption) *core.MergeResult {
	res, err := f.s.Merge(f.ctx, f.pg.blob.ID, inputs, opts...)
	require.NoError(f.t, err)
	return res
}

func TestMergeDisjoint(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 1, "yy")

	res := f.merge([]string{a2.ID, a3.ID}, core.WithMergeMessage("disjoint"))
	assert.Empty(t, res.Pending)
	assert.Equal(t, []uint64{0, 1}, res.Resolved)
	assert.Equal(t, model.Delta, res.Version.Representation)
	assert.Equal(t, []string{a2.ID, a3.ID}, res.Version.Parents)
	assert.True(t, res.Version.DependsOnVersion(f.p1.ID))

	m := f.commit(res.Version.ID)
	assert.True(t, m.IsMerge())
	assert.Equal(t, []byte("xx"), f.read(m.ID, 0))
	assert.Equal(t, []byte("yy"), f.read(m.ID, 1))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.s.Metrics().Conflicts))
}

func TestMergeDominance(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 1, "yy")
	a4 := f.change(a2, 0, "xy")

	res := f.merge([]string{a2.ID, a3.ID, a4.ID})
	assert.Empty(t, res.Pending)

	m := f.commit(res.Version.ID)
	assert.Equal(t, []byte("xy"), f.read(m.ID, 0))
	assert.Equal(t, []byte("yy"), f.read(m.ID, 1))

	t.Run("merged again", func(t *testing.T) {
		a5 := f.change(m, 1, "yz")
		res := f.merge([]string{a5.ID, a4.ID})
		assert.Empty(t, res.Pending)
		merged := f.commit(res.Version.ID)
		assert.Equal(t, []byte("xy"), f.read(merged.ID, 0))
		assert.Equal(t, []byte("yz"), f.read(merged.ID, 1))
	})
}

func TestMergeConflict(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 0, "zz")

	t.Run("conflicts are pending", func(t *testing.T) {
		res := f.merge([]string{a2.ID, a3.ID})
		assert.Equal(t, []uint64{0}, res.Pending)
		assert.Empty(t, res.Resolved)

		_, err := f.s.CommitVersion(f.ctx, res.Version.ID)
		require.Error(t, err)
		var conflict *core.MergeConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, res.Version.ID, conflict.VersionID)
		assert.Equal(t, []uint64{0}, conflict.Partitions)
		assert.True(t, errors.Is(err, status.ErrMergeConflict))

		v, err := f.s.GetVersion(f.ctx, res.Version.ID)
		require.NoError(t, err)
		assert.False(t, v.IsCommitted())

		pending, err := f.s.Conflicts(f.ctx, res.Version.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0}, pending)
	})

	t.Run("resolved with a state", func(t *testing.T) {
		res := f.merge([]string{a2.ID, a3.ID})
		_, err := datatype.WriteBlob(f.ctx, f.s, res.Version.ID, 0, []byte("ww"))
		require.NoError(t, err)

		pending, err := f.s.Conflicts(f.ctx, res.Version.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)

		m := f.commit(res.Version.ID)
		assert.Equal(t, []byte("ww"), f.read(m.ID, 0))
		assert.Equal(t, []byte("bb"), f.read(m.ID, 1))
	})

	t.Run("resolved with a precedence", func(t *testing.T) {
		res := f.merge([]string{a2.ID, a3.ID})
		require.NoError(t, f.s.SetPrecedence(f.ctx, res.Version.ID, 0, a3.ID))

		m := f.commit(res.Version.ID)
		assert.Equal(t, []byte("zz"), f.read(m.ID, 0))
	})

	t.Run("resolved with a precedence and a delta", func(t *testing.T) {
		res := f.merge([]string{a2.ID, a3.ID})
		require.NoError(t, f.s.SetPrecedence(f.ctx, res.Version.ID, 0, a2.ID))
		f.writeDelta(res.Version.ID, 0, model.Delta, "xx", "xxx")

		m := f.commit(res.Version.ID)
		assert.Equal(t, []byte("xxx"), f.read(m.ID, 0))
	})

	t.Run("latest commit wins", func(t *testing.T) {
		res := f.merge([]string{a2.ID, a3.ID}, core.WithConflictMode(core.ResolveConflicts))
		assert.Empty(t, res.Pending)
		assert.Equal(t, []uint64{0}, res.Resolved)

		m := f.commit(res.Version.ID)
		assert.Equal(t, []byte("zz"), f.read(m.ID, 0))
	})

	assert.Equal(t, float64(5), testutil.ToFloat64(f.s.Metrics().Conflicts))
}

func TestMergeConflictResolver(t *testing.T) {
	catalog, err := datatype.NewCatalog(concatBlob{}, datatype.ArbitraryPartitioning{})
	require.NoError(t, err)
	f := newMergeFixture(t, catalog)
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 0, "zz")

	res := f.merge([]string{a3.ID, a2.ID}, core.WithConflictMode(core.ResolveConflicts))
	assert.Empty(t, res.Pending)

	m := f.commit(res.Version.ID)
	expected := []byte("xxzz")
	if a3.ID < a2.ID {
		expected = []byte("zzxx")
	}
	assert.Equal(t, expected, f.read(m.ID, 0))
}

func TestMergeAfterResolution(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 0, "zz")

	resolve := func(precedent *model.Version) *model.Version {
		res := f.merge([]string{a2.ID, a3.ID})
		require.NoError(t, f.s.SetPrecedence(f.ctx, res.Version.ID, 0, precedent.ID))
		return f.commit(res.Version.ID)
	}
	m1 := resolve(a2)
	a4 := f.change(a3, 1, "yy")

	for _, mode := range []core.ConflictMode{core.ForbidConflicts, core.ResolveConflicts} {
		t.Run(mode.String(), func(t *testing.T) {
			res := f.merge([]string{m1.ID, a4.ID}, core.WithConflictMode(mode))
			assert.Empty(t, res.Pending)
			assert.Equal(t, []uint64{0, 1}, res.Resolved)

			m := f.commit(res.Version.ID)
			assert.Equal(t, []byte("xx"), f.read(m.ID, 0), "the earlier resolution is kept")
			assert.Equal(t, []byte("yy"), f.read(m.ID, 1))
		})
	}

	t.Run("crossed resolutions conflict", func(t *testing.T) {
		x := resolve(a3)
		y := resolve(a2)
		res := f.merge([]string{x.ID, y.ID})
		assert.Equal(t, []uint64{0}, res.Pending)
	})
}

func TestMergeStateOnlyKind(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	v, err := f.s.CreateStagingVersion(f.ctx, f.pg.partitioning.ID, core.WithParents(f.p1.ID))
	require.NoError(t, err)
	_, err = datatype.WritePartitions(f.ctx, f.s, v.ID, 0, 1, 2)
	require.NoError(t, err)
	p2 := f.commit(v.ID)

	res, err := f.s.Merge(f.ctx, f.pg.partitioning.ID, []string{f.p1.ID, p2.ID})
	require.NoError(t, err)
	assert.Equal(t, model.State, res.Version.Representation)
	assert.Empty(t, res.Pending)

	hunks, err := f.s.Hunks(f.ctx, res.Version.ID)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.True(t, hunks[0].IsSufficient())

	m := f.commit(res.Version.ID)
	state, err := f.s.Materialize(f.ctx, m.ID, model.UnaryPartition)
	require.NoError(t, err)
	partitions, err := datatype.DecodePartitions(state)
	require.NoError(t, err)
	assert.Equal(t, model.Partitions{0, 1, 2}, partitions)
}

func TestMergeInputs(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	staging := f.stage(f.pg.blob.ID, nil, core.WithParents(f.a1.ID), core.WithDependencies(f.p1.ID))

	for name, inputs := range map[string][]string{
		"single input":     {a2.ID},
		"duplicate inputs": {a2.ID, a2.ID},
		"other artifact":   {a2.ID, f.p1.ID},
		"staging input":    {a2.ID, staging.ID},
	} {
		_, err := f.s.Merge(f.ctx, f.pg.blob.ID, inputs)
		assert.True(t, errors.Is(err, status.ErrMergeInputs), name)
	}
}

func TestSetPrecedence(t *testing.T) {
	f := newMergeFixture(t, datatype.Default())
	a2 := f.change(f.a1, 0, "xx")
	a3 := f.change(f.a1, 0, "zz")
	unrelated := f.commit(f.stage(f.pg.blob.ID, map[uint64][]byte{0: []byte("uu")}, core.WithDependencies(f.p1.ID)).ID)

	res := f.merge([]string{a2.ID, a3.ID})
	err := f.s.SetPrecedence(f.ctx, res.Version.ID, 0, unrelated.ID)
	assert.True(t, errors.Is(err, status.ErrInvalidHunk))

	err = f.s.SetPrecedence(f.ctx, res.Version.ID, 7, a2.ID)
	assert.True(t, errors.Is(err, status.ErrUnknownPartition))

	// state versions hold no precedence
	err = f.s.SetPrecedence(f.ctx, a3.ID, 0, f.a1.ID)
	assert.True(t, errors.Is(err, status.ErrVersionCommitted))
	v := f.stage(f.pg.blob.ID, nil, core.WithParents(a3.ID), core.WithDependencies(f.p1.ID))
	err = f.s.SetPrecedence(f.ctx, v.ID, 0, f.a1.ID)
	assert.True(t, errors.Is(err, status.ErrInvalidHunk))
}
