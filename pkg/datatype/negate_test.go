package datatype_test

import (
	"context"
	"testing"

	"github.com/oneconcern/heraclitus/pkg/cafs"
	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage/localfs"
	"github.com/oneconcern/heraclitus/pkg/store/sqlite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t testing.TB) *core.Session {
	st := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { _ = st.Close() })

	backend, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	payloads, err := cafs.New(cafs.Backend(backend))
	require.NoError(t, err)

	s, err := core.NewSession(context.Background(), st, payloads, datatype.Default(), core.ProducerRetries(0))
	require.NoError(t, err)
	return s
}

func TestNegatePartitioned(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	g := core.CreateGraph()
	part, err := g.AddArtifact(model.KindArbitraryPartitioning, "partitioning")
	require.NoError(t, err)
	input, err := g.AddArtifact(model.KindBlob, "input")
	require.NoError(t, err)
	neg, err := g.AddProducerArtifact(model.KindNegateBlob, "negate", nil)
	require.NoError(t, err)
	output, err := g.AddArtifact(model.KindBlob, "output")
	require.NoError(t, err)
	for _, e := range []struct {
		source, dependent *model.Artifact
		kind              model.EdgeKind
		name              string
	}{
		{part, input, model.DtypeDependency, "partitioning"},
		{part, output, model.DtypeDependency, "partitioning"},
		{input, neg, model.ProducerDependency, datatype.InputEdge},
		{neg, output, model.ProducerDependency, datatype.OutputEdge},
	} {
		_, err := g.AddEdge(e.source.ID, e.dependent.ID, e.kind, e.name)
		require.NoError(t, err)
	}
	require.NoError(t, s.WriteGraph(ctx, g))

	p, err := s.CreateStagingVersion(ctx, part.ID)
	require.NoError(t, err)
	_, err = datatype.WritePartitions(ctx, s, p.ID, 0, 7)
	require.NoError(t, err)
	p1, err := s.CommitVersion(ctx, p.ID)
	require.NoError(t, err)

	v, err := s.CreateStagingVersion(ctx, input.ID, core.WithDependencies(p1.ID))
	require.NoError(t, err)
	_, err = datatype.WriteBlob(ctx, s, v.ID, 0, []byte{0x01})
	require.NoError(t, err)
	_, err = datatype.WriteBlob(ctx, s, v.ID, 7, []byte{0x70, 0x07})
	require.NoError(t, err)
	_, err = s.CommitVersion(ctx, v.ID)
	require.NoError(t, err)

	outputs, err := s.ListVersions(ctx, output.ID)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	out := outputs[0]
	assert.True(t, out.IsCommitted())
	assert.True(t, out.DependsOnVersion(p1.ID), "outputs share the partitioning of the input")

	content, err := datatype.ReadBlob(ctx, s, out.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe}, content)
	content, err = datatype.ReadBlob(ctx, s, out.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x8f, 0xf8}, content)
}

func TestTrackingBranchWithoutRef(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	g := core.CreateGraph()
	x, err := g.AddArtifact(model.KindBlob, "x")
	require.NoError(t, err)
	tracker, err := g.AddProducerArtifact(model.KindTrackingBranch, "tracker", []model.PolicyKind{model.CustomPolicy})
	require.NoError(t, err)
	_, err = g.AddEdge(x.ID, tracker.ID, model.ProducerDependency, "x")
	require.NoError(t, err)
	require.NoError(t, s.WriteGraph(ctx, g))

	v, err := s.CreateStagingVersion(ctx, x.ID)
	require.NoError(t, err)
	_, err = datatype.WriteBlob(ctx, s, v.ID, model.UnaryPartition, []byte("x"))
	require.NoError(t, err)
	_, err = s.CommitVersion(ctx, v.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotReference))
	assert.True(t, errors.Is(err, status.ErrProduction))
}
