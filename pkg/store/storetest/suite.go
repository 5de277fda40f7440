// Package storetest exercises any implementation of the metadata store with the same scenarios.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, initialized store and the function to dispose of it
type Factory func(testing.TB) (store.Store, func())

type fixture struct {
	graph  model.ArtifactGraphDescriptor
	input  model.Artifact
	negate model.Artifact
	output model.Artifact
}

func buildFixture(t testing.TB) fixture {
	g := model.NewArtifactGraph()
	input, err := g.AddArtifact(model.KindBlob, "input")
	require.NoError(t, err)
	neg, err := g.AddProducerArtifact(model.KindNegateBlob, "negate", model.DefaultPolicies)
	require.NoError(t, err)
	out, err := g.AddArtifact(model.KindBlob, "output")
	require.NoError(t, err)
	_, err = g.AddEdge(input.ID, neg.ID, model.ProducerDependency, "input")
	require.NoError(t, err)
	_, err = g.AddEdge(neg.ID, out.ID, model.ProducerDependency, "output")
	require.NoError(t, err)
	g.Freeze()

	return fixture{graph: g.Descriptor(), input: *input, negate: *neg, output: *out}
}

func setup(t *testing.T, factory Factory) (store.Store, fixture, func()) {
	s, done := factory(t)
	fx := buildFixture(t)
	require.NoError(t, s.CreateGraph(context.Background(), fx.graph))
	return s, fx, done
}

// Run the whole suite against a store implementation
func Run(t *testing.T, factory Factory) {
	t.Run("graphs", func(t *testing.T) { testGraphs(t, factory) })
	t.Run("dangling edges", func(t *testing.T) { testDanglingEdge(t, factory) })
	t.Run("policies", func(t *testing.T) { testPolicies(t, factory) })
	t.Run("versions", func(t *testing.T) { testVersions(t, factory) })
	t.Run("dangling relations", func(t *testing.T) { testDanglingVersion(t, factory) })
	t.Run("hunks", func(t *testing.T) { testHunks(t, factory) })
	t.Run("precedences", func(t *testing.T) { testPrecedences(t, factory) })
	t.Run("production records", func(t *testing.T) { testProductionRecords(t, factory) })
	t.Run("branches", func(t *testing.T) { testBranches(t, factory) })
}

func testGraphs(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	loaded, err := s.GetGraph(ctx, fx.graph.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.graph.ID, loaded.ID)
	assert.Equal(t, fx.graph.Hash, loaded.Hash)
	assert.Equal(t, fx.graph.Edges, loaded.Edges)
	require.Len(t, loaded.Artifacts, 3)
	for i, a := range fx.graph.Artifacts {
		assert.Equal(t, a.ID, loaded.Artifacts[i].ID)
		assert.Equal(t, a.Hash, loaded.Artifacts[i].Hash)
		assert.Equal(t, a.Kind, loaded.Artifacts[i].Kind)
	}
	assert.Equal(t, model.DefaultPolicies, loaded.Artifacts[1].Policies)

	g, err := model.NewArtifactGraphFromDescriptor(*loaded)
	require.NoError(t, err)
	assert.Equal(t, fx.graph.Hash, g.Hash())

	assert.ErrorIs(t, s.CreateGraph(ctx, fx.graph), store.AlreadyExists)

	ids, err := s.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{fx.graph.ID}, ids)

	_, err = s.GetGraph(ctx, model.NewID())
	assert.ErrorIs(t, err, store.NotFound)
}

func testDanglingEdge(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, done := factory(t)
	defer done()

	fx := buildFixture(t)
	desc := fx.graph
	desc.Artifacts = desc.Artifacts[:2]

	err := s.CreateGraph(ctx, desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.IntegrityViolation)

	_, err = s.GetGraph(ctx, desc.ID)
	assert.ErrorIs(t, err, store.NotFound)
	ids, err := s.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testPolicies(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	policies, err := s.GetProductionPolicies(ctx, fx.negate.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPolicies, policies)

	require.NoError(t, s.WriteProductionPolicies(ctx, fx.negate.ID, []model.PolicyKind{model.ExtantPolicy}))
	policies, err = s.GetProductionPolicies(ctx, fx.negate.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.PolicyKind{model.ExtantPolicy}, policies)

	err = s.WriteProductionPolicies(ctx, model.NewID(), []model.PolicyKind{model.ExtantPolicy})
	assert.ErrorIs(t, err, store.IntegrityViolation)
}

func testVersions(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	root := model.NewVersion(fx.input.ID, model.VersionCreatedAt(base), model.VersionMessage("root"))
	require.NoError(t, s.CreateVersion(ctx, root))
	assert.ErrorIs(t, s.CreateVersion(ctx, root), store.AlreadyExists)

	child := model.NewVersion(fx.input.ID,
		model.VersionCreatedAt(base.Add(time.Minute)),
		model.VersionParents(root.ID),
		model.VersionRepresentation(model.Delta),
	)
	require.NoError(t, s.CreateVersion(ctx, child))

	loaded, err := s.GetVersion(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Staging, loaded.Status)
	assert.Equal(t, model.Delta, loaded.Representation)
	assert.Equal(t, []string{root.ID}, loaded.Parents)
	assert.True(t, loaded.CreatedAt.Equal(child.CreatedAt))

	hash := model.HashBytes([]byte("root"))
	committedAt := base.Add(time.Hour)
	require.NoError(t, s.CommitVersion(ctx, root.ID, hash, committedAt))
	assert.ErrorIs(t, s.CommitVersion(ctx, root.ID, hash, committedAt), store.NotStaging)

	loaded, err = s.GetVersion(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsCommitted())
	assert.Equal(t, hash, loaded.Hash)
	assert.True(t, loaded.CommittedAt.Equal(committedAt))

	versions, err := s.ListVersions(ctx, fx.input.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, root.ID, versions[0].ID)
	assert.Equal(t, child.ID, versions[1].ID)

	versions, err = s.ListVersions(ctx, fx.output.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	ids, err := s.FindVersions(ctx, root.ID[:len(root.ID)-1])
	require.NoError(t, err)
	assert.Contains(t, ids, root.ID)

	_, err = s.GetVersion(ctx, model.NewID())
	assert.ErrorIs(t, err, store.NotFound)
	assert.ErrorIs(t, s.CommitVersion(ctx, model.NewID(), hash, committedAt), store.NotFound)
}

func testDanglingVersion(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	orphan := model.NewVersion(fx.input.ID, model.VersionParents(model.NewID()))
	assert.ErrorIs(t, s.CreateVersion(ctx, orphan), store.IntegrityViolation)
	_, err := s.GetVersion(ctx, orphan.ID)
	assert.ErrorIs(t, err, store.NotFound)

	unknown := model.NewVersion(model.NewID())
	assert.ErrorIs(t, s.CreateVersion(ctx, unknown), store.IntegrityViolation)

	dangling := model.NewVersion(fx.negate.ID, model.VersionDependencies(model.Dependency{
		VersionID:  model.NewID(),
		ArtifactID: fx.input.ID,
	}))
	assert.ErrorIs(t, s.CreateVersion(ctx, dangling), store.IntegrityViolation)

	versions, err := s.ListVersions(ctx, fx.input.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func newHunk(v *model.Version, partition uint64, payload string) *model.Hunk {
	h := &model.Hunk{
		ID:             model.NewID(),
		VersionID:      v.ID,
		Partition:      partition,
		Representation: model.State,
		Completion:     model.Complete,
		PayloadKey:     model.HashBytes([]byte(payload)),
		Size:           int64(len(payload)),
	}
	h.Hash = h.ContentHash()
	return h
}

func testHunks(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	v := model.NewVersion(fx.input.ID)
	require.NoError(t, s.CreateVersion(ctx, v))

	require.NoError(t, s.PutHunk(ctx, newHunk(v, 7, "seven")))
	require.NoError(t, s.PutHunk(ctx, newHunk(v, 2, "two")))
	replacement := newHunk(v, 7, "SEVEN")
	require.NoError(t, s.PutHunk(ctx, replacement))

	hunks, err := s.GetHunks(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, hunks, 2)
	assert.EqualValues(t, 2, hunks[0].Partition)
	assert.EqualValues(t, 7, hunks[1].Partition)
	assert.Equal(t, replacement.ID, hunks[1].ID)
	assert.Equal(t, replacement.PayloadKey, hunks[1].PayloadKey)

	hunks, err = s.GetHunks(ctx, v.ID, 7, 9)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.EqualValues(t, 7, hunks[0].Partition)

	require.NoError(t, s.CommitVersion(ctx, v.ID, model.HashBytes([]byte("v")), time.Now().UTC()))
	assert.ErrorIs(t, s.PutHunk(ctx, newHunk(v, 3, "three")), store.NotStaging)

	hunks, err = s.GetHunks(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, hunks, 2)

	missing := model.NewVersion(fx.input.ID)
	assert.ErrorIs(t, s.PutHunk(ctx, newHunk(missing, 0, "x")), store.NotFound)
}

func testPrecedences(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	a := model.NewVersion(fx.input.ID)
	require.NoError(t, s.CreateVersion(ctx, a))
	b := model.NewVersion(fx.input.ID)
	require.NoError(t, s.CreateVersion(ctx, b))
	m := model.NewVersion(fx.input.ID, model.VersionParents(a.ID, b.ID), model.VersionRepresentation(model.Delta))
	require.NoError(t, s.CreateVersion(ctx, m))

	require.NoError(t, s.PutPrecedence(ctx, model.HunkPrecedence{VersionID: m.ID, Partition: 4, PrecedentID: b.ID}))
	require.NoError(t, s.PutPrecedence(ctx, model.HunkPrecedence{VersionID: m.ID, Partition: 1, PrecedentID: a.ID}))
	require.NoError(t, s.PutPrecedence(ctx, model.HunkPrecedence{VersionID: m.ID, Partition: 4, PrecedentID: a.ID}))

	precedences, err := s.GetPrecedences(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.HunkPrecedence{
		{VersionID: m.ID, Partition: 1, PrecedentID: a.ID},
		{VersionID: m.ID, Partition: 4, PrecedentID: a.ID},
	}, precedences)

	err = s.PutPrecedence(ctx, model.HunkPrecedence{VersionID: m.ID, Partition: 2, PrecedentID: model.NewID()})
	assert.ErrorIs(t, err, store.IntegrityViolation)

	require.NoError(t, s.CommitVersion(ctx, m.ID, model.HashBytes([]byte("m")), time.Now().UTC()))
	err = s.PutPrecedence(ctx, model.HunkPrecedence{VersionID: m.ID, Partition: 2, PrecedentID: b.ID})
	assert.ErrorIs(t, err, store.NotStaging)
}

func testProductionRecords(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	in := model.NewVersion(fx.input.ID)
	require.NoError(t, s.CreateVersion(ctx, in))
	p := model.NewVersion(fx.negate.ID, model.VersionDependencies(model.Dependency{VersionID: in.ID, ArtifactID: fx.input.ID}))
	require.NoError(t, s.CreateVersion(ctx, p))

	record := model.ProductionRecord{
		VersionID: p.ID,
		Strategy: model.ProductionStrategy{
			Name:    "state",
			Inputs:  map[string]model.Representation{"input": model.State},
			Outputs: map[string]model.Representation{"output": model.State},
		},
	}
	require.NoError(t, s.WriteProductionRecord(ctx, record))

	loaded, err := s.GetProductionRecord(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, record, *loaded)

	_, err = s.GetProductionRecord(ctx, in.ID)
	assert.ErrorIs(t, err, store.NotFound)

	loadedVersion, err := s.GetVersion(ctx, p.ID)
	require.NoError(t, err)
	dep, ok := loadedVersion.DependencyOn(fx.input.ID)
	require.True(t, ok)
	assert.Equal(t, in.ID, dep)
}

func testBranches(t *testing.T, factory Factory) {
	ctx := context.Background()
	s, fx, done := setup(t, factory)
	defer done()

	v1 := model.NewVersion(fx.input.ID)
	require.NoError(t, s.CreateVersion(ctx, v1))
	v2 := model.NewVersion(fx.input.ID, model.VersionParents(v1.ID))
	require.NoError(t, s.CreateVersion(ctx, v2))

	ref := fx.output.ID
	now := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	master := model.Branch{RefArtifactID: ref, Name: "master", VersionID: v1.ID, UpdatedAt: now}
	require.NoError(t, s.CreateBranch(ctx, master))
	assert.ErrorIs(t, s.CreateBranch(ctx, master), store.AlreadyExists)
	require.NoError(t, s.CreateBranch(ctx, model.Branch{RefArtifactID: ref, Name: "dev", VersionID: v1.ID, UpdatedAt: now}))

	master.VersionID = v2.ID
	master.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateBranch(ctx, master))
	assert.ErrorIs(t, s.UpdateBranch(ctx, model.Branch{RefArtifactID: ref, Name: "nope", VersionID: v2.ID}), store.NotFound)

	loaded, err := s.GetBranch(ctx, ref, "master")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, loaded.VersionID)
	assert.True(t, loaded.UpdatedAt.Equal(master.UpdatedAt))

	_, err = s.GetBranch(ctx, ref, "nope")
	assert.ErrorIs(t, err, store.NotFound)

	branches, err := s.ListBranches(ctx, ref)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "dev", branches[0].Name)
	assert.Equal(t, "master", branches[1].Name)

	err = s.CreateBranch(ctx, model.Branch{RefArtifactID: ref, Name: "ghost", VersionID: model.NewID(), UpdatedAt: now})
	assert.ErrorIs(t, err, store.IntegrityViolation)
}
