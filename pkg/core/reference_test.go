package core_test

import (
	"testing"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingGraph struct {
	x, y, tracker, ref *model.Artifact
}

// tracking builds a ref with a tracking branch following the blobs x and y
func (e *testEnv) tracking(opts ...model.ArtifactOption) trackingGraph {
	g := core.CreateGraph()
	var tg trackingGraph
	tg.x = e.addArtifact(g, model.KindBlob, "x")
	tg.y = e.addArtifact(g, model.KindBlob, "y")
	tg.ref = e.addArtifact(g, model.KindRef, "blobs", opts...)
	tracker, err := g.AddProducerArtifact(model.KindTrackingBranch, "tracker", []model.PolicyKind{model.CustomPolicy},
		model.ArtifactParam(datatype.BranchParam, "main"))
	require.NoError(e.t, err)
	tg.tracker = tracker

	e.addEdge(g, tg.x, tg.tracker, model.ProducerDependency, "x")
	e.addEdge(g, tg.y, tg.tracker, model.ProducerDependency, "y")
	e.addEdge(g, tg.x, tg.ref, model.DtypeDependency, "x")
	e.addEdge(g, tg.y, tg.ref, model.DtypeDependency, "y")
	e.addEdge(g, tg.tracker, tg.ref, model.ProducerDependency, "ref")
	e.write(g)
	return tg
}

func (e *testEnv) resolve(specifier string) string {
	id, err := e.s.Resolve(e.ctx, specifier)
	require.NoError(e.t, err, specifier)
	return id
}

func TestTrackingBranch(t *testing.T) {
	for name, factory := range backends {
		factory := factory
		t.Run(name, func(t *testing.T) {
			e := newEnvWith(t, factory, datatype.Default())
			tg := e.tracking(model.ArtifactParam(core.HeadParam, "main"))

			x1 := e.commitBlob(tg.x.ID, []byte("x1"))
			_, err := e.s.Branch(e.ctx, tg.ref.ID, "main")
			assert.True(t, errors.Is(err, status.ErrNotFound), "the branch waits for every tracked artifact")

			y1 := e.commitBlob(tg.y.ID, []byte("y1"))
			b, err := e.s.Branch(e.ctx, tg.ref.ID, "main")
			require.NoError(t, err)
			r1, err := e.s.GetVersion(e.ctx, b.VersionID)
			require.NoError(t, err)
			assert.True(t, r1.IsCommitted())
			assert.True(t, r1.DependsOnVersion(x1.ID))
			assert.True(t, r1.DependsOnVersion(y1.ID))
			assert.Empty(t, r1.Parents)

			assert.Equal(t, x1.ID, e.resolve("blobs/main/x"))
			assert.Equal(t, y1.ID, e.resolve("blobs/HEAD/y"))
			assert.Equal(t, r1.ID, e.resolve("blobs/main"))

			x2 := e.commitBlob(tg.x.ID, []byte("x2"), core.WithParents(x1.ID))
			b, err = e.s.Branch(e.ctx, tg.ref.ID, "HEAD")
			require.NoError(t, err)
			assert.NotEqual(t, r1.ID, b.VersionID)

			assert.Equal(t, x2.ID, e.resolve("blobs/main/x"))
			assert.Equal(t, y1.ID, e.resolve("blobs/main/y"))
			assert.Equal(t, x1.ID, e.resolve("blobs/main~1/x"))
			assert.Equal(t, r1.ID, e.resolve("blobs/HEAD~"))

			_, err = e.s.Resolve(e.ctx, "blobs/main~2")
			assert.True(t, errors.Is(err, status.ErrNotFound))

			// an unrelated root version of a tracked artifact does not move the branch
			tip := b.VersionID
			e.commitBlob(tg.y.ID, []byte("unrelated"))
			b, err = e.s.Branch(e.ctx, tg.ref.ID, "main")
			require.NoError(t, err)
			assert.Equal(t, tip, b.VersionID)
		})
	}
}

func TestTrackingBranchMovedByHand(t *testing.T) {
	e := newEnv(t)
	tg := e.tracking()

	x1 := e.commitBlob(tg.x.ID, []byte("x1"))
	e.commitBlob(tg.y.ID, []byte("y1"))
	b, err := e.s.Branch(e.ctx, tg.ref.ID, "main")
	require.NoError(t, err)

	manual := e.commit(e.stage(tg.ref.ID, nil, core.WithParents(b.VersionID)).ID)
	_, err = e.s.SetBranch(e.ctx, tg.ref.ID, "main", manual.ID)
	require.NoError(t, err)

	e.commitBlob(tg.x.ID, []byte("x2"), core.WithParents(x1.ID))
	b, err = e.s.Branch(e.ctx, tg.ref.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, manual.ID, b.VersionID)
}

func TestBranches(t *testing.T) {
	e := newEnv(t)
	tg := e.tracking()

	_, err := e.s.Branches(e.ctx, tg.x.ID)
	assert.True(t, errors.Is(err, status.ErrNotReference))

	r1 := e.commit(e.stage(tg.ref.ID, nil).ID)
	r2 := e.commit(e.stage(tg.ref.ID, nil, core.WithParents(r1.ID)).ID)
	staging := e.stage(tg.ref.ID, nil, core.WithParents(r2.ID))
	x1 := e.commitBlob(tg.x.ID, []byte("x1"))

	b, err := e.s.CreateBranch(e.ctx, tg.ref.ID, "dev", r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev", b.Name)
	assert.Equal(t, r1.ID, b.VersionID)

	_, err = e.s.CreateBranch(e.ctx, tg.ref.ID, "dev", r2.ID)
	assert.True(t, errors.Is(err, status.ErrBranchExists))

	_, err = e.s.CreateBranch(e.ctx, tg.ref.ID, "HEAD", r1.ID)
	assert.True(t, errors.Is(err, status.ErrInvalidSpecifier))
	_, err = e.s.CreateBranch(e.ctx, tg.ref.ID, "a/b", r1.ID)
	assert.True(t, errors.Is(err, status.ErrInvalidSpecifier))
	_, err = e.s.CreateBranch(e.ctx, tg.ref.ID, "other", x1.ID)
	assert.True(t, errors.Is(err, status.ErrNotReference))
	_, err = e.s.CreateBranch(e.ctx, tg.ref.ID, "other", staging.ID)
	assert.True(t, errors.Is(err, status.ErrVersionState))
	_, err = e.s.CreateBranch(e.ctx, tg.x.ID, "other", x1.ID)
	assert.True(t, errors.Is(err, status.ErrNotReference))

	_, err = e.s.SetBranch(e.ctx, tg.ref.ID, "dev", r2.ID)
	require.NoError(t, err)
	_, err = e.s.SetBranch(e.ctx, tg.ref.ID, "release", r1.ID)
	require.NoError(t, err, "setting a missing branch creates it")

	branches, err := e.s.Branches(e.ctx, tg.ref.ID)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "dev", branches[0].Name)
	assert.Equal(t, r2.ID, branches[0].VersionID)
	assert.Equal(t, "release", branches[1].Name)

	assert.Equal(t, r1.ID, e.resolve("blobs/dev~1"))
	_, err = e.s.Resolve(e.ctx, "blobs/HEAD")
	assert.True(t, errors.Is(err, status.ErrNotFound), "HEAD designates master, which does not exist")
	_, err = e.s.Resolve(e.ctx, "x/main")
	assert.True(t, errors.Is(err, status.ErrNotReference))
	_, err = e.s.Resolve(e.ctx, "nope/main")
	assert.True(t, errors.Is(err, status.ErrUnknownArtifact))
	_, err = e.s.Resolve(e.ctx, "blobs/dev/nope")
	assert.True(t, errors.Is(err, status.ErrUnknownArtifact))
	_, err = e.s.Resolve(e.ctx, "blobs/dev/x")
	assert.True(t, errors.Is(err, status.ErrNotFound), "dev does not pin x")
	_, err = e.s.Resolve(e.ctx, "blobs")
	assert.True(t, errors.Is(err, status.ErrInvalidSpecifier))
}

func TestResolveID(t *testing.T) {
	e := newEnv(t)
	blob := e.singleBlob()
	a1 := e.commitBlob(blob.ID, []byte("a1"))
	a2 := e.commitBlob(blob.ID, []byte("a2"))

	assert.Equal(t, a1.ID, e.resolve("#"+a1.ID))
	_, err := e.s.Resolve(e.ctx, "#"+model.NewID())
	assert.True(t, errors.Is(err, status.ErrNotFound))

	common := 0
	for common < len(a1.ID) && a1.ID[common] == a2.ID[common] {
		common++
	}
	assert.Equal(t, a1.ID, e.resolve("#"+a1.ID[:common+1]))
	assert.Equal(t, a2.ID, e.resolve("#"+a2.ID[:common+1]))

	if common > 0 {
		_, err = e.s.Resolve(e.ctx, "#"+a1.ID[:common])
		assert.True(t, errors.Is(err, status.ErrAmbiguous))
	}
	_, err = e.s.Resolve(e.ctx, "#zzzz")
	assert.True(t, errors.Is(err, status.ErrNotFound))
}
