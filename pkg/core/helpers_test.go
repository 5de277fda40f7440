package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oneconcern/heraclitus/pkg/cafs"
	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage/localfs"
	"github.com/oneconcern/heraclitus/pkg/store"
	"github.com/oneconcern/heraclitus/pkg/store/instrumented"
	metalocalfs "github.com/oneconcern/heraclitus/pkg/store/localfs"
	"github.com/oneconcern/heraclitus/pkg/store/sqlite"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t testing.TB) store.Store

func memoryStore(t testing.TB) store.Store {
	st := metalocalfs.New("", metalocalfs.InMemory())
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sqliteStore(t testing.TB) store.Store {
	st := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func tracedStore(t testing.TB) store.Store {
	return instrumented.New(mocktracer.New(), memoryStore(t))
}

var backends = map[string]storeFactory{
	"badger": memoryStore,
	"sqlite": sqliteStore,
	"traced": tracedStore,
}

// tickingClock returns a clock advancing by one second at every reading
func tickingClock() func() time.Time {
	var mx sync.Mutex
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mx.Lock()
		defer mx.Unlock()
		ts = ts.Add(time.Second)
		return ts
	}
}

type testEnv struct {
	t   testing.TB
	ctx context.Context
	s   *core.Session
	reg *prometheus.Registry
}

func newEnv(t testing.TB, opts ...core.SessionOption) *testEnv {
	return newEnvWith(t, memoryStore, datatype.Default(), opts...)
}

func newEnvWith(t testing.TB, factory storeFactory, catalog core.Catalog, opts ...core.SessionOption) *testEnv {
	ctx := context.Background()
	backend, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	payloads, err := cafs.New(cafs.Backend(backend))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	defaults := []core.SessionOption{
		core.Clock(tickingClock()),
		core.ProducerRetries(0),
		core.Metrics(reg),
	}
	s, err := core.NewSession(ctx, factory(t), payloads, catalog, append(defaults, opts...)...)
	require.NoError(t, err)
	return &testEnv{t: t, ctx: ctx, s: s, reg: reg}
}

func (e *testEnv) write(g *model.ArtifactGraph) {
	require.NoError(e.t, e.s.WriteGraph(e.ctx, g))
}

func (e *testEnv) addArtifact(g *model.ArtifactGraph, kind model.Kind, name string, opts ...model.ArtifactOption) *model.Artifact {
	a, err := g.AddArtifact(kind, name, opts...)
	require.NoError(e.t, err)
	return a
}

func (e *testEnv) addProducer(g *model.ArtifactGraph, kind model.Kind, name string, policies ...model.PolicyKind) *model.Artifact {
	a, err := g.AddProducerArtifact(kind, name, policies)
	require.NoError(e.t, err)
	return a
}

func (e *testEnv) addEdge(g *model.ArtifactGraph, source, dependent *model.Artifact, kind model.EdgeKind, name string) {
	_, err := g.AddEdge(source.ID, dependent.ID, kind, name)
	require.NoError(e.t, err)
}

// stage creates a staging version and writes blob states for some partitions
func (e *testEnv) stage(artifactID string, contents map[uint64][]byte, opts ...core.VersionOption) *model.Version {
	v, err := e.s.CreateStagingVersion(e.ctx, artifactID, opts...)
	require.NoError(e.t, err)
	for p, content := range contents {
		_, err := datatype.WriteBlob(e.ctx, e.s, v.ID, p, content)
		require.NoError(e.t, err)
	}
	return v
}

// commitBlob creates and commits a version holding some blob content in the unary partition
func (e *testEnv) commitBlob(artifactID string, content []byte, opts ...core.VersionOption) *model.Version {
	v := e.stage(artifactID, map[uint64][]byte{model.UnaryPartition: content}, opts...)
	return e.commit(v.ID)
}

func (e *testEnv) commit(id string) *model.Version {
	v, err := e.s.CommitVersion(e.ctx, id)
	require.NoError(e.t, err)
	return v
}

func (e *testEnv) read(versionID string, partition uint64) []byte {
	content, err := datatype.ReadBlob(e.ctx, e.s, versionID, partition)
	require.NoError(e.t, err)
	return content
}

func (e *testEnv) committed(artifactID string) model.Versions {
	versions, err := e.s.ListVersions(e.ctx, artifactID)
	require.NoError(e.t, err)
	return versions.Committed()
}

func (e *testEnv) versions(artifactID string) model.Versions {
	versions, err := e.s.ListVersions(e.ctx, artifactID)
	require.NoError(e.t, err)
	return versions
}

type negateGraph struct {
	g           *model.ArtifactGraph
	input, neg  *model.Artifact
	output      *model.Artifact
	neg2, final *model.Artifact
}

// negateChain builds input -> negate -> output, then output -> negate -> final when doubled
func (e *testEnv) negateChain(double bool) negateGraph {
	g := core.CreateGraph()
	ng := negateGraph{g: g}
	ng.input = e.addArtifact(g, model.KindBlob, "input")
	ng.neg = e.addProducer(g, model.KindNegateBlob, "negate")
	ng.output = e.addArtifact(g, model.KindBlob, "output")
	e.addEdge(g, ng.input, ng.neg, model.ProducerDependency, datatype.InputEdge)
	e.addEdge(g, ng.neg, ng.output, model.ProducerDependency, datatype.OutputEdge)
	if double {
		ng.neg2 = e.addProducer(g, model.KindNegateBlob, "negate again")
		ng.final = e.addArtifact(g, model.KindBlob, "final")
		e.addEdge(g, ng.output, ng.neg2, model.ProducerDependency, datatype.InputEdge)
		e.addEdge(g, ng.neg2, ng.final, model.ProducerDependency, datatype.OutputEdge)
	}
	e.write(g)
	return ng
}

type partitionedGraph struct {
	g            *model.ArtifactGraph
	partitioning *model.Artifact
	blob         *model.Artifact
}

// partitioned builds a blob artifact partitioned by an arbitrary partitioning
func (e *testEnv) partitioned() partitionedGraph {
	g := core.CreateGraph()
	pg := partitionedGraph{g: g}
	pg.partitioning = e.addArtifact(g, model.KindArbitraryPartitioning, "partitioning")
	pg.blob = e.addArtifact(g, model.KindBlob, "blob")
	e.addEdge(g, pg.partitioning, pg.blob, model.DtypeDependency, "partitioning")
	e.write(g)
	return pg
}

func (e *testEnv) commitPartitions(partitioningID string, ids ...uint64) *model.Version {
	v, err := e.s.CreateStagingVersion(e.ctx, partitioningID)
	require.NoError(e.t, err)
	_, err = datatype.WritePartitions(e.ctx, e.s, v.ID, ids...)
	require.NoError(e.t, err)
	return e.commit(v.ID)
}
