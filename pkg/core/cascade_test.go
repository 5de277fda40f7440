package core_test

import (
	"context"
	"sync"
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

var errBoom = errors.New("boom")

// failingNegate fails a number of times before negating. A negative number of failures never succeeds.
//
// Late failures happen when committing the output, after it was staged and written.
type failingNegate struct {
	datatype.NegateBlob
	failures int
	err      error
	late     bool

	mx       sync.Mutex
	attempts int
}

func (f *failingNegate) Produce(ctx context.Context, h core.Handle, v *model.Version, strategy model.ProductionStrategy) error {
	f.mx.Lock()
	f.attempts++
	attempt := f.attempts
	f.mx.Unlock()

	if f.failures < 0 || attempt <= f.failures {
		if f.late {
			return f.NegateBlob.Produce(ctx, failingCommits{Handle: h, err: f.err}, v, strategy)
		}
		return f.err
	}
	return f.NegateBlob.Produce(ctx, h, v, strategy)
}

type failingCommits struct {
	core.Handle
	err error
}

func (f failingCommits) CommitVersion(context.Context, string) error {
	return f.err
}

func failingCatalog(t testing.TB, producer *failingNegate) core.Catalog {
	c, err := datatype.NewCatalog(datatype.Blob{}, datatype.Noop{}, producer)
	require.NoError(t, err)
	return c
}

func TestNegateBootstrap(t *testing.T) {
	for name, factory := range backends {
		factory := factory
		t.Run(name, func(t *testing.T) {
			e := newEnvWith(t, factory, datatype.Default())
			ng := e.negateChain(false)

			a1 := e.commitBlob(ng.input.ID, []byte{0xff})

			produced := e.committed(ng.neg.ID)
			require.Len(t, produced, 1)
			pinned, ok := produced[0].DependencyOn(ng.input.ID)
			require.True(t, ok)
			assert.Equal(t, a1.ID, pinned)
			assert.Empty(t, produced[0].Parents)

			outputs := e.committed(ng.output.ID)
			require.Len(t, outputs, 1)
			assert.True(t, outputs[0].DependsOnVersion(produced[0].ID))
			assert.Empty(t, outputs[0].Parents)
			assert.Equal(t, []byte{0x00}, e.read(outputs[0].ID, model.UnaryPartition))

			m := e.s.Metrics()
			assert.Equal(t, float64(1), testutil.ToFloat64(m.Productions.WithLabelValues("negate", "success")))
			assert.Equal(t, float64(2), testutil.ToFloat64(m.Commits.WithLabelValues(model.KindBlob.String())))
			assert.Equal(t, float64(1), testutil.ToFloat64(m.Commits.WithLabelValues(model.KindNegateBlob.String())))
		})
	}
}

func TestDoubleNegateHash(t *testing.T) {
	e := newEnv(t)
	ng := e.negateChain(true)

	a1 := e.commitBlob(ng.input.ID, []byte{0xff, 0x0f})
	finals := e.committed(ng.final.ID)
	require.Len(t, finals, 1)
	c1 := finals[0]
	assert.Equal(t, []byte{0xff, 0x0f}, e.read(c1.ID, model.UnaryPartition))
	assert.Equal(t, a1.Hash, c1.Hash)

	outputs := e.committed(ng.output.ID)
	require.Len(t, outputs, 1)
	assert.NotEqual(t, a1.Hash, outputs[0].Hash)

	t.Run("second commit follows the history", func(t *testing.T) {
		a2 := e.commitBlob(ng.input.ID, []byte{0x01, 0x02, 0x03}, core.WithParents(a1.ID))

		producers := e.committed(ng.neg.ID)
		require.Len(t, producers, 2)
		assert.Equal(t, []string{producers[0].ID}, producers[1].Parents)

		finals := e.committed(ng.final.ID)
		require.Len(t, finals, 2)
		c2 := finals[1]
		assert.Equal(t, []string{c1.ID}, c2.Parents)
		assert.Equal(t, []byte{0x01, 0x02, 0x03}, e.read(c2.ID, model.UnaryPartition))
		assert.Equal(t, a2.Hash, c2.Hash)
	})

	t.Run("deltas produce deltas", func(t *testing.T) {
		tip := e.committed(ng.input.ID).Last()
		from := e.read(tip.ID, model.UnaryPartition)
		to := []byte{0x01, 0xee, 0x03, 0x04}
		d, err := datatype.Diff(from, to)
		require.NoError(t, err)

		v, err := e.s.CreateStagingVersion(e.ctx, ng.input.ID, core.WithParents(tip.ID), core.WithRepresentation(model.Delta))
		require.NoError(t, err)
		_, err = datatype.WriteBlobDelta(e.ctx, e.s, v.ID, model.UnaryPartition, d)
		require.NoError(t, err)
		a3 := e.commit(v.ID)

		outputs := e.committed(ng.output.ID)
		b3 := outputs.Last()
		assert.Equal(t, model.Delta, b3.Representation)
		assert.Equal(t, datatype.Negate(to), e.read(b3.ID, model.UnaryPartition))

		c3 := e.committed(ng.final.ID).Last()
		assert.Equal(t, model.Delta, c3.Representation)
		assert.Equal(t, to, e.read(c3.ID, model.UnaryPartition))
		assert.Equal(t, a3.Hash, c3.Hash)
	})
}

func TestLeafBootstrapOnce(t *testing.T) {
	e := newEnv(t)
	ng := e.negateChain(false)

	e.commitBlob(ng.input.ID, []byte("first"))
	require.Len(t, e.committed(ng.neg.ID), 1)

	// an unrelated root does not bootstrap the producer again
	e.commitBlob(ng.input.ID, []byte("second"))
	assert.Len(t, e.committed(ng.neg.ID), 1)
	assert.Len(t, e.committed(ng.output.ID), 1)
}

func TestRecommit(t *testing.T) {
	e := newEnv(t)
	ng := e.negateChain(false)

	a1 := e.commitBlob(ng.input.ID, []byte{0xff})
	require.Len(t, e.committed(ng.neg.ID), 1)

	_, err := e.s.CommitVersion(e.ctx, a1.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrVersionCommitted))
	assert.True(t, errors.Is(err, status.ErrVersionState))

	assert.Len(t, e.versions(ng.neg.ID), 1)
	assert.Len(t, e.versions(ng.output.ID), 1)
}

func TestProductionPolicies(t *testing.T) {
	e := newEnv(t)
	ng := e.negateChain(false)

	require.NoError(t, e.s.SetProductionPolicies(e.ctx, ng.neg.ID, model.ExtantPolicy))
	e.commitBlob(ng.input.ID, []byte{0xff})
	assert.Empty(t, e.versions(ng.neg.ID))

	err := e.s.SetProductionPolicies(e.ctx, ng.input.ID, model.ExtantPolicy)
	assert.True(t, errors.Is(err, status.ErrNotProducer))

	err = e.s.SetProductionPolicies(e.ctx, ng.neg.ID, model.PolicyKind("bogus"))
	assert.True(t, errors.Is(err, status.ErrPolicy))
	assert.True(t, errors.Is(err, status.ErrProduction))
}

func TestProductionFailure(t *testing.T) {
	producer := &failingNegate{failures: -1, err: errBoom}
	e := newEnvWith(t, memoryStore, failingCatalog(t, producer))

	g := core.CreateGraph()
	input := e.addArtifact(g, model.KindBlob, "input")
	neg := e.addProducer(g, model.KindNegateBlob, "negate")
	output := e.addArtifact(g, model.KindBlob, "output")
	noop := e.addProducer(g, model.KindNoop, "audit")
	e.addEdge(g, input, neg, model.ProducerDependency, datatype.InputEdge)
	e.addEdge(g, neg, output, model.ProducerDependency, datatype.OutputEdge)
	e.addEdge(g, input, noop, model.ProducerDependency, datatype.InputEdge)
	e.write(g)

	v := e.stage(input.ID, map[uint64][]byte{model.UnaryPartition: {0xff}})
	committed, err := e.s.CommitVersion(e.ctx, v.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrProduction))
	assert.True(t, errors.Is(err, errBoom))

	require.NotNil(t, committed, "the triggering version remains committed")
	assert.True(t, committed.IsCommitted())

	producerVersions := e.versions(neg.ID)
	require.Len(t, producerVersions, 1)
	assert.False(t, producerVersions[0].IsCommitted(), "a failed production is left staging")
	assert.Empty(t, e.versions(output.ID))

	// sibling productions still run
	assert.Len(t, e.committed(noop.ID), 1)

	m := e.s.Metrics()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Productions.WithLabelValues("negate", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Productions.WithLabelValues("audit", "success")))
}

func TestBootstrapNotRepeatedAfterFailure(t *testing.T) {
	producer := &failingNegate{failures: -1, err: errBoom}
	e := newEnvWith(t, memoryStore, failingCatalog(t, producer))
	ng := e.negateChain(false)

	v := e.stage(ng.input.ID, map[uint64][]byte{model.UnaryPartition: {0xff}})
	a1, err := e.s.CommitVersion(e.ctx, v.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	require.Len(t, e.versions(ng.neg.ID), 1)

	// a single leaf again, but the failed bootstrap left a staging producer version
	e.commitBlob(ng.input.ID, []byte{0x0f}, core.WithParents(a1.ID))
	assert.Equal(t, 1, producer.attempts)
	assert.Len(t, e.versions(ng.neg.ID), 1)
	assert.Empty(t, e.versions(ng.output.ID))
}

func TestProductionRetries(t *testing.T) {
	t.Run("transient failures are retried", func(t *testing.T) {
		producer := &failingNegate{failures: 2, err: errBoom}
		e := newEnvWith(t, memoryStore, failingCatalog(t, producer), core.ProducerRetries(2))
		ng := e.negateChain(false)

		e.commitBlob(ng.input.ID, []byte{0x0f})
		assert.Equal(t, 3, producer.attempts)

		outputs := e.committed(ng.output.ID)
		require.Len(t, outputs, 1)
		assert.Equal(t, []byte{0xf0}, e.read(outputs[0].ID, model.UnaryPartition))
	})

	t.Run("retried attempts reuse their outputs", func(t *testing.T) {
		producer := &failingNegate{failures: 2, late: true, err: errBoom}
		e := newEnvWith(t, memoryStore, failingCatalog(t, producer), core.ProducerRetries(2))
		ng := e.negateChain(false)

		e.commitBlob(ng.input.ID, []byte{0x0f})
		assert.Equal(t, 3, producer.attempts)

		outputs := e.versions(ng.output.ID)
		require.Len(t, outputs, 1)
		assert.True(t, outputs[0].IsCommitted())
		assert.Equal(t, []byte{0xf0}, e.read(outputs[0].ID, model.UnaryPartition))
	})

	t.Run("version state errors are not retried", func(t *testing.T) {
		producer := &failingNegate{failures: -1, err: status.ErrInvalidHunk.WrapMessage("test")}
		e := newEnvWith(t, memoryStore, failingCatalog(t, producer), core.ProducerRetries(5))
		ng := e.negateChain(false)

		v := e.stage(ng.input.ID, map[uint64][]byte{model.UnaryPartition: {0x0f}})
		_, err := e.s.CommitVersion(e.ctx, v.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrInvalidHunk))
		assert.Equal(t, 1, producer.attempts)
	})
}

func TestCascadeDepth(t *testing.T) {
	e := newEnv(t, core.MaxCascadeDepth(1))
	ng := e.negateChain(true)

	v := e.stage(ng.input.ID, map[uint64][]byte{model.UnaryPartition: {0xff}})
	_, err := e.s.CommitVersion(e.ctx, v.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCascadeDepth))
	assert.True(t, errors.Is(err, status.ErrProduction))

	assert.Len(t, e.committed(ng.output.ID), 1)
	assert.Empty(t, e.versions(ng.final.ID))
}

func TestCascadeCanceled(t *testing.T) {
	e := newEnv(t)
	ng := e.negateChain(false)

	v := e.stage(ng.input.ID, map[uint64][]byte{model.UnaryPartition: {0xff}})
	ctx, cancel := context.WithCancel(e.ctx)
	cancel()

	_, err := e.s.CommitVersion(ctx, v.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, e.versions(ng.neg.ID))
}
