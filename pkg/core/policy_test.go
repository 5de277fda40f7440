package core_test

import (
	"testing"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsimoniousStrategy(t *testing.T) {
	strategies := []model.ProductionStrategy{
		{
			Name:    "full",
			Inputs:  map[string]model.Representation{"in": model.Delta},
			Outputs: map[string]model.Representation{"out": model.State, "log": model.Delta},
		},
		{
			Name:    "incremental",
			Inputs:  map[string]model.Representation{"in": model.Delta},
			Outputs: map[string]model.Representation{"out": model.Delta, "log": model.Delta},
		},
		{
			Name:    "also incremental",
			Inputs:  map[string]model.Representation{"in": model.Delta},
			Outputs: map[string]model.Representation{"out": model.Delta, "log": model.Delta},
		},
		{
			Name:    "from state",
			Inputs:  map[string]model.Representation{"in": model.State},
			Outputs: map[string]model.Representation{"out": model.State},
		},
	}

	s, err := core.ParsimoniousStrategy(strategies, map[string]model.Representation{"in": model.Delta})
	require.NoError(t, err)
	assert.Equal(t, "incremental", s.Name, "the lightest outputs win, then the first declared")

	s, err = core.ParsimoniousStrategy(strategies, map[string]model.Representation{"in": model.State})
	require.NoError(t, err)
	assert.Equal(t, "from state", s.Name)

	_, err = core.ParsimoniousStrategy(strategies, map[string]model.Representation{"in": model.CumulativeDelta})
	assert.True(t, errors.Is(err, status.ErrNoStrategy))
	assert.True(t, errors.Is(err, status.ErrProduction))

	s, err = core.ParsimoniousStrategy([]model.ProductionStrategy{{Name: "any"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "any", s.Name)
}

func TestNoopRecordsProductions(t *testing.T) {
	e := newEnv(t)
	g := core.CreateGraph()
	a := e.addArtifact(g, model.KindBlob, "a")
	b := e.addArtifact(g, model.KindBlob, "b")
	noop := e.addProducer(g, model.KindNoop, "join")
	e.addEdge(g, a, noop, model.ProducerDependency, "a")
	e.addEdge(g, b, noop, model.ProducerDependency, "b")
	e.write(g)

	a1 := e.commitBlob(a.ID, []byte("a1"))
	assert.Empty(t, e.versions(noop.ID), "b has no leaf yet")

	b1 := e.commitBlob(b.ID, []byte("b1"))
	produced := e.committed(noop.ID)
	require.Len(t, produced, 1)
	assert.True(t, produced[0].DependsOnVersion(a1.ID))
	assert.True(t, produced[0].DependsOnVersion(b1.ID))

	a2 := e.commitBlob(a.ID, []byte("a2"), core.WithParents(a1.ID))
	produced = e.committed(noop.ID)
	require.Len(t, produced, 2)
	n1, n2 := produced[0], produced[1]
	assert.True(t, n2.DependsOnVersion(a2.ID))
	assert.True(t, n2.DependsOnVersion(b1.ID))
	assert.Equal(t, []string{n1.ID}, n2.Parents)

	// every extant tuple pinning the parent is realized again
	b2 := e.commitBlob(b.ID, []byte("b2"), core.WithParents(b1.ID))
	produced = e.committed(noop.ID)
	require.Len(t, produced, 4)
	pinning := func(ids ...string) *model.Version {
		for _, v := range produced {
			all := true
			for _, id := range ids {
				all = all && v.DependsOnVersion(id)
			}
			if all {
				return v
			}
		}
		return nil
	}
	n3 := pinning(a1.ID, b2.ID)
	require.NotNil(t, n3)
	assert.Equal(t, []string{n1.ID}, n3.Parents)
	n4 := pinning(a2.ID, b2.ID)
	require.NotNil(t, n4)
	assert.Equal(t, []string{n2.ID}, n4.Parents)
}

func TestSharedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newEnvWith(t, memoryStore, datatype.Default(), core.Metrics(reg))
	second := newEnvWith(t, memoryStore, datatype.Default(), core.Metrics(reg))
	assert.Same(t, first.s.Metrics().Commits, second.s.Metrics().Commits)

	first.commitBlob(first.singleBlob().ID, []byte("one"))
	second.commitBlob(second.singleBlob().ID, []byte("two"))
	assert.Equal(t, float64(2), testutil.ToFloat64(first.s.Metrics().Commits.WithLabelValues(model.KindBlob.String())))

	count, err := testutil.GatherAndCount(reg, "hera_cascade_steps")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConflictModeString(t *testing.T) {
	assert.Equal(t, "forbid", core.ForbidConflicts.String())
	assert.Equal(t, "resolve", core.ResolveConflicts.String())
}
