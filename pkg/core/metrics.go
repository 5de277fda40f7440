package core

import (
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// M describes metrics for the core package
type M struct {
	Commits      *prometheus.CounterVec // by artifact kind
	Productions  *prometheus.CounterVec // by producer and outcome
	Conflicts    prometheus.Counter
	CascadeSteps prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*M, error) {
	m := &M{
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hera_commits_total",
			Help: "Number of committed versions, by artifact kind",
		}, []string{"artifact_kind"}),
		Productions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hera_productions_total",
			Help: "Number of producer invocations, by producer and outcome",
		}, []string{"producer", "outcome"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hera_merge_conflicts_total",
			Help: "Number of conflicting partitions detected by merges",
		}),
		CascadeSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hera_cascade_steps",
			Help:    "Number of committed versions processed by a commit cascade",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err, e error
	var c prometheus.Collector
	c, e = register(reg, m.Commits)
	err = multierr.Append(err, e)
	m.Commits = c.(*prometheus.CounterVec)

	c, e = register(reg, m.Productions)
	err = multierr.Append(err, e)
	m.Productions = c.(*prometheus.CounterVec)

	c, e = register(reg, m.Conflicts)
	err = multierr.Append(err, e)
	m.Conflicts = c.(prometheus.Counter)

	c, e = register(reg, m.CascadeSteps)
	err = multierr.Append(err, e)
	m.CascadeSteps = c.(prometheus.Histogram)

	return m, err
}

// register a collector, reusing the equivalent collector registered by another session
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return already.ExistingCollector, nil
	}
	return c, err
}
