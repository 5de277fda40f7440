package core

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type cascadeItem struct {
	version *model.Version
	depth   int
}

// cascade is the work queue of committed versions which dependent producers are yet to be evaluated.
//
// Nested commits performed by producers are enqueued rather than processed recursively.
type cascade struct {
	s     *Session
	queue []cascadeItem
	steps int
}

func newCascade(s *Session) *cascade {
	return &cascade{s: s}
}

// commit runs the atomic commit step of a version and enqueues it
func (q *cascade) commit(ctx context.Context, id string, depth int) (*model.Version, error) {
	v, err := q.s.commitVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	q.queue = append(q.queue, cascadeItem{version: v, depth: depth})
	return v, nil
}

// run processes the queue until it is empty.
//
// A failing production stops its own branch of the cascade only: sibling productions
// still run, and all errors are returned combined.
func (q *cascade) run(ctx context.Context) error {
	defer func() {
		q.s.metrics.CascadeSteps.Observe(float64(q.steps))
	}()

	var errs error
	for len(q.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		item := q.queue[0]
		q.queue = q.queue[1:]
		q.steps++

		g, err := q.s.requireGraph()
		if err != nil {
			return err
		}
		producers := g.ProducerDependents(item.version.ArtifactID)
		if len(producers) == 0 {
			continue
		}
		if item.depth >= q.s.settings.maxDepth {
			errs = multierr.Append(errs, status.ErrCascadeDepth.WrapMessage("at version %s", item.version.ID))
			continue
		}

		for _, producer := range producers {
			specs, err := q.s.evaluatePolicies(ctx, producer, item.version)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			q.s.l.Debug("production scheduled",
				zap.String("producer", producer.Name),
				zap.String("version", item.version.ID),
				zap.Int("specs", specs.Len()),
			)
			for _, spec := range specs.Specs() {
				if err := q.produce(ctx, producer, spec, item.depth+1); err != nil {
					errs = multierr.Append(errs, err)
				}
			}
		}
	}
	return errs
}

// produce creates a producer version for a spec, runs the producer then commits the producer version and its outputs
func (q *cascade) produce(ctx context.Context, producer model.Artifact, spec model.ProductionSpec, depth int) error {
	s := q.s
	g, err := s.requireGraph()
	if err != nil {
		return err
	}
	impl, err := s.producer(producer)
	if err != nil {
		return err
	}

	deps := make([]string, 0, len(spec.Dependencies))
	for _, d := range spec.Dependencies {
		deps = append(deps, d.VersionID)
	}
	v, err := s.CreateStagingVersion(ctx, producer.ID,
		WithParents(spec.Parents...),
		WithDependencies(deps...),
	)
	if err != nil {
		return status.ErrProduction.WrapWithLog(s.l, err, zap.String("producer", producer.Name))
	}

	inputs, err := s.strategyInputs(ctx, g, v)
	if err != nil {
		return err
	}
	strategy, err := ParsimoniousStrategy(impl.Strategies(), inputs)
	if err != nil {
		return err
	}
	if err := s.store.WriteProductionRecord(ctx, model.ProductionRecord{VersionID: v.ID, Strategy: strategy}); err != nil {
		return s.storeError(err, "production record of %s", v.ID)
	}

	h := &handle{Session: s, q: q, producing: v.ID, depth: depth, spare: make(map[string]model.Versions)}
	run := func() error {
		h.reset()
		err := impl.Produce(ctx, h, v.Clone(), strategy)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, status.ErrGraphIntegrity) || errors.Is(err, status.ErrVersionState) {
			return backoff.Permanent(err)
		}
		s.l.Warn("production attempt failed", zap.String("producer", producer.Name), zap.String("version", v.ID), zap.Error(err))
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), s.settings.retries), ctx)
	if err := backoff.Retry(run, policy); err != nil {
		s.metrics.Productions.WithLabelValues(producer.Name, outcomeFailure).Inc()
		return status.ErrProduction.WrapWithLog(s.l, err,
			zap.String("producer", producer.Name),
			zap.String("version", v.ID),
			zap.String("strategy", strategy.Name),
		)
	}

	if _, err := q.commit(ctx, v.ID, depth); err != nil {
		s.metrics.Productions.WithLabelValues(producer.Name, outcomeFailure).Inc()
		return err
	}
	for _, id := range h.deferred {
		if _, err := q.commit(ctx, id, depth); err != nil {
			s.metrics.Productions.WithLabelValues(producer.Name, outcomeFailure).Inc()
			return err
		}
	}
	for _, step := range h.after {
		if err := step(ctx, h); err != nil {
			s.metrics.Productions.WithLabelValues(producer.Name, outcomeFailure).Inc()
			return status.ErrProduction.WrapWithLog(s.l, err, zap.String("producer", producer.Name), zap.String("version", v.ID))
		}
	}

	s.metrics.Productions.WithLabelValues(producer.Name, outcomeSuccess).Inc()
	s.l.Info("version produced",
		zap.String("producer", producer.Name),
		zap.String("version", v.ID),
		zap.String("strategy", strategy.Name),
		zap.Int("outputs", len(h.deferred)),
	)
	return nil
}

// handle is the Handle given to producers and conflict resolvers
type handle struct {
	*Session
	q         *cascade
	producing string
	depth     int
	deferred  []string
	after     []func(context.Context, Handle) error

	staged model.Versions            // outputs created by the current attempt
	spare  map[string]model.Versions // outputs left staging by failed attempts, by artifact
}

var _ Handle = &handle{}

func (h *handle) reset() {
	h.deferred = h.deferred[:0]
	h.after = h.after[:0]
	for _, v := range h.staged {
		h.spare[v.ArtifactID] = append(h.spare[v.ArtifactID], v)
	}
	h.staged = h.staged[:0]
}

// CreateStagingVersion hands back an output left staging by a failed attempt of the same
// production when it was created with the same parents, dependencies and representation.
func (h *handle) CreateStagingVersion(ctx context.Context, artifactID string, opts ...VersionOption) (*model.Version, error) {
	if h.producing == "" {
		return h.Session.CreateStagingVersion(ctx, artifactID, opts...)
	}
	settings := versionSettings{representation: model.State}
	for _, apply := range opts {
		apply(&settings)
	}
	spare := h.spare[artifactID]
	for i, v := range spare {
		if !settings.matches(v) {
			continue
		}
		h.spare[artifactID] = append(spare[:i:i], spare[i+1:]...)
		h.staged = append(h.staged, v)
		h.l.Debug("staging output reused", zap.String("version", v.ID), zap.String("producing", h.producing))
		return v.Clone(), nil
	}

	v, err := h.Session.CreateStagingVersion(ctx, artifactID, opts...)
	if err != nil {
		return nil, err
	}
	if v.DependsOnVersion(h.producing) {
		h.staged = append(h.staged, v.Clone())
	}
	return v, nil
}

func (h *handle) CommitVersion(ctx context.Context, id string) error {
	v, err := h.getVersion(ctx, id)
	if err != nil {
		return err
	}
	if h.producing != "" && v.DependsOnVersion(h.producing) {
		h.deferred = append(h.deferred, id)
		return nil
	}
	_, err = h.q.commit(ctx, id, h.depth)
	return err
}

func (h *handle) AfterCommit(step func(context.Context, Handle) error) {
	h.after = append(h.after, step)
}
