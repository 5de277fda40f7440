package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/heraclitus/pkg/cafs"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
)

// Session operates the versions of an artifact graph, backed by a metadata store and a payload store.
//
// A session is safe for concurrent use by operations touching independent artifacts.
type Session struct {
	settings sessionSettings
	l        *zap.Logger
	metrics  *M

	store    store.Store
	payloads cafs.Fs
	catalog  Catalog

	// committed versions and partition sets, which are immutable
	cache *lru.Cache

	mx    sync.RWMutex
	graph *model.ArtifactGraph
}

type partitionsKey string

// NewSession builds a session. The stores are expected to be initialized.
func NewSession(ctx context.Context, st store.Store, payloads cafs.Fs, catalog Catalog, opts ...SessionOption) (*Session, error) {
	if st == nil || payloads == nil || catalog == nil {
		return nil, fmt.Errorf("a session requires a metadata store, a payload store and a catalog")
	}

	settings := defaultSessionSettings()
	for _, apply := range opts {
		apply(&settings)
	}

	cache, err := lru.New(settings.cacheSize)
	if err != nil {
		return nil, err
	}

	metrics, err := newMetrics(settings.registerer)
	if err != nil {
		return nil, fmt.Errorf("cannot register metrics: %w", err)
	}

	s := &Session{
		settings: settings,
		l:        settings.logger,
		metrics:  metrics,
		store:    st,
		payloads: payloads,
		catalog:  catalog,
		cache:    cache,
	}

	if settings.graphID != "" {
		if _, err := s.LoadGraph(ctx, settings.graphID); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger of the session
func (s *Session) Logger() *zap.Logger {
	return s.l
}

// Metrics collected by the session
func (s *Session) Metrics() *M {
	return s.metrics
}

func (s *Session) now() time.Time {
	return s.settings.clock().UTC()
}

// CreateGraph builds an empty artifact graph, to be populated then written to a session
func CreateGraph() *model.ArtifactGraph {
	return model.NewArtifactGraph()
}

// Graph returns the artifact graph of the session, or nil when none is loaded
func (s *Session) Graph() *model.ArtifactGraph {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.graph
}

func (s *Session) setGraph(g *model.ArtifactGraph) {
	s.mx.Lock()
	s.graph = g
	s.mx.Unlock()
}

func (s *Session) requireGraph() (*model.ArtifactGraph, error) {
	g := s.Graph()
	if g == nil {
		return nil, status.ErrNoGraph
	}
	return g, nil
}

func (s *Session) artifact(id string) (*model.Artifact, error) {
	g, err := s.requireGraph()
	if err != nil {
		return nil, err
	}
	a, ok := g.Artifact(id)
	if !ok {
		return nil, status.ErrUnknownArtifact.WrapMessage("%s", id)
	}
	return a, nil
}

// WriteGraph persists an artifact graph, freezes it and makes it the graph of the session.
//
// Every artifact kind must be known to the catalog of the session.
func (s *Session) WriteGraph(ctx context.Context, g *model.ArtifactGraph) error {
	if g == nil {
		return status.ErrNoGraph
	}
	for _, a := range g.Artifacts() {
		m, err := s.model(a.Kind)
		if err != nil {
			return err
		}
		if a.IsProducer() {
			if _, ok := m.(Producer); !ok {
				return status.ErrProducerMissing.WrapMessage("%s (%s)", a.Name, a.Kind)
			}
		}
	}

	g.Freeze()
	if err := s.store.CreateGraph(ctx, g.Descriptor()); err != nil {
		return s.storeError(err, "graph %s", g.ID())
	}
	s.setGraph(g)
	s.l.Info("artifact graph written", zap.String("graph", g.ID()), zap.Stringer("hash", g.Hash()), zap.Int("artifacts", len(g.Artifacts())))
	return nil
}

// LoadGraph loads a persisted artifact graph and makes it the graph of the session
func (s *Session) LoadGraph(ctx context.Context, id string) (*model.ArtifactGraph, error) {
	desc, err := s.store.GetGraph(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "graph %s", id)
	}
	g, err := model.NewArtifactGraphFromDescriptor(*desc)
	if err != nil {
		return nil, err
	}
	s.setGraph(g)
	s.l.Debug("artifact graph loaded", zap.String("graph", g.ID()))
	return g, nil
}

// GetVersion returns a version by id
func (s *Session) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	v, err := s.getVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// getVersion returns a version which must not be altered by the caller
func (s *Session) getVersion(ctx context.Context, id string) (*model.Version, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*model.Version), nil
	}
	v, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "version %s", id)
	}
	if v.IsCommitted() {
		s.cache.Add(id, v)
	}
	return v, nil
}

// ListVersions returns the versions of an artifact, in creation order
func (s *Session) ListVersions(ctx context.Context, artifactID string) (model.Versions, error) {
	if _, err := s.artifact(artifactID); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, artifactID)
	if err != nil {
		return nil, s.storeError(err, "versions of %s", artifactID)
	}
	return versions, nil
}

// Hunks returns the hunks of a version, for some partitions or all of them
func (s *Session) Hunks(ctx context.Context, versionID string, partitions ...uint64) (model.Hunks, error) {
	hunks, err := s.store.GetHunks(ctx, versionID, partitions...)
	if err != nil {
		return nil, s.storeError(err, "hunks of %s", versionID)
	}
	return hunks, nil
}

// Payload returns the encoded payload of a hunk
func (s *Session) Payload(ctx context.Context, hunk model.Hunk) ([]byte, error) {
	payload, err := s.payloads.Get(ctx, hunk.PayloadKey)
	if err != nil {
		return nil, fmt.Errorf("payload of hunk %s: %w", hunk.ID, err)
	}
	return payload, nil
}

// storeError maps errors from the metadata store to the error taxonomy of the engine
func (s *Session) storeError(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, store.NotFound):
		return status.ErrNotFound.WrapMessage("%s", msg)
	case errors.Is(err, store.NotStaging):
		return status.ErrVersionCommitted.WrapMessage("%s", msg)
	case errors.Is(err, store.IntegrityViolation):
		return status.ErrDanglingEdge.WrapMessage("%s: %v", msg, err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
