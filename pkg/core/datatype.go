package core

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/zap"
)

// Catalog resolves the implementation of artifact kinds
type Catalog interface {
	Model(model.Kind) (Model, error)
}

// Model is the implementation of an artifact kind.
//
// Materialized state is the encoded payload of a complete state hunk. It is nil
// before the first hunk of a composition is applied.
type Model interface {
	Kind() model.Kind
	Compose(state []byte, hunk model.Hunk, payload []byte) ([]byte, error)
}

// Partitioning is implemented by kinds defining partitions for their dependents
type Partitioning interface {
	Model
	Partitions(state []byte) (model.Partitions, error)
}

// Producer is implemented by kinds deriving their versions from their dependencies.
//
// Produce receives a staging producer version pinning the dependency tuple to
// realize. It writes the outputs and commits them through the handle, or fails.
// The producer version itself is committed by the cascade.
type Producer interface {
	Model
	Strategies() []model.ProductionStrategy
	Produce(ctx context.Context, h Handle, v *model.Version, strategy model.ProductionStrategy) error
}

// PolicyProvider is implemented by producer kinds supporting the custom production policy
type PolicyProvider interface {
	CustomPolicy(model.Artifact) Policy
}

// ConflictResolver is implemented by kinds resolving their own merge conflicts.
//
// The resolver writes a state hunk or a precedence for the partition into the merge version.
type ConflictResolver interface {
	ResolveConflict(ctx context.Context, h Handle, merge *model.Version, partition uint64, candidates model.Versions) error
}

// Handle is what producers and conflict resolvers get to operate on versions
type Handle interface {
	Graph() *model.ArtifactGraph
	Logger() *zap.Logger

	GetVersion(ctx context.Context, id string) (*model.Version, error)
	ListVersions(ctx context.Context, artifactID string) (model.Versions, error)
	Hunks(ctx context.Context, versionID string, partitions ...uint64) (model.Hunks, error)
	Payload(ctx context.Context, hunk model.Hunk) ([]byte, error)
	Partitions(ctx context.Context, versionID string) (model.Partitions, error)
	Materialize(ctx context.Context, versionID string, partition uint64) ([]byte, error)
	MaterializeAll(ctx context.Context, versionID string) (map[uint64][]byte, error)

	// CreateStagingVersion creates a staging version. When a production is retried, outputs
	// staged by a failed attempt with the same parents, dependencies and representation are
	// handed back instead: hunks written again replace the earlier ones.
	CreateStagingVersion(ctx context.Context, artifactID string, opts ...VersionOption) (*model.Version, error)
	WriteHunk(ctx context.Context, spec HunkSpec) (*model.Hunk, error)
	SetPrecedence(ctx context.Context, versionID string, partition uint64, precedentID string) error

	// CommitVersion commits a version within the ongoing cascade.
	//
	// Outputs pinning the producer version being produced are committed right after it.
	CommitVersion(ctx context.Context, id string) error

	// AfterCommit registers a step to run once the version being produced and its outputs are committed
	AfterCommit(func(context.Context, Handle) error)

	Branch(ctx context.Context, refArtifactID, name string) (*model.Branch, error)
	SetBranch(ctx context.Context, refArtifactID, name, versionID string) (*model.Branch, error)
}

func (s *Session) model(kind model.Kind) (Model, error) {
	m, err := s.catalog.Model(kind)
	if err != nil {
		return nil, status.ErrUnknownKind.WrapMessage("%q: %v", kind, err)
	}
	return m, nil
}

func (s *Session) producer(artifact model.Artifact) (Producer, error) {
	m, err := s.model(artifact.Kind)
	if err != nil {
		return nil, err
	}
	p, ok := m.(Producer)
	if !ok {
		return nil, status.ErrProducerMissing.WrapMessage("%s (%s)", artifact.Name, artifact.Kind)
	}
	return p, nil
}
