// Package status exports errors produced by the core package.
//
// Errors are organized by category. Each specific error matches its category with errors.Is:
//
//	errors.Is(err, status.ErrGraphIntegrity)
package status

import (
	"github.com/oneconcern/heraclitus/pkg/errors"
)

// Error categories
var (
	// ErrGraphIntegrity signals a violation of the artifact graph structure
	ErrGraphIntegrity = errors.New("graph integrity violation")

	// ErrVersionState signals an operation incompatible with the state of a version
	ErrVersionState = errors.New("invalid version state")

	// ErrIncompleteHistory signals that no sufficient state ancestry could be found for a partition
	ErrIncompleteHistory = errors.New("incomplete history")

	// ErrProduction signals a failure while evaluating policies or running a producer
	ErrProduction = errors.New("production failed")

	// ErrMergeConflict signals an attempt to commit a merge with unresolved partitions
	ErrMergeConflict = errors.New("merge conflict")
)

// Graph integrity errors
var (
	// ErrCycle indicates that an edge would close a cycle in the artifact graph
	ErrCycle = errors.New("edge would close a cycle").Wrap(ErrGraphIntegrity)

	// ErrDuplicateEdge indicates that an edge already exists for an ordered pair of artifacts
	ErrDuplicateEdge = errors.New("duplicate edge").Wrap(ErrGraphIntegrity)

	// ErrDanglingEdge indicates an edge referring to an unknown artifact
	ErrDanglingEdge = errors.New("dangling edge").Wrap(ErrGraphIntegrity)

	// ErrInvalidEdge indicates an edge with an invalid kind or endpoints
	ErrInvalidEdge = errors.New("invalid edge").Wrap(ErrGraphIntegrity)

	// ErrDuplicateName indicates that an artifact name is already used in the graph
	ErrDuplicateName = errors.New("duplicate artifact name").Wrap(ErrGraphIntegrity)

	// ErrDuplicatePartitioning indicates that an artifact already declares a partitioning dependency
	ErrDuplicatePartitioning = errors.New("artifact is already partitioned").Wrap(ErrGraphIntegrity)

	// ErrUnknownKind indicates an artifact kind not known to the catalog
	ErrUnknownKind = errors.New("unknown artifact kind").Wrap(ErrGraphIntegrity)

	// ErrNotProducer indicates that a producer artifact was requested for a kind without the producer capability
	ErrNotProducer = errors.New("kind is not a producer").Wrap(ErrGraphIntegrity)

	// ErrGraphFrozen indicates an attempt to alter an artifact graph that has been persisted
	ErrGraphFrozen = errors.New("artifact graph is read-only").Wrap(ErrGraphIntegrity)

	// ErrUnknownArtifact indicates a reference to an artifact not in the graph
	ErrUnknownArtifact = errors.New("unknown artifact").Wrap(ErrGraphIntegrity)

	// ErrMissingArtifactEdge indicates a version relation without a supporting artifact edge
	ErrMissingArtifactEdge = errors.New("no artifact edge supports version relation").Wrap(ErrGraphIntegrity)

	// ErrNoGraph indicates that a session has no artifact graph loaded yet
	ErrNoGraph = errors.New("no artifact graph loaded")
)

// Version state errors
var (
	// ErrVersionCommitted indicates an attempt to mutate or re-commit a committed version
	ErrVersionCommitted = errors.New("version is already committed").Wrap(ErrVersionState)

	// ErrDependencyStaging indicates a dependency relation pinned to a version that is not committed
	ErrDependencyStaging = errors.New("pinned dependency version is not committed").Wrap(ErrVersionState)

	// ErrParentStaging indicates a parent version that is not committed
	ErrParentStaging = errors.New("parent version is not committed").Wrap(ErrVersionState)

	// ErrParentArtifact indicates a parent version belonging to another artifact
	ErrParentArtifact = errors.New("parent version belongs to another artifact").Wrap(ErrVersionState)

	// ErrDuplicateDependency indicates more than one version pinned for the same dependency artifact
	ErrDuplicateDependency = errors.New("more than one version pinned for a dependency").Wrap(ErrVersionState)

	// ErrMissingPartitioning indicates a partitioned artifact version without a pinned partitioning version
	ErrMissingPartitioning = errors.New("partitioning version is not pinned").Wrap(ErrVersionState)

	// ErrInvalidHunk indicates a hunk inconsistent with its version
	ErrInvalidHunk = errors.New("invalid hunk").Wrap(ErrVersionState)

	// ErrInvalidRepresentation indicates a representation not supported by an artifact kind
	ErrInvalidRepresentation = errors.New("unsupported representation").Wrap(ErrVersionState)

	// ErrUnknownPartition indicates a partition outside of the active partition set of a version
	ErrUnknownPartition = errors.New("unknown partition").Wrap(ErrVersionState)

	// ErrMergeInputs indicates invalid inputs to a merge
	ErrMergeInputs = errors.New("invalid merge inputs").Wrap(ErrVersionState)
)

// Production errors
var (
	// ErrProducerMissing indicates a producer kind with no registered implementation
	ErrProducerMissing = errors.New("no producer implementation for kind").Wrap(ErrProduction)

	// ErrNoStrategy indicates that no production strategy accepts the representations of the inputs
	ErrNoStrategy = errors.New("no production strategy matches inputs").Wrap(ErrProduction)

	// ErrCascadeDepth indicates a commit cascade exceeding its configured bound
	ErrCascadeDepth = errors.New("commit cascade is too deep").Wrap(ErrProduction)

	// ErrPolicy indicates a failure while evaluating a production policy
	ErrPolicy = errors.New("production policy failed").Wrap(ErrProduction)
)

// Lookup errors
var (
	// ErrNotFound indicates an object was not found
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous indicates that a partial identifier matches more than one version
	ErrAmbiguous = errors.New("ambiguous identifier")

	// ErrInvalidSpecifier indicates a malformed version specifier
	ErrInvalidSpecifier = errors.New("invalid version specifier")

	// ErrNotReference indicates an artifact that cannot carry branches
	ErrNotReference = errors.New("artifact is not a reference")

	// ErrBranchExists indicates an attempt to create a branch that already exists
	ErrBranchExists = errors.New("branch already exists")
)
