// Package store defines the storage collaborator for heraclitus metadata.
//
// A store persists artifact graphs, versions with their parent and dependency relations,
// hunks, precedences and branches. Each write method is one atomic transaction.
// References to other entities are checked when the transaction ends, so that
// a transaction may declare an edge before both of its endpoints are visible.
package store

import (
	"context"
	"time"

	"github.com/oneconcern/heraclitus/pkg/model"
)

type errorString string

func (e errorString) Error() string {
	return string(e)
}

const (
	// IDIsRequired error whenever an id is expected but not provided
	IDIsRequired errorString = "id is required"

	// NotFound when an object is not found
	NotFound errorString = "object not found"

	// AlreadyExists is returned when an object is expected to not exist yet
	AlreadyExists errorString = "object already exists"

	// IntegrityViolation is returned when a transaction refers to objects which do not exist
	IntegrityViolation errorString = "referential integrity violation"

	// NotStaging is returned when a version is expected to be staging but is committed
	NotStaging errorString = "version is not staging"

	// ClosedStore is returned when operating on a store which is not initialized or already closed
	ClosedStore errorString = "store is closed"
)

// Store manages the persistence of heraclitus metadata
type Store interface {
	Initialize() error
	Close() error

	GraphStore
	VersionStore
	HunkStore
	BranchStore
}

// GraphStore persists artifact graphs
type GraphStore interface {
	// CreateGraph persists a graph with all its artifacts, edges and producer policies
	CreateGraph(context.Context, model.ArtifactGraphDescriptor) error
	GetGraph(context.Context, string) (*model.ArtifactGraphDescriptor, error)
	ListGraphs(context.Context) ([]string, error)

	WriteProductionPolicies(context.Context, string, []model.PolicyKind) error
	GetProductionPolicies(context.Context, string) ([]model.PolicyKind, error)
}

// VersionStore persists versions, their parents and their dependency relations
type VersionStore interface {
	// CreateVersion persists a staging version with its parents and dependencies
	CreateVersion(context.Context, *model.Version) error

	// CommitVersion freezes a staging version with its content hash. It fails with NotStaging
	// if the version is already committed.
	CommitVersion(ctx context.Context, id string, hash model.Hash, committedAt time.Time) error

	GetVersion(context.Context, string) (*model.Version, error)
	ListVersions(ctx context.Context, artifactID string) (model.Versions, error)

	// FindVersions lists the ids of versions starting with some prefix
	FindVersions(ctx context.Context, prefix string) ([]string, error)

	WriteProductionRecord(context.Context, model.ProductionRecord) error
	GetProductionRecord(context.Context, string) (*model.ProductionRecord, error)
}

// HunkStore persists hunks and precedences of versions.
//
// Hunks and precedences may only be written to staging versions. Writing a hunk for a
// (version, partition) pair which already has one replaces it.
type HunkStore interface {
	PutHunk(context.Context, *model.Hunk) error

	// GetHunks returns the hunks of a version, for some partitions or for all partitions when none is specified
	GetHunks(ctx context.Context, versionID string, partitions ...uint64) (model.Hunks, error)

	PutPrecedence(context.Context, model.HunkPrecedence) error
	GetPrecedences(ctx context.Context, versionID string) ([]model.HunkPrecedence, error)
}

// BranchStore persists the branches of ref artifacts
type BranchStore interface {
	CreateBranch(context.Context, model.Branch) error
	UpdateBranch(context.Context, model.Branch) error
	GetBranch(ctx context.Context, refArtifactID, name string) (*model.Branch, error)
	ListBranches(ctx context.Context, refArtifactID string) (model.Branches, error)
}
