package core

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/zap"
)

// CreateStagingVersion creates a mutable version of an artifact.
//
// Parents must be committed versions of the same artifact. Dependencies pin versions of
// dependency artifacts: an artifact edge must exist from each of them, and an artifact
// with a partitioning dependency must pin a version of it.
func (s *Session) CreateStagingVersion(ctx context.Context, artifactID string, opts ...VersionOption) (*model.Version, error) {
	g, err := s.requireGraph()
	if err != nil {
		return nil, err
	}
	artifact, ok := g.Artifact(artifactID)
	if !ok {
		return nil, status.ErrUnknownArtifact.WrapMessage("%s", artifactID)
	}

	settings := versionSettings{representation: model.State}
	for _, apply := range opts {
		apply(&settings)
	}
	if !settings.representation.IsValid() || !artifact.Kind.Supports(settings.representation) {
		return nil, status.ErrInvalidRepresentation.WrapMessage("%s for %s (%s)", settings.representation, artifact.Name, artifact.Kind)
	}

	for _, parentID := range settings.parents {
		parent, err := s.getVersion(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.ArtifactID != artifactID {
			return nil, status.ErrParentArtifact.WrapMessage("%s is a version of %s", parentID, parent.ArtifactID)
		}
		if !parent.IsCommitted() {
			return nil, status.ErrParentStaging.WrapMessage("%s", parentID)
		}
	}

	deps := make([]model.Dependency, 0, len(settings.dependencies))
	pinned := make(map[string]struct{}, len(settings.dependencies))
	for _, depID := range settings.dependencies {
		dep, err := s.getVersion(ctx, depID)
		if err != nil {
			return nil, err
		}
		if _, ok := g.Edge(dep.ArtifactID, artifactID); !ok {
			return nil, status.ErrMissingArtifactEdge.WrapMessage("%s -> %s", dep.ArtifactID, artifactID)
		}
		if _, ok := pinned[dep.ArtifactID]; ok {
			return nil, status.ErrDuplicateDependency.WrapMessage("%s", dep.ArtifactID)
		}
		pinned[dep.ArtifactID] = struct{}{}
		deps = append(deps, model.Dependency{VersionID: dep.ID, ArtifactID: dep.ArtifactID})
	}

	if partitioningID, ok := g.PartitioningOf(artifactID); ok {
		if _, ok := pinned[partitioningID]; !ok {
			return nil, status.ErrMissingPartitioning.WrapMessage("%s", artifact.Name)
		}
	}

	v := model.NewVersion(artifactID,
		model.VersionParents(settings.parents...),
		model.VersionDependencies(deps...),
		model.VersionRepresentation(settings.representation),
		model.VersionMessage(settings.message),
		model.VersionCreatedAt(s.now()),
	)
	if err := s.store.CreateVersion(ctx, v); err != nil {
		return nil, s.storeError(err, "version of %s", artifact.Name)
	}

	s.l.Debug("staging version created",
		zap.String("artifact", artifact.Name),
		zap.String("version", v.ID),
		zap.Strings("parents", v.Parents),
		zap.Int("dependencies", len(v.Dependencies)),
	)
	return v, nil
}

// CommitVersion freezes a staging version and runs the production cascade it triggers.
//
// The commit itself is atomic: when it fails, the version is left staging. When the
// cascade fails, the version remains committed and the error of the failing branches
// of the cascade is returned, together with the committed version.
//
// Committing an already committed version fails with ErrVersionCommitted and has no effect.
func (s *Session) CommitVersion(ctx context.Context, id string) (*model.Version, error) {
	q := newCascade(s)
	v, err := q.commit(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	if err := q.run(ctx); err != nil {
		return v.Clone(), err
	}
	return v.Clone(), nil
}

// commitVersion is the atomic commit step: checks, content hash and status change
func (s *Session) commitVersion(ctx context.Context, id string) (*model.Version, error) {
	v, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "version %s", id)
	}
	if v.IsCommitted() {
		return nil, status.ErrVersionCommitted.WrapMessage("%s", id)
	}
	artifact, err := s.artifact(v.ArtifactID)
	if err != nil {
		return nil, err
	}

	for _, dep := range v.Dependencies {
		d, err := s.getVersion(ctx, dep.VersionID)
		if err != nil {
			return nil, err
		}
		if !d.IsCommitted() {
			return nil, status.ErrDependencyStaging.WrapMessage("%s pins %s", id, dep.VersionID)
		}
	}

	if v.IsMerge() {
		pending, err := s.conflicts(ctx, v)
		if err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			return nil, &MergeConflictError{VersionID: id, Partitions: pending}
		}
	}

	hash, err := s.versionHash(ctx, artifact, v)
	if err != nil {
		return nil, err
	}

	committedAt := s.now()
	if err := s.store.CommitVersion(ctx, id, hash, committedAt); err != nil {
		return nil, s.storeError(err, "version %s", id)
	}
	v.Status = model.Committed
	v.Hash = hash
	v.CommittedAt = committedAt
	s.cache.Add(id, v)

	s.metrics.Commits.WithLabelValues(artifact.Kind.String()).Inc()
	s.l.Info("version committed",
		zap.String("artifact", artifact.Name),
		zap.String("version", id),
		zap.Stringer("hash", hash),
	)
	return v, nil
}

// versionHash computes the content hash of a version.
//
// Parents are always hashed. Pinned dependencies are hashed for producer versions only,
// so that equal content derived through different producers hashes the same.
func (s *Session) versionHash(ctx context.Context, artifact *model.Artifact, v *model.Version) (model.Hash, error) {
	content := model.VersionContent{
		Representation: v.Representation,
		Parents:        make([]model.Hash, 0, len(v.Parents)),
	}
	for _, parentID := range v.Parents {
		parent, err := s.getVersion(ctx, parentID)
		if err != nil {
			return model.ZeroHash, err
		}
		if !parent.IsCommitted() {
			return model.ZeroHash, status.ErrParentStaging.WrapMessage("%s", parentID)
		}
		content.Parents = append(content.Parents, parent.Hash)
	}
	if artifact.IsProducer() {
		for _, dep := range v.Dependencies {
			d, err := s.getVersion(ctx, dep.VersionID)
			if err != nil {
				return model.ZeroHash, err
			}
			content.Dependencies = append(content.Dependencies, d.Hash)
		}
	}

	hunks, err := s.Hunks(ctx, v.ID)
	if err != nil {
		return model.ZeroHash, err
	}
	content.Hunks = hunks

	precedences, err := s.store.GetPrecedences(ctx, v.ID)
	if err != nil {
		return model.ZeroHash, s.storeError(err, "precedences of %s", v.ID)
	}
	if len(precedences) > 0 {
		content.Precedences = make(map[uint64]model.Hash, len(precedences))
		for _, p := range precedences {
			precedent, err := s.getVersion(ctx, p.PrecedentID)
			if err != nil {
				return model.ZeroHash, err
			}
			content.Precedences[p.Partition] = precedent.Hash
		}
	}
	return content.Hash(), nil
}

// ancestors loads the versions reachable from some versions through parent edges, the versions included
func (s *Session) ancestors(ctx context.Context, ids ...string) (map[string]*model.Version, error) {
	result := make(map[string]*model.Version)
	stack := append([]string(nil), ids...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := result[id]; ok {
			continue
		}
		v, err := s.getVersion(ctx, id)
		if err != nil {
			return nil, err
		}
		result[id] = v
		for _, p := range v.Parents {
			if _, ok := result[p]; !ok {
				stack = append(stack, p)
			}
		}
	}
	return result, nil
}

// isAncestor tells if a version is a strict ancestor of another one
func (s *Session) isAncestor(ctx context.Context, ancestorID string, v *model.Version) (bool, error) {
	if ancestorID == v.ID {
		return false, nil
	}
	all, err := s.ancestors(ctx, v.Parents...)
	if err != nil {
		return false, err
	}
	_, ok := all[ancestorID]
	return ok, nil
}
