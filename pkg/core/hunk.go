package core

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/zap"
)

// HunkSpec describes the content to write for one partition of a staging version
type HunkSpec struct {
	VersionID      string
	Partition      uint64
	Representation model.Representation // defaults to the representation of the version
	Completion     model.Completion     // defaults to complete
	Payload        []byte               // encoded by the datatype of the artifact
}

// WriteHunk writes the content of a partition into a staging version.
//
// The payload is stored content-addressed. Writing a partition twice replaces its hunk.
func (s *Session) WriteHunk(ctx context.Context, spec HunkSpec) (*model.Hunk, error) {
	v, err := s.getVersion(ctx, spec.VersionID)
	if err != nil {
		return nil, err
	}
	if v.IsCommitted() {
		return nil, status.ErrVersionCommitted.WrapMessage("%s", v.ID)
	}
	artifact, err := s.artifact(v.ArtifactID)
	if err != nil {
		return nil, err
	}

	hunk := model.Hunk{
		VersionID:      v.ID,
		Partition:      spec.Partition,
		Representation: spec.Representation,
		Completion:     spec.Completion,
	}
	if hunk.Representation == "" {
		hunk.Representation = v.Representation
	}
	if hunk.Completion == "" {
		hunk.Completion = model.Complete
	}
	if err := hunk.Validate(v); err != nil {
		return nil, err
	}
	if !artifact.Kind.Supports(hunk.Representation) {
		return nil, status.ErrInvalidRepresentation.WrapMessage("%s hunk for %s (%s)", hunk.Representation, artifact.Name, artifact.Kind)
	}
	if err := s.requirePartition(ctx, v, spec.Partition); err != nil {
		return nil, err
	}

	res, err := s.payloads.Put(ctx, spec.Payload)
	if err != nil {
		return nil, err
	}
	hunk.ID = model.NewID()
	hunk.PayloadKey = res.Key
	hunk.Size = res.Written
	hunk.Hash = hunk.ContentHash()

	if err := s.store.PutHunk(ctx, &hunk); err != nil {
		return nil, s.storeError(err, "hunk of %s", v.ID)
	}

	s.l.Debug("hunk written",
		zap.String("artifact", artifact.Name),
		zap.String("version", v.ID),
		zap.Uint64("partition", hunk.Partition),
		zap.String("hunk", hunk.ID),
		zap.Stringer("representation", hunk.Representation),
		zap.Bool("found", res.Found),
	)
	return &hunk, nil
}

// SetPrecedence designates, in a staging merge version, the ancestor which history is authoritative for a partition
func (s *Session) SetPrecedence(ctx context.Context, versionID string, partition uint64, precedentID string) error {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.IsCommitted() {
		return status.ErrVersionCommitted.WrapMessage("%s", v.ID)
	}
	p := model.HunkPrecedence{VersionID: versionID, Partition: partition, PrecedentID: precedentID}
	if err := p.Validate(v); err != nil {
		return err
	}
	ok, err := s.isAncestor(ctx, precedentID, v)
	if err != nil {
		return err
	}
	if !ok {
		return status.ErrInvalidHunk.WrapMessage("precedent %s is not an ancestor of %s", precedentID, versionID)
	}
	if err := s.requirePartition(ctx, v, partition); err != nil {
		return err
	}

	if err := s.store.PutPrecedence(ctx, p); err != nil {
		return s.storeError(err, "precedence of %s", versionID)
	}
	s.l.Debug("precedence set",
		zap.String("version", versionID),
		zap.Uint64("partition", partition),
		zap.String("precedent", precedentID),
	)
	return nil
}

func (s *Session) requirePartition(ctx context.Context, v *model.Version, partition uint64) error {
	partitions, err := s.partitions(ctx, v)
	if err != nil {
		return err
	}
	if !partitions.Contains(partition) {
		return status.ErrUnknownPartition.WrapMessage("%d in version %s", partition, v.ID)
	}
	return nil
}

// Partitions returns the active partition set of a version.
//
// It is defined by the pinned version of the partitioning dependency of the artifact,
// or is the unary partition when the artifact has no partitioning dependency.
func (s *Session) Partitions(ctx context.Context, versionID string) (model.Partitions, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.partitions(ctx, v)
}

func (s *Session) partitions(ctx context.Context, v *model.Version) (model.Partitions, error) {
	g, err := s.requireGraph()
	if err != nil {
		return nil, err
	}
	partitioningID, ok := g.PartitioningOf(v.ArtifactID)
	if !ok {
		return model.UnaryPartitions(), nil
	}
	pinnedID, ok := v.DependencyOn(partitioningID)
	if !ok {
		return nil, status.ErrMissingPartitioning.WrapMessage("version %s", v.ID)
	}

	key := partitionsKey(pinnedID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(model.Partitions), nil
	}

	pinned, err := s.getVersion(ctx, pinnedID)
	if err != nil {
		return nil, err
	}
	partitioning, err := s.artifact(partitioningID)
	if err != nil {
		return nil, err
	}
	m, err := s.model(partitioning.Kind)
	if err != nil {
		return nil, err
	}
	p, ok := m.(Partitioning)
	if !ok {
		return nil, status.ErrUnknownKind.WrapMessage("%s does not implement partitioning", partitioning.Kind)
	}

	// partitioning artifacts partition themselves with the unary partition
	state, _, err := s.materialize(ctx, pinned, model.UnaryPartition)
	if err != nil {
		return nil, err
	}
	partitions, err := p.Partitions(state)
	if err != nil {
		return nil, err
	}
	if pinned.IsCommitted() {
		s.cache.Add(key, partitions)
	}
	return partitions, nil
}
