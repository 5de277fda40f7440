package core

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
)

// HeadParam is the parameter of ref artifacts naming the branch designated by HEAD
const HeadParam = "head"

func (s *Session) refArtifact(id string) (*model.Artifact, error) {
	ref, err := s.artifact(id)
	if err != nil {
		return nil, err
	}
	if !ref.IsReference() {
		return nil, status.ErrNotReference.WrapMessage("%s (%s)", ref.Name, ref.Kind)
	}
	return ref, nil
}

func (s *Session) branchTarget(ctx context.Context, ref *model.Artifact, name, versionID string) error {
	if !model.IsValidBranchName(name) {
		return status.ErrInvalidSpecifier.WrapMessage("invalid branch name %q", name)
	}
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.ArtifactID != ref.ID {
		return status.ErrNotReference.WrapMessage("version %s does not belong to %s", versionID, ref.Name)
	}
	if !v.IsCommitted() {
		return status.ErrVersionState.WrapMessage("branch %s cannot point to staging version %s", name, versionID)
	}
	return nil
}

// CreateBranch creates a branch of a ref artifact, pointing to a committed version of the ref
func (s *Session) CreateBranch(ctx context.Context, refArtifactID, name, versionID string) (*model.Branch, error) {
	ref, err := s.refArtifact(refArtifactID)
	if err != nil {
		return nil, err
	}
	if err := s.branchTarget(ctx, ref, name, versionID); err != nil {
		return nil, err
	}
	b := model.Branch{RefArtifactID: ref.ID, Name: name, VersionID: versionID, UpdatedAt: s.now()}
	if err := s.store.CreateBranch(ctx, b); err != nil {
		if errors.Is(err, store.AlreadyExists) {
			return nil, status.ErrBranchExists.WrapMessage("%s on %s", name, ref.Name)
		}
		return nil, s.storeError(err, "branch %s", name)
	}
	s.l.Info("branch created", zap.String("ref", ref.Name), zap.String("branch", name), zap.String("version", versionID))
	return &b, nil
}

// SetBranch points a branch of a ref artifact to a committed version of the ref, creating the branch if needed
func (s *Session) SetBranch(ctx context.Context, refArtifactID, name, versionID string) (*model.Branch, error) {
	ref, err := s.refArtifact(refArtifactID)
	if err != nil {
		return nil, err
	}
	if err := s.branchTarget(ctx, ref, name, versionID); err != nil {
		return nil, err
	}
	b := model.Branch{RefArtifactID: ref.ID, Name: name, VersionID: versionID, UpdatedAt: s.now()}
	err = s.store.UpdateBranch(ctx, b)
	if errors.Is(err, store.NotFound) {
		err = s.store.CreateBranch(ctx, b)
	}
	if err != nil {
		return nil, s.storeError(err, "branch %s", name)
	}
	s.l.Debug("branch updated", zap.String("ref", ref.Name), zap.String("branch", name), zap.String("version", versionID))
	return &b, nil
}

// Branch returns a branch of a ref artifact. The HEAD name designates the head branch of the ref.
func (s *Session) Branch(ctx context.Context, refArtifactID, name string) (*model.Branch, error) {
	ref, err := s.refArtifact(refArtifactID)
	if err != nil {
		return nil, err
	}
	path, err := model.ParseRevisionPath(name)
	if err != nil {
		return nil, err
	}
	return s.branch(ctx, ref, path)
}

func (s *Session) branch(ctx context.Context, ref *model.Artifact, path model.RevisionPath) (*model.Branch, error) {
	name := path.BranchName(ref.Param(HeadParam, model.DefaultBranch))
	b, err := s.store.GetBranch(ctx, ref.ID, name)
	if err != nil {
		return nil, s.storeError(err, "branch %s of %s", name, ref.Name)
	}
	return b, nil
}

// Branches lists the branches of a ref artifact, by name
func (s *Session) Branches(ctx context.Context, refArtifactID string) (model.Branches, error) {
	ref, err := s.refArtifact(refArtifactID)
	if err != nil {
		return nil, err
	}
	branches, err := s.store.ListBranches(ctx, ref.ID)
	if err != nil {
		return nil, s.storeError(err, "branches of %s", ref.Name)
	}
	return branches, nil
}

// Resolve returns the id of the version designated by a specifier.
//
// Specifiers are either "#<id>", with an unambiguous id prefix being accepted, or
// "<ref>/<branch>[~N][/<artifact>]": the Nth first-parent ancestor of the branch tip,
// or the version of an artifact it pins.
func (s *Session) Resolve(ctx context.Context, specifier string) (string, error) {
	spec, err := model.ParseVersionSpecifier(specifier)
	if err != nil {
		return "", err
	}
	if spec.ID != "" {
		return s.resolveID(ctx, spec)
	}

	g, err := s.requireGraph()
	if err != nil {
		return "", err
	}
	ref, ok := g.ArtifactByName(spec.Ref)
	if !ok {
		return "", status.ErrUnknownArtifact.WrapMessage("%q", spec.Ref)
	}
	if !ref.IsReference() {
		return "", status.ErrNotReference.WrapMessage("%s (%s)", ref.Name, ref.Kind)
	}
	b, err := s.branch(ctx, ref, spec.Revision.Path)
	if err != nil {
		return "", err
	}

	v, err := s.getVersion(ctx, b.VersionID)
	if err != nil {
		return "", err
	}
	for i := 0; i < spec.Revision.Ancestor; i++ {
		if len(v.Parents) == 0 {
			return "", status.ErrNotFound.WrapMessage("%s has no ancestor at %d", specifier, spec.Revision.Ancestor)
		}
		if v, err = s.getVersion(ctx, v.Parents[0]); err != nil {
			return "", err
		}
	}
	if spec.Artifact == "" {
		return v.ID, nil
	}

	artifact, ok := g.ArtifactByName(spec.Artifact)
	if !ok {
		return "", status.ErrUnknownArtifact.WrapMessage("%q", spec.Artifact)
	}
	pinned, ok := v.DependencyOn(artifact.ID)
	if !ok {
		return "", status.ErrNotFound.WrapMessage("%s is not pinned by %s", spec.Artifact, v.ID)
	}
	return pinned, nil
}

func (s *Session) resolveID(ctx context.Context, spec model.VersionSpecifier) (string, error) {
	if !spec.Partial {
		v, err := s.getVersion(ctx, spec.ID)
		if err != nil {
			return "", err
		}
		return v.ID, nil
	}
	ids, err := s.store.FindVersions(ctx, spec.ID)
	if err != nil {
		return "", s.storeError(err, "versions matching %s", spec.ID)
	}
	switch len(ids) {
	case 0:
		return "", status.ErrNotFound.WrapMessage("no version matches #%s", spec.ID)
	case 1:
		return ids[0], nil
	default:
		return "", status.ErrAmbiguous.WrapMessage("#%s matches %d versions", spec.ID, len(ids))
	}
}
