package datatype

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
)

// BranchParam is the parameter of tracking-branch producers naming the branch they advance
const BranchParam = "branch"

// Ref carries branches. A ref version is a snapshot: it pins one version of each tracked artifact.
type Ref struct {
	stateOnly
}

var _ core.Model = Ref{}

// Kind of refs
func (Ref) Kind() model.Kind {
	return model.KindRef
}

// TrackingBranch is a producer advancing a branch of a ref whenever one of its tracked artifacts commits.
//
// Tracked artifacts feed the producer through producer edges, and feed the ref through dtype edges.
// The producer feeds the ref through a producer edge.
type TrackingBranch struct {
	stateOnly
}

var (
	_ core.Producer       = TrackingBranch{}
	_ core.PolicyProvider = TrackingBranch{}
)

// Kind of tracking-branch producers
func (TrackingBranch) Kind() model.Kind {
	return model.KindTrackingBranch
}

// Strategies of the tracking-branch producer accept any input
func (TrackingBranch) Strategies() []model.ProductionStrategy {
	return []model.ProductionStrategy{{
		Name:    "snapshot",
		Outputs: map[string]model.Representation{"ref": model.State},
	}}
}

// CustomPolicy follows the tracked branch: it realizes again the dependency tuple of the producer
// version which created the tip of the branch, or bootstraps the branch when it does not exist yet.
func (TrackingBranch) CustomPolicy(artifact model.Artifact) core.Policy {
	return trackingPolicy{producer: artifact}
}

// Produce creates a snapshot of the tracked versions on the ref, then advances the branch to it
func (TrackingBranch) Produce(ctx context.Context, h core.Handle, v *model.Version, _ model.ProductionStrategy) error {
	g := h.Graph()
	producer, ok := g.Artifact(v.ArtifactID)
	if !ok {
		return status.ErrUnknownArtifact.WrapMessage("%s", v.ArtifactID)
	}
	ref, err := refOf(g, producer.ID)
	if err != nil {
		return err
	}
	branch := producer.Param(BranchParam, model.DefaultBranch)

	var parents []string
	tip, err := h.Branch(ctx, ref.ID, branch)
	switch {
	case err == nil:
		parents = append(parents, tip.VersionID)
	case errors.Is(err, status.ErrNotFound):
	default:
		return err
	}

	deps := []string{v.ID}
	for _, d := range v.Dependencies {
		if _, ok := g.Edge(d.ArtifactID, ref.ID); ok {
			deps = append(deps, d.VersionID)
		}
	}
	snapshot, err := h.CreateStagingVersion(ctx, ref.ID,
		core.WithParents(parents...),
		core.WithDependencies(deps...),
		core.WithMessage("tracking "+branch),
	)
	if err != nil {
		return err
	}
	if err := h.CommitVersion(ctx, snapshot.ID); err != nil {
		return err
	}
	h.AfterCommit(func(ctx context.Context, h core.Handle) error {
		_, err := h.SetBranch(ctx, ref.ID, branch, snapshot.ID)
		return err
	})
	return nil
}

type trackingPolicy struct {
	producer model.Artifact
}

func (p trackingPolicy) Requirements() model.PolicyRequirements {
	return core.ExtantPolicy{}.Requirements().Max(core.LeafBootstrapPolicy{}.Requirements())
}

func (p trackingPolicy) Evaluate(ctx context.Context, view *core.PolicyView) (*model.ProductionSpecs, error) {
	ref, err := refOf(view.Graph, p.producer.ID)
	if err != nil {
		return nil, err
	}
	specs, err := core.ExtantPolicy{}.Evaluate(ctx, view)
	if err != nil {
		return nil, err
	}

	branch, err := view.Branch(ctx, ref.ID, p.producer.Param(BranchParam, model.DefaultBranch))
	if errors.Is(err, status.ErrNotFound) {
		bootstrap, err := core.LeafBootstrapPolicy{}.Evaluate(ctx, view)
		if err != nil {
			return nil, err
		}
		specs.Merge(bootstrap)
		return specs, nil
	}
	if err != nil {
		return nil, err
	}

	tip, err := view.Version(ctx, branch.VersionID)
	if err != nil {
		return nil, err
	}
	tipProducer, ok := tip.DependencyOn(p.producer.ID)
	if !ok {
		// the branch was moved by hand: nothing is tracked from there
		return model.NewProductionSpecs(), nil
	}
	specs.Retain(func(spec model.ProductionSpec) bool {
		for _, parent := range spec.Parents {
			if parent == tipProducer {
				return true
			}
		}
		return false
	})
	return specs, nil
}

// refOf returns the ref artifact fed by a tracking-branch producer
func refOf(g *model.ArtifactGraph, producerID string) (*model.Artifact, error) {
	for _, e := range g.Dependents(producerID) {
		if a, ok := g.Artifact(e.Dependent); ok && a.IsReference() {
			return a, nil
		}
	}
	return nil, status.ErrNotReference.WrapMessage("producer %s feeds no ref", producerID)
}
