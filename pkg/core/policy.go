package core

import (
	"context"
	"sort"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/errors"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"go.uber.org/zap"
)

// Policy decides which producer versions to create when a dependency of a producer commits a version
type Policy interface {
	Requirements() model.PolicyRequirements
	Evaluate(ctx context.Context, view *PolicyView) (*model.ProductionSpecs, error)
}

// PolicyView is what a policy sees of the version graph.
//
// Producer and dependency versions are preloaded according to the requirements of the evaluated policies.
// They hold committed versions only, except StagingProducerVersions which is loaded along with all
// producer versions and holds the producer versions of failed or ongoing productions.
type PolicyView struct {
	Graph                   *model.ArtifactGraph
	Producer                model.Artifact
	Trigger                 *model.Version
	ProducerVersions        model.Versions
	StagingProducerVersions model.Versions
	DependencyVersions      map[string]model.Versions // by dependency artifact

	s *Session
}

// Version returns a version by id
func (v *PolicyView) Version(ctx context.Context, id string) (*model.Version, error) {
	return v.s.GetVersion(ctx, id)
}

// Branch returns a branch of a ref artifact
func (v *PolicyView) Branch(ctx context.Context, refArtifactID, name string) (*model.Branch, error) {
	return v.s.Branch(ctx, refArtifactID, name)
}

// ExtantPolicy realizes again the dependency tuples of existing producer versions,
// substituting the triggering version for its parents.
//
// It never schedules a combination of dependencies which did not exist before.
type ExtantPolicy struct{}

// Requirements of the extant policy
func (ExtantPolicy) Requirements() model.PolicyRequirements {
	return model.PolicyRequirements{Producer: model.ProducerDependentOnParentVersions, Dependency: model.DependencyNone}
}

// Evaluate the extant policy
func (ExtantPolicy) Evaluate(_ context.Context, view *PolicyView) (*model.ProductionSpecs, error) {
	specs := model.NewProductionSpecs()
	trigger := model.Dependency{VersionID: view.Trigger.ID, ArtifactID: view.Trigger.ArtifactID}
	for _, parent := range view.Trigger.Parents {
		for _, pv := range view.ProducerVersions {
			if !pv.DependsOnVersion(parent) {
				continue
			}
			tuple := model.NewDependencyTuple(pv.Dependencies...).Replace(parent, trigger)
			specs.Insert(tuple, pv.ID)
		}
	}
	return specs, nil
}

// LeafBootstrapPolicy creates the first version of a producer, once every one of its
// inputs has exactly one committed leaf version. A producer with any version, even a
// staging one left by a failed production, is not bootstrapped again.
type LeafBootstrapPolicy struct{}

// Requirements of the leaf bootstrap policy
func (LeafBootstrapPolicy) Requirements() model.PolicyRequirements {
	return model.PolicyRequirements{Producer: model.ProducerAll, Dependency: model.DependencyAll}
}

// Evaluate the leaf bootstrap policy
func (LeafBootstrapPolicy) Evaluate(_ context.Context, view *PolicyView) (*model.ProductionSpecs, error) {
	specs := model.NewProductionSpecs()
	if len(view.ProducerVersions) > 0 || len(view.StagingProducerVersions) > 0 {
		return specs, nil
	}
	inputs := view.Graph.ProducerInputs(view.Producer.ID)
	if len(inputs) == 0 {
		return specs, nil
	}
	deps := make([]model.Dependency, 0, len(inputs))
	for _, edge := range inputs {
		leaves := view.DependencyVersions[edge.Source].Leaves()
		if len(leaves) != 1 {
			return specs, nil
		}
		deps = append(deps, model.Dependency{VersionID: leaves[0].ID, ArtifactID: edge.Source})
	}
	specs.Insert(model.NewDependencyTuple(deps...), "")
	return specs, nil
}

// policies returns the production policies of a producer: persisted ones, else those of the graph
func (s *Session) policies(ctx context.Context, producer model.Artifact) ([]Policy, error) {
	kinds, err := s.store.GetProductionPolicies(ctx, producer.ID)
	if err != nil && !errors.Is(err, store.NotFound) {
		return nil, s.storeError(err, "policies of %s", producer.Name)
	}
	if len(kinds) == 0 {
		kinds = producer.ProductionPolicies()
	}

	result := make([]Policy, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case model.ExtantPolicy:
			result = append(result, ExtantPolicy{})
		case model.LeafBootstrapPolicy:
			result = append(result, LeafBootstrapPolicy{})
		case model.CustomPolicy:
			m, err := s.model(producer.Kind)
			if err != nil {
				return nil, err
			}
			provider, ok := m.(PolicyProvider)
			if !ok {
				return nil, status.ErrPolicy.WrapMessage("%s does not provide a custom policy", producer.Kind)
			}
			result = append(result, provider.CustomPolicy(producer))
		default:
			return nil, status.ErrPolicy.WrapMessage("unknown policy %q", kind)
		}
	}
	return result, nil
}

// SetProductionPolicies replaces the persisted production policies of a producer artifact
func (s *Session) SetProductionPolicies(ctx context.Context, producerID string, kinds ...model.PolicyKind) error {
	producer, err := s.artifact(producerID)
	if err != nil {
		return err
	}
	if !producer.IsProducer() {
		return status.ErrNotProducer.WrapMessage("%s", producer.Name)
	}
	for _, kind := range kinds {
		if !kind.IsValid() {
			return status.ErrPolicy.WrapMessage("unknown policy %q", kind)
		}
	}
	if err := s.store.WriteProductionPolicies(ctx, producerID, kinds); err != nil {
		return s.storeError(err, "policies of %s", producer.Name)
	}
	return nil
}

// evaluatePolicies unions the specs scheduled by the policies of a producer for a triggering version
func (s *Session) evaluatePolicies(ctx context.Context, producer model.Artifact, trigger *model.Version) (*model.ProductionSpecs, error) {
	policies, err := s.policies(ctx, producer)
	if err != nil {
		return nil, err
	}
	var req model.PolicyRequirements
	for _, p := range policies {
		req = req.Max(p.Requirements())
	}
	view, err := s.policyView(ctx, producer, trigger, req)
	if err != nil {
		return nil, err
	}

	specs := model.NewProductionSpecs()
	for _, p := range policies {
		scheduled, err := p.Evaluate(ctx, view)
		if err != nil {
			return nil, status.ErrPolicy.WrapWithLog(s.l, err, zap.String("producer", producer.Name), zap.String("version", trigger.ID))
		}
		specs.Merge(scheduled)
	}
	return specs, nil
}

func (s *Session) policyView(ctx context.Context, producer model.Artifact, trigger *model.Version, req model.PolicyRequirements) (*PolicyView, error) {
	g, err := s.requireGraph()
	if err != nil {
		return nil, err
	}
	view := &PolicyView{
		Graph:              g,
		Producer:           producer,
		Trigger:            trigger,
		DependencyVersions: make(map[string]model.Versions),
		s:                  s,
	}

	if req.Producer != model.ProducerNone {
		versions, err := s.ListVersions(ctx, producer.ID)
		if err != nil {
			return nil, err
		}
		for _, pv := range versions {
			switch {
			case !pv.IsCommitted():
				if req.Producer == model.ProducerAll {
					view.StagingProducerVersions = append(view.StagingProducerVersions, pv)
				}
			case req.Producer == model.ProducerAll || pinsAny(pv, trigger.Parents):
				view.ProducerVersions = append(view.ProducerVersions, pv)
			}
		}
	}

	switch req.Dependency {
	case model.DependencyAll:
		for _, edge := range g.ProducerInputs(producer.ID) {
			versions, err := s.ListVersions(ctx, edge.Source)
			if err != nil {
				return nil, err
			}
			view.DependencyVersions[edge.Source] = versions.Committed()
		}
	case model.DependencyOfProducerVersion:
		seen := make(map[string]struct{})
		for _, pv := range view.ProducerVersions {
			for _, dep := range pv.Dependencies {
				if _, ok := seen[dep.VersionID]; ok {
					continue
				}
				seen[dep.VersionID] = struct{}{}
				d, err := s.getVersion(ctx, dep.VersionID)
				if err != nil {
					return nil, err
				}
				view.DependencyVersions[dep.ArtifactID] = append(view.DependencyVersions[dep.ArtifactID], d)
			}
		}
		for _, versions := range view.DependencyVersions {
			sort.Sort(versions)
		}
	}
	return view, nil
}

func pinsAny(v *model.Version, ids []string) bool {
	for _, id := range ids {
		if v.DependsOnVersion(id) {
			return true
		}
	}
	return false
}

// ParsimoniousStrategy selects, among the strategies of a producer accepting the representations
// of the pinned input versions, the one with the lightest outputs. Ties go to the first declared strategy.
func ParsimoniousStrategy(strategies []model.ProductionStrategy, inputs map[string]model.Representation) (model.ProductionStrategy, error) {
	var (
		best  model.ProductionStrategy
		found bool
	)
	for _, strategy := range strategies {
		if !strategyAccepts(strategy, inputs) {
			continue
		}
		if !found || strategy.OutputWeight() < best.OutputWeight() {
			best = strategy
			found = true
		}
	}
	if !found {
		return best, status.ErrNoStrategy.WrapMessage("inputs %v", inputs)
	}
	return best, nil
}

func strategyAccepts(strategy model.ProductionStrategy, inputs map[string]model.Representation) bool {
	for name, r := range strategy.Inputs {
		if inputs[name] != r {
			return false
		}
	}
	return true
}

// strategyInputs maps the input edge names of a producer version to the representation of the pinned versions
func (s *Session) strategyInputs(ctx context.Context, g *model.ArtifactGraph, v *model.Version) (map[string]model.Representation, error) {
	inputs := make(map[string]model.Representation)
	for _, edge := range g.ProducerInputs(v.ArtifactID) {
		pinned, ok := v.DependencyOn(edge.Source)
		if !ok {
			continue
		}
		d, err := s.getVersion(ctx, pinned)
		if err != nil {
			return nil, err
		}
		inputs[edge.Name] = d.Representation
	}
	return inputs, nil
}
