package datatype

import (
	"context"
	"fmt"
	"sort"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/zap"
)

const (
	// InputEdge is the role name of the edge feeding a single-input producer
	InputEdge = "input"

	// OutputEdge is the role name of the edge from a single-output producer to its output
	OutputEdge = "output"
)

// NegateBlob produces the bitwise negation of a blob, partition by partition
type NegateBlob struct {
	stateOnly
}

var _ core.Producer = NegateBlob{}

// Kind of the negate producer
func (NegateBlob) Kind() model.Kind {
	return model.KindNegateBlob
}

// Strategies of the negate producer keep the representation of the input
func (NegateBlob) Strategies() []model.ProductionStrategy {
	return []model.ProductionStrategy{
		{
			Name:    "state",
			Inputs:  map[string]model.Representation{InputEdge: model.State},
			Outputs: map[string]model.Representation{OutputEdge: model.State},
		},
		{
			Name:    "cumulative",
			Inputs:  map[string]model.Representation{InputEdge: model.CumulativeDelta},
			Outputs: map[string]model.Representation{OutputEdge: model.CumulativeDelta},
		},
		{
			Name:    "delta",
			Inputs:  map[string]model.Representation{InputEdge: model.Delta},
			Outputs: map[string]model.Representation{OutputEdge: model.Delta},
		},
	}
}

// Produce writes the negation of the pinned input version into a new version of the output artifact.
//
// The output version shares the partitioning of the input and descends from the outputs of
// the parents of the producer version.
func (NegateBlob) Produce(ctx context.Context, h core.Handle, v *model.Version, strategy model.ProductionStrategy) error {
	g := h.Graph()
	in, ok := g.DependencyByName(v.ArtifactID, InputEdge)
	if !ok {
		return status.ErrMissingArtifactEdge.WrapMessage("negate producer %s has no %q edge", v.ArtifactID, InputEdge)
	}
	out, ok := g.DependentByName(v.ArtifactID, OutputEdge)
	if !ok {
		return status.ErrMissingArtifactEdge.WrapMessage("negate producer %s has no %q edge", v.ArtifactID, OutputEdge)
	}
	inputID, ok := v.DependencyOn(in.Source)
	if !ok {
		return status.ErrMissingArtifactEdge.WrapMessage("producer version %s does not pin its input", v.ID)
	}
	input, err := h.GetVersion(ctx, inputID)
	if err != nil {
		return err
	}

	parents, err := outputsOf(ctx, h, out.Dependent, v.Parents)
	if err != nil {
		return err
	}
	deps := []string{v.ID}
	if partitioningID, ok := g.PartitioningOf(out.Dependent); ok {
		pin, ok := input.DependencyOn(partitioningID)
		if !ok {
			return status.ErrMissingPartitioning.WrapMessage("input %s does not pin the partitioning of the output", input.ID)
		}
		deps = append(deps, pin)
	}

	representation := strategy.Outputs[OutputEdge]
	output, err := h.CreateStagingVersion(ctx, out.Dependent,
		core.WithParents(parents...),
		core.WithDependencies(deps...),
		core.WithRepresentation(representation),
		core.WithMessage(fmt.Sprintf("negation of %s", input.ID)),
	)
	if err != nil {
		return err
	}

	if representation != model.State && !input.IsMerge() && len(parents) <= 1 {
		err = negateHunks(ctx, h, input, output)
	} else {
		err = negateStates(ctx, h, input, output)
	}
	if err != nil {
		return err
	}

	h.Logger().Debug("negation written", zap.String("version", input.ID), zap.String("output", output.ID), zap.String("strategy", strategy.Name))
	return h.CommitVersion(ctx, output.ID)
}

// negateHunks negates the hunks of the input version one by one
func negateHunks(ctx context.Context, h core.Handle, input, output *model.Version) error {
	hunks, err := h.Hunks(ctx, input.ID)
	if err != nil {
		return err
	}
	for _, hunk := range hunks {
		payload, err := h.Payload(ctx, hunk)
		if err != nil {
			return err
		}
		negated, err := negatePayload(hunk.Representation, payload)
		if err != nil {
			return err
		}
		if _, err := h.WriteHunk(ctx, core.HunkSpec{
			VersionID:      output.ID,
			Partition:      hunk.Partition,
			Representation: hunk.Representation,
			Completion:     hunk.Completion,
			Payload:        negated,
		}); err != nil {
			return err
		}
	}
	return nil
}

// negateStates writes the negation of the materialized input as complete states
func negateStates(ctx context.Context, h core.Handle, input, output *model.Version) error {
	states, err := h.MaterializeAll(ctx, input.ID)
	if err != nil {
		return err
	}
	partitions := make([]uint64, 0, len(states))
	for p := range states {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, p := range partitions {
		content, err := DecodeBlob(states[p])
		if err != nil {
			return err
		}
		if _, err := WriteBlob(ctx, h, output.ID, p, Negate(content)); err != nil {
			return err
		}
	}
	return nil
}

func negatePayload(representation model.Representation, payload []byte) ([]byte, error) {
	if representation == model.State {
		content, err := DecodeBlob(payload)
		if err != nil {
			return nil, err
		}
		return EncodeBlob(Negate(content))
	}
	d, err := DecodeDelta(payload)
	if err != nil {
		return nil, err
	}
	d.Bytes = Negate(d.Bytes)
	return EncodeDelta(d)
}

// Negate returns the bitwise negation of some bytes
func Negate(content []byte) []byte {
	out := make([]byte, len(content))
	for i, b := range content {
		out[i] = ^b
	}
	return out
}

// outputsOf returns the committed versions of an output artifact pinning some producer versions
func outputsOf(ctx context.Context, h core.Handle, outputArtifactID string, producerVersions []string) ([]string, error) {
	if len(producerVersions) == 0 {
		return nil, nil
	}
	versions, err := h.ListVersions(ctx, outputArtifactID)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, o := range versions.Committed() {
		for _, pv := range producerVersions {
			if o.DependsOnVersion(pv) {
				result = append(result, o.ID)
				break
			}
		}
	}
	return result, nil
}
