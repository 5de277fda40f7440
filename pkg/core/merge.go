package core

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"go.uber.org/zap"
)

// MergeConflictError is returned when committing a merge version with unresolved partitions
type MergeConflictError struct {
	VersionID  string
	Partitions []uint64
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("%v: version %s has unresolved partitions %v", status.ErrMergeConflict, e.VersionID, e.Partitions)
}

// Unwrap makes this error match ErrMergeConflict
func (e *MergeConflictError) Unwrap() error {
	return status.ErrMergeConflict
}

// MergeResult describes a staging merge version
type MergeResult struct {
	Version  *model.Version
	Resolved []uint64 // partitions where the history of one input was adopted or a conflict was resolved
	Pending  []uint64 // conflicting partitions, to be resolved before committing
}

// partitionPlan tells how the histories of the inputs of a merge combine for a partition
type partitionPlan struct {
	partition  uint64
	winner     *model.Version // input whose history dominates the others, if compositions differ
	candidates model.Versions // inputs with non-dominated histories, when conflicting
}

func (p partitionPlan) conflicting() bool {
	return len(p.candidates) > 1
}

// Merge creates a staging version reconciling several committed versions of an artifact.
//
// For every partition, the composition tips of the inputs are compared: a tip which is an
// ancestor of another input with a different tip is dominated. A single surviving tip is adopted through a
// precedence, or through a state hunk when the kind does not support deltas. Several
// surviving tips are a conflict, left pending or resolved according to the conflict mode.
//
// The merge version is returned staging: it is committed with CommitVersion once no
// partition is pending.
func (s *Session) Merge(ctx context.Context, artifactID string, inputs []string, opts ...MergeOption) (*MergeResult, error) {
	settings := mergeSettings{mode: ForbidConflicts}
	for _, apply := range opts {
		apply(&settings)
	}

	artifact, err := s.artifact(artifactID)
	if err != nil {
		return nil, err
	}
	ids := uniqueStrings(inputs)
	if len(ids) < 2 {
		return nil, status.ErrMergeInputs.WrapMessage("a merge requires at least 2 distinct versions, got %d", len(ids))
	}
	versions := make(model.Versions, 0, len(ids))
	for _, id := range ids {
		v, err := s.getVersion(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.ArtifactID != artifactID {
			return nil, status.ErrMergeInputs.WrapMessage("%s is not a version of %s", id, artifact.Name)
		}
		if !v.IsCommitted() {
			return nil, status.ErrMergeInputs.WrapMessage("%s is not committed", id)
		}
		versions = append(versions, v)
	}

	representation := model.State
	if artifact.Kind.Supports(model.Delta) {
		representation = model.Delta
	}
	merge, err := s.CreateStagingVersion(ctx, artifactID,
		WithParents(ids...),
		WithDependencies(mergeDependencies(versions)...),
		WithRepresentation(representation),
		WithMessage(settings.message),
	)
	if err != nil {
		return nil, err
	}

	partitions, err := s.partitions(ctx, merge)
	if err != nil {
		return nil, err
	}
	plans, err := s.mergePlan(ctx, versions, partitions)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Version: merge}
	var resolver ConflictResolver
	if settings.mode == ResolveConflicts {
		m, err := s.model(artifact.Kind)
		if err != nil {
			return nil, err
		}
		resolver, _ = m.(ConflictResolver)
	}

	var conflicts int
	for _, plan := range plans {
		if plan.conflicting() {
			conflicts++
		}
		switch {
		case plan.conflicting() && settings.mode == ForbidConflicts:
			result.Pending = append(result.Pending, plan.partition)
			continue

		case plan.conflicting() && resolver != nil:
			h := &handle{Session: s, q: newCascade(s)}
			if err := resolver.ResolveConflict(ctx, h, merge.Clone(), plan.partition, plan.candidates); err != nil {
				return nil, err
			}

		case plan.conflicting():
			if err := s.adopt(ctx, merge, plan.partition, latestCommitted(plan.candidates)); err != nil {
				return nil, err
			}

		case plan.winner != nil:
			if err := s.adopt(ctx, merge, plan.partition, plan.winner); err != nil {
				return nil, err
			}

		default:
			continue
		}
		result.Resolved = append(result.Resolved, plan.partition)
	}

	s.metrics.Conflicts.Add(float64(conflicts))
	if settings.mode == ResolveConflicts && resolver != nil {
		// resolvers may leave partitions unresolved
		if result.Pending, err = s.conflicts(ctx, merge); err != nil {
			return nil, err
		}
	}

	s.l.Info("merge version created",
		zap.String("artifact", artifact.Name),
		zap.String("version", merge.ID),
		zap.Strings("inputs", ids),
		zap.Stringer("mode", settings.mode),
		zap.Int("resolved", len(result.Resolved)),
		zap.Int("pending", len(result.Pending)),
	)
	return result, nil
}

// Conflicts returns the partitions of a merge version which are still to be resolved
func (s *Session) Conflicts(ctx context.Context, versionID string) ([]uint64, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.conflicts(ctx, v)
}

func (s *Session) conflicts(ctx context.Context, merge *model.Version) ([]uint64, error) {
	if !merge.IsMerge() {
		return nil, nil
	}
	partitions, err := s.partitions(ctx, merge)
	if err != nil {
		return nil, err
	}

	resolved := make(map[uint64]struct{})
	hunks, err := s.Hunks(ctx, merge.ID)
	if err != nil {
		return nil, err
	}
	for _, h := range hunks {
		if h.IsSufficient() {
			resolved[h.Partition] = struct{}{}
		}
	}
	precedences, err := s.store.GetPrecedences(ctx, merge.ID)
	if err != nil {
		return nil, s.storeError(err, "precedences of %s", merge.ID)
	}
	for _, p := range precedences {
		resolved[p.Partition] = struct{}{}
	}

	open := make([]uint64, 0, len(partitions))
	for _, p := range partitions {
		if _, ok := resolved[p]; !ok {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	inputs := make(model.Versions, 0, len(merge.Parents))
	for _, id := range merge.Parents {
		v, err := s.getVersion(ctx, id)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, v)
	}
	plans, err := s.mergePlan(ctx, inputs, open)
	if err != nil {
		return nil, err
	}
	var pending []uint64
	for _, plan := range plans {
		if plan.conflicting() {
			pending = append(pending, plan.partition)
		}
	}
	return pending, nil
}

// mergePlan indexes the composition tips of the inputs by partition, then applies the dominance rule
func (s *Session) mergePlan(ctx context.Context, inputs model.Versions, partitions []uint64) ([]partitionPlan, error) {
	tips := iradix.New()
	txn := tips.Txn()
	for _, input := range inputs {
		comp, err := s.composition(ctx, input, partitions)
		if err != nil {
			return nil, err
		}
		for _, p := range partitions {
			tip, ok := comp.Tip(p)
			if !ok {
				continue
			}
			key := tipKey(p, tip)
			var holders model.Versions
			if existing, ok := txn.Get(key); ok {
				holders = existing.(model.Versions)
			}
			txn.Insert(key, append(holders, input))
		}
	}
	tips = txn.Commit()

	ancestry := make(map[string]map[string]*model.Version)
	ancestorsOf := func(id string) (map[string]*model.Version, error) {
		if a, ok := ancestry[id]; ok {
			return a, nil
		}
		a, err := s.ancestors(ctx, id)
		if err != nil {
			return nil, err
		}
		ancestry[id] = a
		return a, nil
	}

	sorted := append([]uint64(nil), partitions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	plans := make([]partitionPlan, 0, len(sorted))
	for _, p := range sorted {
		var (
			tipIDs  []string
			holders []model.Versions
		)
		tips.Root().WalkPrefix(partitionPrefix(p), func(k []byte, v interface{}) bool {
			tipIDs = append(tipIDs, string(k[8:]))
			holders = append(holders, v.(model.Versions))
			return false
		})
		if len(tipIDs) < 2 {
			// identical histories, or a single input with content
			continue
		}

		plan := partitionPlan{partition: p}
		for i, tip := range tipIDs {
			dominated, err := dominatedTip(tip, i, holders, ancestorsOf)
			if err != nil {
				return nil, err
			}
			if !dominated {
				plan.candidates = append(plan.candidates, holders[i][0])
			}
		}
		if len(plan.candidates) == 0 {
			// each input already holds the history adopted by the others
			for _, h := range holders {
				plan.candidates = append(plan.candidates, h[0])
			}
		}
		if len(plan.candidates) == 1 {
			plan.winner = plan.candidates[0]
			plan.candidates = nil
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// dominatedTip tells if the composition tip held by holders[i] is an ancestor-or-self of
// an input holding another tip: that input's history already includes it
func dominatedTip(tip string, i int, holders []model.Versions, ancestorsOf func(string) (map[string]*model.Version, error)) (bool, error) {
	for j, inputs := range holders {
		if i == j {
			continue
		}
		for _, input := range inputs {
			a, err := ancestorsOf(input.ID)
			if err != nil {
				return false, err
			}
			if _, ok := a[tip]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// adopt makes the history of an input authoritative for a partition of a merge version
func (s *Session) adopt(ctx context.Context, merge *model.Version, partition uint64, input *model.Version) error {
	if merge.Representation != model.State {
		return s.SetPrecedence(ctx, merge.ID, partition, input.ID)
	}
	state, err := s.Materialize(ctx, input.ID, partition)
	if err != nil {
		return err
	}
	_, err = s.WriteHunk(ctx, HunkSpec{
		VersionID:      merge.ID,
		Partition:      partition,
		Representation: model.State,
		Completion:     model.Complete,
		Payload:        state,
	})
	return err
}

// latestCommitted picks the most recently committed version. Ties go to the highest id.
func latestCommitted(candidates model.Versions) *model.Version {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CommittedAt.After(best.CommittedAt) || (c.CommittedAt.Equal(best.CommittedAt) && c.ID > best.ID) {
			best = c
		}
	}
	return best
}

// mergeDependencies unions the pins of the inputs when they agree on every artifact,
// else keeps the pins of the first input
func mergeDependencies(inputs model.Versions) []string {
	pins := make(map[string]string)
	for _, v := range inputs {
		for _, d := range v.Dependencies {
			if existing, ok := pins[d.ArtifactID]; ok && existing != d.VersionID {
				return dependencyIDs(inputs[0])
			}
			pins[d.ArtifactID] = d.VersionID
		}
	}
	artifacts := make([]string, 0, len(pins))
	for a := range pins {
		artifacts = append(artifacts, a)
	}
	sort.Strings(artifacts)
	result := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		result = append(result, pins[a])
	}
	return result
}

func dependencyIDs(v *model.Version) []string {
	result := make([]string, 0, len(v.Dependencies))
	for _, d := range v.Dependencies {
		result = append(result, d.VersionID)
	}
	return result
}

func partitionPrefix(partition uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], partition)
	return b[:]
}

func tipKey(partition uint64, versionID string) []byte {
	return append(partitionPrefix(partition), versionID...)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
