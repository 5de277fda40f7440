package core

import (
	"context"
	"sync"

	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
	"golang.org/x/sync/errgroup"
)

// Composition maps partitions to the hunks materializing them, oldest first
type Composition map[uint64]model.Hunks

// Tip returns the newest version contributing a hunk to a partition
func (c Composition) Tip(partition uint64) (string, bool) {
	hunks := c[partition]
	if len(hunks) == 0 {
		return "", false
	}
	return hunks[len(hunks)-1].VersionID, true
}

// partitionWalk is the state of the composition walk for one partition
type partitionWalk struct {
	hunks      model.Hunks // newest first
	seen       bool
	resolved   bool
	superseded bool                      // a complete cumulative delta was met: only state hunks still count
	restrict   map[string]*model.Version // when a precedence was met, the versions still contributing
}

func (w *partitionWalk) accepts(v *model.Version) bool {
	if w.resolved {
		return false
	}
	if w.restrict == nil {
		return true
	}
	_, ok := w.restrict[v.ID]
	return ok
}

// Composition computes, for some partitions of a version, the chain of hunks from
// the nearest sufficient state to the version. All active partitions are computed
// when none is specified.
//
// Partitions without any content in the history of the version are absent from the result.
// A partition with content but no sufficient state fails with ErrIncompleteHistory.
func (s *Session) Composition(ctx context.Context, versionID string, partitions ...uint64) (Composition, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		if partitions, err = s.partitions(ctx, v); err != nil {
			return nil, err
		}
	}
	return s.composition(ctx, v, partitions)
}

// composition walks the ancestors of a version in reverse topological order.
//
// Among versions ready to be visited, the most recently created goes first, then the highest id.
func (s *Session) composition(ctx context.Context, v *model.Version, partitions []uint64) (Composition, error) {
	versions, err := s.ancestors(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	children := make(map[string]int, len(versions))
	for _, a := range versions {
		for _, p := range a.Parents {
			children[p]++
		}
	}

	walks := make(map[uint64]*partitionWalk, len(partitions))
	for _, p := range partitions {
		walks[p] = &partitionWalk{}
	}
	unresolved := len(walks)

	ready := []*model.Version{v}
	for len(ready) > 0 && unresolved > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var current *model.Version
		current, ready = popNewest(ready)

		resolved, err := s.visit(ctx, current, walks)
		if err != nil {
			return nil, err
		}
		unresolved -= resolved

		for _, p := range current.Parents {
			children[p]--
			if children[p] == 0 {
				ready = append(ready, versions[p])
			}
		}
	}

	result := make(Composition, len(walks))
	for p, w := range walks {
		if !w.seen {
			continue
		}
		if !w.resolved {
			return nil, status.ErrIncompleteHistory.WrapMessage("no sufficient state for partition %d of version %s", p, v.ID)
		}
		hunks := make(model.Hunks, len(w.hunks))
		for i, h := range w.hunks {
			hunks[len(hunks)-1-i] = h
		}
		result[p] = hunks
	}
	return result, nil
}

// visit collects the hunks and precedences of a version. It returns the number of newly resolved partitions.
func (s *Session) visit(ctx context.Context, v *model.Version, walks map[uint64]*partitionWalk) (int, error) {
	open := make([]uint64, 0, len(walks))
	for p, w := range walks {
		if w.accepts(v) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return 0, nil
	}

	hunks, err := s.Hunks(ctx, v.ID, open...)
	if err != nil {
		return 0, err
	}
	var precedences []model.HunkPrecedence
	if v.Representation != model.State {
		if precedences, err = s.store.GetPrecedences(ctx, v.ID); err != nil {
			return 0, s.storeError(err, "precedences of %s", v.ID)
		}
	}

	var resolved int
	for _, h := range hunks {
		w, ok := walks[h.Partition]
		if !ok || !w.accepts(v) {
			continue
		}
		w.seen = true
		if w.superseded && h.Representation != model.State {
			continue
		}
		w.hunks = append(w.hunks, h)
		switch {
		case h.IsSufficient():
			w.resolved = true
			resolved++
		case h.Representation == model.CumulativeDelta && h.Completion == model.Complete:
			w.superseded = true
		}
	}

	for _, p := range precedences {
		w, ok := walks[p.Partition]
		if !ok || !w.accepts(v) {
			continue
		}
		restrict, err := s.ancestors(ctx, p.PrecedentID)
		if err != nil {
			return 0, err
		}
		w.seen = true
		w.restrict = restrict
	}
	return resolved, nil
}

func popNewest(ready []*model.Version) (*model.Version, []*model.Version) {
	best := 0
	for i := 1; i < len(ready); i++ {
		a, b := ready[i], ready[best]
		if a.CreatedAt.After(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.ID > b.ID) {
			best = i
		}
	}
	v := ready[best]
	ready[best] = ready[len(ready)-1]
	return v, ready[:len(ready)-1]
}

// Materialize returns the content of a partition of a version, encoded by the datatype of its artifact
func (s *Session) Materialize(ctx context.Context, versionID string, partition uint64) ([]byte, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePartition(ctx, v, partition); err != nil {
		return nil, err
	}
	state, found, err := s.materialize(ctx, v, partition)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, status.ErrNotFound.WrapMessage("no content for partition %d of version %s", partition, versionID)
	}
	return state, nil
}

func (s *Session) materialize(ctx context.Context, v *model.Version, partition uint64) ([]byte, bool, error) {
	comp, err := s.composition(ctx, v, []uint64{partition})
	if err != nil {
		return nil, false, err
	}
	hunks, ok := comp[partition]
	if !ok {
		return nil, false, nil
	}
	m, err := s.versionModel(v)
	if err != nil {
		return nil, false, err
	}
	state, err := s.fold(ctx, m, hunks)
	return state, err == nil, err
}

// MaterializeAll returns the content of every partition of a version which has some content.
//
// Partitions are folded concurrently.
func (s *Session) MaterializeAll(ctx context.Context, versionID string) (map[uint64][]byte, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	partitions, err := s.partitions(ctx, v)
	if err != nil {
		return nil, err
	}
	comp, err := s.composition(ctx, v, partitions)
	if err != nil {
		return nil, err
	}
	m, err := s.versionModel(v)
	if err != nil {
		return nil, err
	}

	var mx sync.Mutex
	result := make(map[uint64][]byte, len(comp))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(s.settings.concurrency)
	for p, hunks := range comp {
		p, hunks := p, hunks
		grp.Go(func() error {
			state, err := s.fold(gctx, m, hunks)
			if err != nil {
				return err
			}
			mx.Lock()
			result[p] = state
			mx.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Session) versionModel(v *model.Version) (Model, error) {
	artifact, err := s.artifact(v.ArtifactID)
	if err != nil {
		return nil, err
	}
	return s.model(artifact.Kind)
}

// fold applies a chain of hunks, oldest first
func (s *Session) fold(ctx context.Context, m Model, hunks model.Hunks) ([]byte, error) {
	var state []byte
	for _, h := range hunks {
		payload, err := s.Payload(ctx, h)
		if err != nil {
			return nil, err
		}
		if state, err = m.Compose(state, h, payload); err != nil {
			return nil, status.ErrInvalidHunk.WrapMessage("cannot compose hunk %s of version %s: %v", h.ID, h.VersionID, err)
		}
	}
	return state, nil
}
