package model

import (
	"sort"
	"time"
)

// Dependency pins the version of a dependency artifact for a dependent version.
//
// The supporting artifact edge is implied by the ordered pair of artifacts.
type Dependency struct {
	VersionID  string `json:"version" yaml:"version"`
	ArtifactID string `json:"artifact" yaml:"artifact"`
}

// Version is a point in the history of an artifact
type Version struct {
	ID             string         `json:"id" yaml:"id"`
	Hash           Hash           `json:"hash" yaml:"hash"`
	ArtifactID     string         `json:"artifact" yaml:"artifact"`
	Status         VersionStatus  `json:"status" yaml:"status"`
	Representation Representation `json:"representation" yaml:"representation"`
	Parents        []string       `json:"parents,omitempty" yaml:"parents,omitempty"`           // descent edges, within the same artifact
	Dependencies   []Dependency   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"` // relations to versions of dependency artifacts
	Message        string         `json:"message,omitempty" yaml:"message,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" yaml:"createdAt"`
	CommittedAt    time.Time      `json:"committedAt,omitempty" yaml:"committedAt,omitempty"`
	_              struct{}
}

// IsCommitted tells if this version is frozen
func (v *Version) IsCommitted() bool {
	return v.Status == Committed
}

// DependencyOn returns the pinned version of some dependency artifact
func (v *Version) DependencyOn(artifactID string) (string, bool) {
	for _, d := range v.Dependencies {
		if d.ArtifactID == artifactID {
			return d.VersionID, true
		}
	}
	return "", false
}

// DependsOnVersion tells if a version is pinned by this version
func (v *Version) DependsOnVersion(versionID string) bool {
	for _, d := range v.Dependencies {
		if d.VersionID == versionID {
			return true
		}
	}
	return false
}

// HasParent tells if a version is a direct parent of this version
func (v *Version) HasParent(versionID string) bool {
	for _, p := range v.Parents {
		if p == versionID {
			return true
		}
	}
	return false
}

// IsMerge tells if this version has more than one parent
func (v *Version) IsMerge() bool {
	return len(v.Parents) > 1
}

// Clone returns a deep copy of this version
func (v *Version) Clone() *Version {
	out := *v
	out.Parents = append([]string(nil), v.Parents...)
	out.Dependencies = append([]Dependency(nil), v.Dependencies...)
	return &out
}

// VersionOption sets optional properties of a new version
type VersionOption func(*Version)

// VersionParents sets the parents of a new version
func VersionParents(parents ...string) VersionOption {
	return func(v *Version) {
		v.Parents = append(v.Parents, parents...)
	}
}

// VersionDependencies pins dependency versions for a new version
func VersionDependencies(deps ...Dependency) VersionOption {
	return func(v *Version) {
		v.Dependencies = append(v.Dependencies, deps...)
	}
}

// VersionRepresentation sets the representation of a new version. The default is State.
func VersionRepresentation(r Representation) VersionOption {
	return func(v *Version) {
		v.Representation = r
	}
}

// VersionMessage sets a documentary message on a new version
func VersionMessage(msg string) VersionOption {
	return func(v *Version) {
		v.Message = msg
	}
}

// VersionCreatedAt forces the creation timestamp of a new version
func VersionCreatedAt(ts time.Time) VersionOption {
	return func(v *Version) {
		if !ts.IsZero() {
			v.CreatedAt = ts.UTC()
		}
	}
}

// NewVersion builds a staging version for an artifact
func NewVersion(artifactID string, opts ...VersionOption) *Version {
	v := &Version{
		ArtifactID:     artifactID,
		Status:         Staging,
		Representation: State,
		CreatedAt:      Timestamp(),
	}
	for _, apply := range opts {
		apply(v)
	}
	v.ID = NewIDWithTime(v.CreatedAt)
	v.Parents = dedupe(v.Parents)
	sort.SliceStable(v.Dependencies, func(i, j int) bool {
		return v.Dependencies[i].ArtifactID < v.Dependencies[j].ArtifactID
	})
	return v
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// Versions is a sortable slice of versions, in creation order
type Versions []*Version

func (b Versions) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}
func (b Versions) Len() int {
	return len(b)
}
func (b Versions) Less(i, j int) bool {
	if !b[i].CreatedAt.Equal(b[j].CreatedAt) {
		return b[i].CreatedAt.Before(b[j].CreatedAt)
	}
	return b[i].ID < b[j].ID
}

// Last version in slice
func (b Versions) Last() *Version {
	return b[len(b)-1]
}

// Committed retains committed versions only
func (b Versions) Committed() Versions {
	result := make(Versions, 0, len(b))
	for _, v := range b {
		if v.IsCommitted() {
			result = append(result, v)
		}
	}
	return result
}

// Leaves retains versions which are not the parent of any other version in the slice
func (b Versions) Leaves() Versions {
	parents := make(map[string]struct{}, len(b))
	for _, v := range b {
		for _, p := range v.Parents {
			parents[p] = struct{}{}
		}
	}
	result := make(Versions, 0, len(b))
	for _, v := range b {
		if _, isParent := parents[v.ID]; !isParent {
			result = append(result, v)
		}
	}
	return result
}

// VersionContent gathers what the content hash of a version covers
type VersionContent struct {
	Representation Representation
	Parents        []Hash          // hashes of the parent versions
	Dependencies   []Hash          // hashes of pinned versions, for producers only
	Hunks          []Hunk          // hunks of the version
	Precedences    map[uint64]Hash // partition -> hash of the precedent version
}

// Hash computes the content hash of a version.
//
// Versions holding the same content on top of the same history hash the same,
// whatever their artifact or identifier.
func (c VersionContent) Hash() Hash {
	hunks := make([]Hunk, len(c.Hunks))
	copy(hunks, c.Hunks)
	sort.Slice(hunks, func(i, j int) bool { return hunks[i].Partition < hunks[j].Partition })

	h := NewHasher().
		String(string(c.Representation)).
		SortedHashes(c.Parents).
		SortedHashes(c.Dependencies).
		Uint64(uint64(len(hunks)))
	for _, hunk := range hunks {
		h.Uint64(hunk.Partition).Hash(hunk.Hash)
	}

	partitions := make([]uint64, 0, len(c.Precedences))
	for p := range c.Precedences {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	h.Uint64(uint64(len(partitions)))
	for _, p := range partitions {
		h.Uint64(p).Hash(c.Precedences[p])
	}
	return h.Sum()
}
