package model

import (
	"sort"

	"github.com/oneconcern/heraclitus/pkg/core/status"
)

// UnaryPartition is the index of the single partition of artifacts without a partitioning dependency
const UnaryPartition uint64 = 0

// Hunk is the content of a version for one partition, as state or delta
type Hunk struct {
	ID             string         `json:"id" yaml:"id"`
	Hash           Hash           `json:"hash" yaml:"hash"`
	VersionID      string         `json:"version" yaml:"version"`
	Partition      uint64         `json:"partition" yaml:"partition"`
	Representation Representation `json:"representation" yaml:"representation"`
	Completion     Completion     `json:"completion" yaml:"completion"`
	PayloadKey     Hash           `json:"payload" yaml:"payload"` // content address of the encoded payload
	Size           int64          `json:"size" yaml:"size"`       // size of the encoded payload
	_              struct{}
}

// IsSufficient tells if this hunk alone materializes its partition
func (h Hunk) IsSufficient() bool {
	return h.Representation == State && h.Completion == Complete
}

// ContentHash computes the hash of this hunk, which covers neither its id nor its version
func (h Hunk) ContentHash() Hash {
	return NewHasher().
		Uint64(h.Partition).
		String(string(h.Representation)).
		String(string(h.Completion)).
		Hash(h.PayloadKey).
		Sum()
}

// Validate checks the local consistency of a hunk with the version that holds it
func (h Hunk) Validate(v *Version) error {
	if !h.Representation.IsValid() {
		return status.ErrInvalidHunk.WrapMessage("invalid representation %q", h.Representation)
	}
	if !h.Completion.IsValid() {
		return status.ErrInvalidHunk.WrapMessage("invalid completion %q", h.Completion)
	}
	if h.VersionID != v.ID {
		return status.ErrInvalidHunk.WrapMessage("hunk belongs to version %s, not %s", h.VersionID, v.ID)
	}
	if !v.Representation.Accepts(h.Representation) {
		return status.ErrInvalidHunk.WrapMessage("a %s version cannot hold a %s hunk", v.Representation, h.Representation)
	}
	return nil
}

// Hunks is a slice of hunks sortable by partition
type Hunks []Hunk

func (b Hunks) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}
func (b Hunks) Len() int {
	return len(b)
}
func (b Hunks) Less(i, j int) bool {
	return b[i].Partition < b[j].Partition
}

// HunkPrecedence designates, in a merge version, the ancestor which content is authoritative for a partition
type HunkPrecedence struct {
	VersionID   string `json:"version" yaml:"version"`
	Partition   uint64 `json:"partition" yaml:"partition"`
	PrecedentID string `json:"precedent" yaml:"precedent"`
}

// Validate checks the local consistency of a precedence with the merge version that holds it
func (p HunkPrecedence) Validate(v *Version) error {
	if p.VersionID != v.ID {
		return status.ErrInvalidHunk.WrapMessage("precedence belongs to version %s, not %s", p.VersionID, v.ID)
	}
	if v.Representation == State {
		return status.ErrInvalidHunk.WrapMessage("precedence is not allowed on state versions")
	}
	if p.PrecedentID == v.ID {
		return status.ErrInvalidHunk.WrapMessage("a version cannot take precedence over itself")
	}
	return nil
}

// Partitions is a sorted set of partition indices
type Partitions []uint64

// NewPartitions builds a sorted set of partitions
func NewPartitions(indices ...uint64) Partitions {
	seen := make(map[uint64]struct{}, len(indices))
	result := make(Partitions, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		result = append(result, i)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// UnaryPartitions is the partition set of artifacts without a partitioning dependency
func UnaryPartitions() Partitions {
	return Partitions{UnaryPartition}
}

// Contains tells if a partition belongs to the set
func (p Partitions) Contains(index uint64) bool {
	i := sort.Search(len(p), func(i int) bool { return p[i] >= index })
	return i < len(p) && p[i] == index
}
