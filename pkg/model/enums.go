package model

// EdgeKind qualifies the dependency carried by an artifact edge
type EdgeKind string

const (
	// DtypeDependency is an edge required by the datatype of the dependent artifact, e.g. its partitioning
	DtypeDependency EdgeKind = "dtype"

	// ProducerDependency is an edge feeding a producer, or fed by a producer
	ProducerDependency EdgeKind = "producer"
)

// IsValid checks the value of an edge kind
func (k EdgeKind) IsValid() bool {
	switch k {
	case DtypeDependency, ProducerDependency:
		return true
	default:
		return false
	}
}

func (k EdgeKind) String() string {
	return string(k)
}

// VersionStatus models the lifecycle of a version
type VersionStatus string

const (
	// Staging is the status of a mutable version, which hunks may still be written
	Staging VersionStatus = "staging"

	// Committed is the status of a frozen version. This is a terminal state.
	Committed VersionStatus = "committed"
)

// IsValid checks the value of a version status
func (s VersionStatus) IsValid() bool {
	switch s {
	case Staging, Committed:
		return true
	default:
		return false
	}
}

func (s VersionStatus) String() string {
	return string(s)
}

// Representation tells how content is stored for a version or a hunk
type Representation string

const (
	// State is a full representation of content
	State Representation = "state"

	// Delta is a change relative to the parent versions
	Delta Representation = "delta"

	// CumulativeDelta is a change relative to the nearest ancestor holding state
	CumulativeDelta Representation = "cumulative_delta"
)

// IsValid checks the value of a representation
func (r Representation) IsValid() bool {
	switch r {
	case State, Delta, CumulativeDelta:
		return true
	default:
		return false
	}
}

func (r Representation) String() string {
	return string(r)
}

// Weight is the relative cost of producing content in this representation
func (r Representation) Weight() int {
	switch r {
	case State:
		return 3
	case CumulativeDelta:
		return 2
	case Delta:
		return 1
	default:
		return 0
	}
}

// Accepts tells if a version in this representation may hold a hunk in some representation.
//
// State versions hold only state hunks, cumulative delta versions hold state
// or cumulative delta hunks and delta versions hold any hunk.
func (r Representation) Accepts(hunk Representation) bool {
	switch r {
	case State:
		return hunk == State
	case CumulativeDelta:
		return hunk != Delta
	case Delta:
		return hunk.IsValid()
	default:
		return false
	}
}

// Completion tells if a hunk covers its partition entirely
type Completion string

const (
	// Complete hunks cover the whole content of a partition for their representation
	Complete Completion = "complete"

	// Ragged hunks cover only part of a partition and overlay prior history
	Ragged Completion = "ragged"
)

// IsValid checks the value of a completion
func (c Completion) IsValid() bool {
	switch c {
	case Complete, Ragged:
		return true
	default:
		return false
	}
}

func (c Completion) String() string {
	return string(c)
}

// PolicyKind names a production policy attached to a producer artifact
type PolicyKind string

const (
	// ExtantPolicy produces new versions only for combinations of dependencies which already existed
	ExtantPolicy PolicyKind = "extant"

	// LeafBootstrapPolicy produces a first version when every dependency has exactly one version
	LeafBootstrapPolicy PolicyKind = "leaf-bootstrap"

	// CustomPolicy delegates to a policy provided by the producer datatype
	CustomPolicy PolicyKind = "custom"
)

// DefaultPolicies apply to producers without explicit policies
var DefaultPolicies = []PolicyKind{ExtantPolicy, LeafBootstrapPolicy}

// IsValid checks the value of a policy kind
func (p PolicyKind) IsValid() bool {
	switch p {
	case ExtantPolicy, LeafBootstrapPolicy, CustomPolicy:
		return true
	default:
		return false
	}
}

func (p PolicyKind) String() string {
	return string(p)
}
