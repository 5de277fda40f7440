package model

import "strings"

// Kind is the closed set of concrete artifact datatypes
type Kind string

const (
	// KindBlob is an opaque byte array
	KindBlob Kind = "blob"

	// KindUnaryPartitioning is the singleton partitioning with a single partition
	KindUnaryPartitioning Kind = "unary-partitioning"

	// KindArbitraryPartitioning is a partitioning holding an arbitrary set of partition ids
	KindArbitraryPartitioning Kind = "arbitrary-partitioning"

	// KindNegateBlob produces the bitwise negation of a blob
	KindNegateBlob Kind = "negate-blob"

	// KindNoop is a producer which does not output anything
	KindNoop Kind = "noop"

	// KindRef carries branches pointing to snapshots of other artifacts
	KindRef Kind = "ref"

	// KindTrackingBranch produces snapshots on a ref branch whenever tracked artifacts change
	KindTrackingBranch Kind = "tracking-branch"
)

// Capability is an interface which may be implemented by an artifact kind
type Capability uint8

const (
	// CapPartitioning kinds define partition ids for their dependents
	CapPartitioning Capability = 1 << iota

	// CapProducer kinds derive new versions when their dependencies commit
	CapProducer

	// CapReference kinds carry branches
	CapReference
)

func (c Capability) String() string {
	var names []string
	if c&CapPartitioning != 0 {
		names = append(names, "partitioning")
	}
	if c&CapProducer != 0 {
		names = append(names, "producer")
	}
	if c&CapReference != 0 {
		names = append(names, "reference")
	}
	return strings.Join(names, ",")
}

type kindTraits struct {
	capabilities    Capability
	representations []Representation
}

var kindTable = map[Kind]kindTraits{
	KindBlob:                  {representations: []Representation{State, CumulativeDelta, Delta}},
	KindUnaryPartitioning:     {capabilities: CapPartitioning, representations: []Representation{State}},
	KindArbitraryPartitioning: {capabilities: CapPartitioning, representations: []Representation{State}},
	KindNegateBlob:            {capabilities: CapProducer, representations: []Representation{State}},
	KindNoop:                  {capabilities: CapProducer, representations: []Representation{State}},
	KindRef:                   {capabilities: CapReference, representations: []Representation{State}},
	KindTrackingBranch:        {capabilities: CapProducer, representations: []Representation{State}},
}

// Kinds lists all known artifact kinds
func Kinds() []Kind {
	return []Kind{
		KindBlob, KindUnaryPartitioning, KindArbitraryPartitioning,
		KindNegateBlob, KindNoop, KindRef, KindTrackingBranch,
	}
}

// IsValid checks the value of a kind
func (k Kind) IsValid() bool {
	_, ok := kindTable[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// Capabilities of this kind
func (k Kind) Capabilities() Capability {
	return kindTable[k].capabilities
}

// Implements tells if this kind has some capability
func (k Kind) Implements(c Capability) bool {
	return kindTable[k].capabilities&c == c
}

// Supports tells if content of this kind may be represented in some representation
func (k Kind) Supports(r Representation) bool {
	for _, supported := range kindTable[k].representations {
		if supported == r {
			return true
		}
	}
	return false
}
