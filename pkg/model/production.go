package model

import (
	"sort"
	"strings"
)

// ProducerRequirement tells which producer versions a production policy needs to inspect
type ProducerRequirement uint8

const (
	// ProducerNone needs no producer version
	ProducerNone ProducerRequirement = iota

	// ProducerDependentOnParentVersions needs the producer versions pinning a parent of the triggering version
	ProducerDependentOnParentVersions

	// ProducerAll needs every producer version
	ProducerAll
)

// DependencyRequirement tells which dependency versions a production policy needs to inspect
type DependencyRequirement uint8

const (
	// DependencyNone needs no dependency version
	DependencyNone DependencyRequirement = iota

	// DependencyOfProducerVersion needs the dependency versions pinned by the loaded producer versions
	DependencyOfProducerVersion

	// DependencyAll needs every version of every dependency
	DependencyAll
)

// PolicyRequirements describes what a production policy needs to be evaluated
type PolicyRequirements struct {
	Producer   ProducerRequirement
	Dependency DependencyRequirement
}

// Max combines two sets of requirements
func (r PolicyRequirements) Max(other PolicyRequirements) PolicyRequirements {
	if other.Producer > r.Producer {
		r.Producer = other.Producer
	}
	if other.Dependency > r.Dependency {
		r.Dependency = other.Dependency
	}
	return r
}

// DependencyTuple is a set of dependency versions to realize in one producer version.
//
// Tuples are kept sorted by artifact, so that equal tuples have the same key.
type DependencyTuple []Dependency

// NewDependencyTuple builds a normalized dependency tuple
func NewDependencyTuple(deps ...Dependency) DependencyTuple {
	t := make(DependencyTuple, len(deps))
	copy(t, deps)
	sort.Slice(t, func(i, j int) bool {
		if t[i].ArtifactID != t[j].ArtifactID {
			return t[i].ArtifactID < t[j].ArtifactID
		}
		return t[i].VersionID < t[j].VersionID
	})
	return t
}

// Key renders a stable key for this tuple
func (t DependencyTuple) Key() string {
	parts := make([]string, 0, len(t))
	for _, d := range t {
		parts = append(parts, d.ArtifactID+"@"+d.VersionID)
	}
	return strings.Join(parts, ",")
}

// Replace substitutes a version in the tuple
func (t DependencyTuple) Replace(oldVersionID string, replacement Dependency) DependencyTuple {
	deps := make([]Dependency, 0, len(t))
	for _, d := range t {
		if d.VersionID == oldVersionID {
			deps = append(deps, replacement)
			continue
		}
		deps = append(deps, d)
	}
	return NewDependencyTuple(deps...)
}

// ProductionSpec is one producer version to create: its dependencies and its parents
type ProductionSpec struct {
	Dependencies DependencyTuple
	Parents      []string // producer versions to descend from, empty for a new root
}

type productionEntry struct {
	deps    DependencyTuple
	parents map[string]struct{}
}

// ProductionSpecs collects the producer versions scheduled by production policies.
//
// Scheduling the same dependency tuple twice collapses into one spec, with the union of parents.
type ProductionSpecs struct {
	entries map[string]*productionEntry
}

// NewProductionSpecs builds an empty set of specs
func NewProductionSpecs() *ProductionSpecs {
	return &ProductionSpecs{entries: make(map[string]*productionEntry)}
}

// Insert schedules a dependency tuple, optionally descending from a producer version
func (s *ProductionSpecs) Insert(deps DependencyTuple, parent string) {
	key := deps.Key()
	entry, ok := s.entries[key]
	if !ok {
		entry = &productionEntry{deps: deps, parents: make(map[string]struct{})}
		s.entries[key] = entry
	}
	if parent != "" {
		entry.parents[parent] = struct{}{}
	}
}

// Merge adds all specs from another set
func (s *ProductionSpecs) Merge(other *ProductionSpecs) {
	if other == nil {
		return
	}
	for _, entry := range other.entries {
		if len(entry.parents) == 0 {
			s.Insert(entry.deps, "")
			continue
		}
		for parent := range entry.parents {
			s.Insert(entry.deps, parent)
		}
	}
}

// Retain keeps only the specs satisfying a predicate
func (s *ProductionSpecs) Retain(keep func(ProductionSpec) bool) {
	for key, entry := range s.entries {
		if !keep(entry.spec()) {
			delete(s.entries, key)
		}
	}
}

// Len is the number of scheduled producer versions
func (s *ProductionSpecs) Len() int {
	return len(s.entries)
}

// Specs returns the scheduled producer versions, in a deterministic order
func (s *ProductionSpecs) Specs() []ProductionSpec {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]ProductionSpec, 0, len(keys))
	for _, key := range keys {
		result = append(result, s.entries[key].spec())
	}
	return result
}

func (e *productionEntry) spec() ProductionSpec {
	parents := make([]string, 0, len(e.parents))
	for p := range e.parents {
		parents = append(parents, p)
	}
	sort.Strings(parents)
	return ProductionSpec{Dependencies: e.deps, Parents: parents}
}

// ProductionStrategy is a way for a producer to build its outputs, given the representations of its inputs.
//
// Inputs and outputs are keyed by artifact edge name.
type ProductionStrategy struct {
	Name    string                    `json:"name" yaml:"name"`
	Inputs  map[string]Representation `json:"inputs" yaml:"inputs"`
	Outputs map[string]Representation `json:"outputs" yaml:"outputs"`
}

// OutputWeight is the total cost of the outputs of this strategy
func (s ProductionStrategy) OutputWeight() int {
	var w int
	for _, r := range s.Outputs {
		w += r.Weight()
	}
	return w
}

// ProductionRecord is persisted along a producer version: the strategy selected to produce it
type ProductionRecord struct {
	VersionID string             `json:"version" yaml:"version"`
	Strategy  ProductionStrategy `json:"strategy" yaml:"strategy"`
}
