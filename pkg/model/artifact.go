package model

import (
	"sort"

	"github.com/oneconcern/heraclitus/pkg/core/status"
)

// Artifact is a node of the artifact graph
type Artifact struct {
	ID               string            `json:"id" yaml:"id"`
	Hash             Hash              `json:"hash" yaml:"hash"`
	Kind             Kind              `json:"kind" yaml:"kind"`
	Name             string            `json:"name" yaml:"name"`
	SelfPartitioning bool              `json:"selfPartitioning,omitempty" yaml:"selfPartitioning,omitempty"` // partitioning artifacts partition themselves with the unary partitioning
	Policies         []PolicyKind      `json:"policies,omitempty" yaml:"policies,omitempty"`                 // production policies, for producers only
	Params           map[string]string `json:"params,omitempty" yaml:"params,omitempty"`                     // kind-specific parameters
	_                struct{}
}

// IsProducer tells if this artifact derives its versions from its dependencies
func (a Artifact) IsProducer() bool {
	return a.Kind.Implements(CapProducer)
}

// IsPartitioning tells if this artifact defines partitions for its dependents
func (a Artifact) IsPartitioning() bool {
	return a.Kind.Implements(CapPartitioning)
}

// IsReference tells if this artifact carries branches
func (a Artifact) IsReference() bool {
	return a.Kind.Implements(CapReference)
}

// Param returns a kind-specific parameter, or some default value
func (a Artifact) Param(key, defaultValue string) string {
	if v, ok := a.Params[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// ProductionPolicies returns the policies to evaluate for this producer
func (a Artifact) ProductionPolicies() []PolicyKind {
	if len(a.Policies) == 0 {
		return DefaultPolicies
	}
	return a.Policies
}

// ArtifactOption sets optional properties of an artifact
type ArtifactOption func(*Artifact)

// ArtifactID forces the identifier of a new artifact
func ArtifactID(id string) ArtifactOption {
	return func(a *Artifact) {
		if id != "" {
			a.ID = id
		}
	}
}

// ArtifactParam sets a kind-specific parameter
func ArtifactParam(key, value string) ArtifactOption {
	return func(a *Artifact) {
		if a.Params == nil {
			a.Params = make(map[string]string)
		}
		a.Params[key] = value
	}
}

// ArtifactPolicies sets the production policies of a producer
func ArtifactPolicies(policies ...PolicyKind) ArtifactOption {
	return func(a *Artifact) {
		a.Policies = append([]PolicyKind(nil), policies...)
	}
}

// ArtifactEdge is a directed dependency from a source artifact to a dependent artifact
type ArtifactEdge struct {
	Source    string   `json:"source" yaml:"source"`
	Dependent string   `json:"dependent" yaml:"dependent"`
	Kind      EdgeKind `json:"kind" yaml:"kind"`
	Name      string   `json:"name" yaml:"name"`
	_         struct{}
}

// ArtifactGraphDescriptor is the serializable form of an artifact graph
type ArtifactGraphDescriptor struct {
	ID        string         `json:"id" yaml:"id"`
	Hash      Hash           `json:"hash" yaml:"hash"`
	Artifacts []Artifact     `json:"artifacts" yaml:"artifacts"`
	Edges     []ArtifactEdge `json:"edges" yaml:"edges"`
	_         struct{}
}

// ArtifactGraph is the dependency DAG of artifacts.
//
// The graph is mutable until frozen. Every insertion is validated: a failed
// insertion leaves the graph unchanged.
type ArtifactGraph struct {
	id        string
	hash      Hash
	artifacts map[string]*Artifact
	byName    map[string]string
	order     []string
	edges     []ArtifactEdge
	outgoing  map[string][]int
	incoming  map[string][]int
	frozen    bool
}

// NewArtifactGraph builds an empty artifact graph
func NewArtifactGraph() *ArtifactGraph {
	return newArtifactGraph(NewID())
}

func newArtifactGraph(id string) *ArtifactGraph {
	return &ArtifactGraph{
		id:        id,
		artifacts: make(map[string]*Artifact),
		byName:    make(map[string]string),
		outgoing:  make(map[string][]int),
		incoming:  make(map[string][]int),
	}
}

// NewArtifactGraphFromDescriptor rebuilds a graph from its serialized form, validating every insertion.
//
// The rebuilt graph is frozen.
func NewArtifactGraphFromDescriptor(desc ArtifactGraphDescriptor) (*ArtifactGraph, error) {
	g := newArtifactGraph(desc.ID)
	for i := range desc.Artifacts {
		a := desc.Artifacts[i]
		if err := g.insertArtifact(&a); err != nil {
			return nil, err
		}
	}
	for _, e := range desc.Edges {
		if _, err := g.AddEdge(e.Source, e.Dependent, e.Kind, e.Name); err != nil {
			return nil, err
		}
	}
	g.Freeze()
	if !desc.Hash.IsZero() && desc.Hash != g.hash {
		return nil, status.ErrGraphIntegrity.WrapMessage("artifact graph %s does not match its hash", desc.ID)
	}
	return g, nil
}

// ID of the graph
func (g *ArtifactGraph) ID() string {
	return g.id
}

// Hash of the graph. It is computed when the graph is frozen.
func (g *ArtifactGraph) Hash() Hash {
	return g.hash
}

// IsFrozen tells if the graph topology is read-only
func (g *ArtifactGraph) IsFrozen() bool {
	return g.frozen
}

// AddArtifact adds a non-producer artifact to the graph
func (g *ArtifactGraph) AddArtifact(kind Kind, name string, opts ...ArtifactOption) (*Artifact, error) {
	if kind.Implements(CapProducer) {
		return nil, status.ErrInvalidEdge.WrapMessage("producer kind %q must be added as a producer artifact", kind)
	}
	return g.addArtifact(kind, name, opts...)
}

// AddProducerArtifact adds a producer artifact to the graph, with its production policies
func (g *ArtifactGraph) AddProducerArtifact(kind Kind, name string, policies []PolicyKind, opts ...ArtifactOption) (*Artifact, error) {
	if !kind.Implements(CapProducer) {
		return nil, status.ErrNotProducer.WrapMessage("%q", kind)
	}
	for _, p := range policies {
		if !p.IsValid() {
			return nil, status.ErrGraphIntegrity.WrapMessage("invalid production policy %q", p)
		}
	}
	return g.addArtifact(kind, name, append(opts, ArtifactPolicies(policies...))...)
}

func (g *ArtifactGraph) addArtifact(kind Kind, name string, opts ...ArtifactOption) (*Artifact, error) {
	a := &Artifact{
		ID:               NewID(),
		Kind:             kind,
		Name:             name,
		SelfPartitioning: kind.Implements(CapPartitioning),
	}
	for _, apply := range opts {
		apply(a)
	}
	if err := g.insertArtifact(a); err != nil {
		return nil, err
	}
	out := *a
	return &out, nil
}

func (g *ArtifactGraph) insertArtifact(a *Artifact) error {
	if g.frozen {
		return status.ErrGraphFrozen
	}
	if !a.Kind.IsValid() {
		return status.ErrUnknownKind.WrapMessage("%q", a.Kind)
	}
	if a.ID == "" {
		return status.ErrGraphIntegrity.WrapMessage("artifact id is required")
	}
	if _, exists := g.artifacts[a.ID]; exists {
		return status.ErrGraphIntegrity.WrapMessage("duplicate artifact id %s", a.ID)
	}
	if a.Name != "" {
		if _, exists := g.byName[a.Name]; exists {
			return status.ErrDuplicateName.WrapMessage("%q", a.Name)
		}
		g.byName[a.Name] = a.ID
	}
	g.artifacts[a.ID] = a
	g.order = append(g.order, a.ID)
	return nil
}

// AddEdge adds a dependency edge between two artifacts.
//
// The edge is rejected if either artifact is unknown, if the pair already has an edge,
// or if the edge would close a cycle.
func (g *ArtifactGraph) AddEdge(source, dependent string, kind EdgeKind, name string) (*ArtifactEdge, error) {
	if g.frozen {
		return nil, status.ErrGraphFrozen
	}
	if !kind.IsValid() {
		return nil, status.ErrInvalidEdge.WrapMessage("invalid edge kind %q", kind)
	}
	src, ok := g.artifacts[source]
	if !ok {
		return nil, status.ErrDanglingEdge.WrapMessage("unknown source artifact %s", source)
	}
	dep, ok := g.artifacts[dependent]
	if !ok {
		return nil, status.ErrDanglingEdge.WrapMessage("unknown dependent artifact %s", dependent)
	}
	if _, exists := g.Edge(source, dependent); exists {
		return nil, status.ErrDuplicateEdge.WrapMessage("%s -> %s", src.Name, dep.Name)
	}
	if source == dependent || g.reaches(dependent, source) {
		return nil, status.ErrCycle.WrapMessage("%s -> %s", src.Name, dep.Name)
	}
	if kind == ProducerDependency && !src.IsProducer() && !dep.IsProducer() {
		return nil, status.ErrInvalidEdge.WrapMessage("producer edge %s -> %s has no producer endpoint", src.Name, dep.Name)
	}
	if kind == DtypeDependency && src.IsPartitioning() {
		if dep.SelfPartitioning {
			return nil, status.ErrDuplicatePartitioning.WrapMessage("%s partitions itself", dep.Name)
		}
		if _, partitioned := g.PartitioningOf(dependent); partitioned {
			return nil, status.ErrDuplicatePartitioning.WrapMessage("%s", dep.Name)
		}
	}

	g.edges = append(g.edges, ArtifactEdge{
		Source:    source,
		Dependent: dependent,
		Kind:      kind,
		Name:      name,
	})
	idx := len(g.edges) - 1
	g.outgoing[source] = append(g.outgoing[source], idx)
	g.incoming[dependent] = append(g.incoming[dependent], idx)

	e := g.edges[idx]
	return &e, nil
}

// reaches tells if there is a directed path from one artifact to another
func (g *ArtifactGraph) reaches(from, to string) bool {
	seen := map[string]struct{}{from: {}}
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == to {
			return true
		}
		for _, idx := range g.outgoing[current] {
			next := g.edges[idx].Dependent
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}

// Freeze makes the graph read-only and computes all content hashes.
//
// Freezing an already frozen graph does nothing.
func (g *ArtifactGraph) Freeze() {
	if g.frozen {
		return
	}
	g.rehash()
	g.frozen = true
}

func (g *ArtifactGraph) rehash() {
	artifactHashes := make([]Hash, 0, len(g.order))
	for _, id := range g.TopoSort() {
		a := g.artifacts[id]
		deps := make([]Hash, 0, len(g.incoming[id]))
		for _, idx := range g.incoming[id] {
			deps = append(deps, g.artifacts[g.edges[idx].Source].Hash)
		}
		params := make([]string, 0, len(a.Params))
		for k, v := range a.Params {
			params = append(params, k+"="+v)
		}
		a.Hash = NewHasher().
			SortedHashes(deps).
			String(string(a.Kind)).
			String(a.Name).
			Bool(a.SelfPartitioning).
			SortedStrings(params).
			Sum()
		artifactHashes = append(artifactHashes, a.Hash)
	}

	edges := make([]string, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, g.artifacts[e.Source].Hash.String()+">"+g.artifacts[e.Dependent].Hash.String()+":"+string(e.Kind)+":"+e.Name)
	}
	g.hash = NewHasher().SortedHashes(artifactHashes).SortedStrings(edges).Sum()
}

// Artifact returns an artifact by id
func (g *ArtifactGraph) Artifact(id string) (*Artifact, bool) {
	a, ok := g.artifacts[id]
	if !ok {
		return nil, false
	}
	out := *a
	return &out, true
}

// ArtifactByName returns an artifact by name
func (g *ArtifactGraph) ArtifactByName(name string) (*Artifact, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Artifact(id)
}

// Artifacts returns all artifacts, in insertion order
func (g *ArtifactGraph) Artifacts() []Artifact {
	result := make([]Artifact, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, *g.artifacts[id])
	}
	return result
}

// Edges returns all edges, in insertion order
func (g *ArtifactGraph) Edges() []ArtifactEdge {
	return append([]ArtifactEdge(nil), g.edges...)
}

// Edge returns the edge between an ordered pair of artifacts
func (g *ArtifactGraph) Edge(source, dependent string) (ArtifactEdge, bool) {
	for _, idx := range g.outgoing[source] {
		if g.edges[idx].Dependent == dependent {
			return g.edges[idx], true
		}
	}
	return ArtifactEdge{}, false
}

// Dependencies returns the incoming edges of an artifact
func (g *ArtifactGraph) Dependencies(id string) []ArtifactEdge {
	result := make([]ArtifactEdge, 0, len(g.incoming[id]))
	for _, idx := range g.incoming[id] {
		result = append(result, g.edges[idx])
	}
	return result
}

// Dependents returns the outgoing edges of an artifact
func (g *ArtifactGraph) Dependents(id string) []ArtifactEdge {
	result := make([]ArtifactEdge, 0, len(g.outgoing[id]))
	for _, idx := range g.outgoing[id] {
		result = append(result, g.edges[idx])
	}
	return result
}

// DependencyByName returns the incoming edge of an artifact with a given role name
func (g *ArtifactGraph) DependencyByName(id, name string) (ArtifactEdge, bool) {
	for _, idx := range g.incoming[id] {
		if g.edges[idx].Name == name {
			return g.edges[idx], true
		}
	}
	return ArtifactEdge{}, false
}

// DependentByName returns the outgoing edge of an artifact with a given role name
func (g *ArtifactGraph) DependentByName(id, name string) (ArtifactEdge, bool) {
	for _, idx := range g.outgoing[id] {
		if g.edges[idx].Name == name {
			return g.edges[idx], true
		}
	}
	return ArtifactEdge{}, false
}

// ProducerDependents returns the producer artifacts fed by an artifact through a producer edge
func (g *ArtifactGraph) ProducerDependents(id string) []Artifact {
	var result []Artifact
	for _, idx := range g.outgoing[id] {
		e := g.edges[idx]
		if e.Kind != ProducerDependency {
			continue
		}
		if dep := g.artifacts[e.Dependent]; dep.IsProducer() {
			result = append(result, *dep)
		}
	}
	return result
}

// ProducerInputs returns the incoming producer edges of a producer artifact
func (g *ArtifactGraph) ProducerInputs(id string) []ArtifactEdge {
	var result []ArtifactEdge
	for _, idx := range g.incoming[id] {
		if g.edges[idx].Kind == ProducerDependency {
			result = append(result, g.edges[idx])
		}
	}
	return result
}

// PartitioningOf returns the partitioning artifact of an artifact, if it declares one.
//
// Artifacts without a partitioning dependency use the unary partition.
func (g *ArtifactGraph) PartitioningOf(id string) (string, bool) {
	for _, idx := range g.incoming[id] {
		e := g.edges[idx]
		if e.Kind == DtypeDependency && g.artifacts[e.Source].IsPartitioning() {
			return e.Source, true
		}
	}
	return "", false
}

// TopoSort returns artifact ids in dependency order. Ties are broken by insertion order.
func (g *ArtifactGraph) TopoSort() []string {
	position := make(map[string]int, len(g.order))
	indegree := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
		indegree[id] = len(g.incoming[id])
	}

	ready := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)
		for _, idx := range g.outgoing[current] {
			next := g.edges[idx].Dependent
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return result
}

// Descriptor returns the serializable form of the graph
func (g *ArtifactGraph) Descriptor() ArtifactGraphDescriptor {
	return ArtifactGraphDescriptor{
		ID:        g.id,
		Hash:      g.hash,
		Artifacts: g.Artifacts(),
		Edges:     g.Edges(),
	}
}
