// Package datatype provides the concrete artifact kinds of heraclitus.
//
// Each kind implements core.Model, plus the capability interfaces declared for
// it by model.Kind: core.Partitioning, core.Producer. Payloads are encoded with
// deterministic CBOR.
package datatype

import (
	"fmt"
	"sync"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/core/status"
	"github.com/oneconcern/heraclitus/pkg/model"
)

// Catalog maps artifact kinds to their implementation
type Catalog struct {
	mx     sync.RWMutex
	models map[model.Kind]core.Model
}

var _ core.Catalog = &Catalog{}

// NewCatalog builds a catalog with some implementations
func NewCatalog(models ...core.Model) (*Catalog, error) {
	c := &Catalog{models: make(map[model.Kind]core.Model, len(models))}
	for _, m := range models {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Default is the catalog of all built-in kinds
func Default() *Catalog {
	c, err := NewCatalog(
		Blob{},
		UnaryPartitioning{},
		ArbitraryPartitioning{},
		NegateBlob{},
		Noop{},
		Ref{},
		TrackingBranch{},
	)
	if err != nil {
		panic(fmt.Sprintf("dev error: invalid built-in catalog: %v", err))
	}
	return c
}

// Register adds or replaces the implementation of a kind.
//
// The implementation must provide exactly the capabilities declared for its kind.
func (c *Catalog) Register(m core.Model) error {
	kind := m.Kind()
	if !kind.IsValid() {
		return status.ErrUnknownKind.WrapMessage("%q", kind)
	}
	if err := checkCapability(m, model.CapPartitioning, isPartitioning); err != nil {
		return err
	}
	if err := checkCapability(m, model.CapProducer, isProducer); err != nil {
		return err
	}

	c.mx.Lock()
	c.models[kind] = m
	c.mx.Unlock()
	return nil
}

// Model returns the implementation of a kind
func (c *Catalog) Model(kind model.Kind) (core.Model, error) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	m, ok := c.models[kind]
	if !ok {
		return nil, status.ErrUnknownKind.WrapMessage("%q is not registered", kind)
	}
	return m, nil
}

func isPartitioning(m core.Model) bool {
	_, ok := m.(core.Partitioning)
	return ok
}

func isProducer(m core.Model) bool {
	_, ok := m.(core.Producer)
	return ok
}

func checkCapability(m core.Model, c model.Capability, implements func(core.Model) bool) error {
	declared := m.Kind().Implements(c)
	if declared == implements(m) {
		return nil
	}
	if declared {
		return status.ErrUnknownKind.WrapMessage("%s declares the %s capability but does not implement it", m.Kind(), c)
	}
	return status.ErrUnknownKind.WrapMessage("%s implements the %s capability without declaring it", m.Kind(), c)
}

// stateOnly composes kinds which content is only ever written as complete state
type stateOnly struct{}

func (stateOnly) Compose(_ []byte, hunk model.Hunk, payload []byte) ([]byte, error) {
	if !hunk.IsSufficient() {
		return nil, fmt.Errorf("unsupported %s %s hunk", hunk.Completion, hunk.Representation)
	}
	return payload, nil
}
