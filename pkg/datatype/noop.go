package datatype

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
)

// Noop is a producer which outputs nothing: only its own versions record the scheduled dependency tuples
type Noop struct {
	stateOnly
}

var _ core.Producer = Noop{}

// Kind of the noop producer
func (Noop) Kind() model.Kind {
	return model.KindNoop
}

// Strategies of the noop producer accept any input
func (Noop) Strategies() []model.ProductionStrategy {
	return []model.ProductionStrategy{{Name: "noop"}}
}

// Produce does nothing
func (Noop) Produce(context.Context, core.Handle, *model.Version, model.ProductionStrategy) error {
	return nil
}
