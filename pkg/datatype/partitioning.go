package datatype

import (
	"context"
	"fmt"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
)

// UnaryPartitioning defines the single unary partition
type UnaryPartitioning struct {
	stateOnly
}

var _ core.Partitioning = UnaryPartitioning{}

// Kind of the unary partitioning
func (UnaryPartitioning) Kind() model.Kind {
	return model.KindUnaryPartitioning
}

// Partitions returns the unary partition, whatever the state
func (UnaryPartitioning) Partitions([]byte) (model.Partitions, error) {
	return model.UnaryPartitions(), nil
}

// ArbitraryPartitioning holds an arbitrary set of partition ids.
//
// A ragged state adds partition ids to the current set.
type ArbitraryPartitioning struct{}

var _ core.Partitioning = ArbitraryPartitioning{}

// Kind of arbitrary partitionings
func (ArbitraryPartitioning) Kind() model.Kind {
	return model.KindArbitraryPartitioning
}

// Compose applies a partitioning hunk
func (ArbitraryPartitioning) Compose(state []byte, hunk model.Hunk, payload []byte) ([]byte, error) {
	if hunk.Representation != model.State {
		return nil, fmt.Errorf("unsupported %s hunk for a partitioning", hunk.Representation)
	}
	ids, err := DecodePartitions(payload)
	if err != nil {
		return nil, err
	}
	if hunk.Completion == model.Ragged && state != nil {
		current, err := DecodePartitions(state)
		if err != nil {
			return nil, err
		}
		ids = append(current, ids...)
	}
	return EncodePartitions(ids...)
}

// Partitions decodes the partition ids of a materialized state. No state means no partition.
func (ArbitraryPartitioning) Partitions(state []byte) (model.Partitions, error) {
	if state == nil {
		return model.Partitions{}, nil
	}
	return DecodePartitions(state)
}

// EncodePartitions encodes a set of partition ids
func EncodePartitions(ids ...uint64) ([]byte, error) {
	return marshal([]uint64(model.NewPartitions(ids...)))
}

// DecodePartitions decodes a set of partition ids
func DecodePartitions(payload []byte) (model.Partitions, error) {
	var ids []uint64
	if err := unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("invalid partitions payload: %w", err)
	}
	return model.NewPartitions(ids...), nil
}

// WritePartitions writes the partition ids of a staging partitioning version
func WritePartitions(ctx context.Context, w Writer, versionID string, ids ...uint64) (*model.Hunk, error) {
	payload, err := EncodePartitions(ids...)
	if err != nil {
		return nil, err
	}
	return w.WriteHunk(ctx, core.HunkSpec{
		VersionID:      versionID,
		Partition:      model.UnaryPartition,
		Representation: model.State,
		Completion:     model.Complete,
		Payload:        payload,
	})
}
