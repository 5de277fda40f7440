package datatype

import (
	"context"
	"fmt"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
)

// Delta is the change of a blob: replacement bytes at some indices
type Delta struct {
	Indices []uint64 `cbor:"1,keyasint"`
	Bytes   []byte   `cbor:"2,keyasint"`
}

// Blob is an opaque byte array, stored as state or as delta
type Blob struct{}

var _ core.Model = Blob{}

// Kind of blobs
func (Blob) Kind() model.Kind {
	return model.KindBlob
}

// Compose applies a blob hunk.
//
// A complete state replaces the content, a ragged state overlays a prefix of it and
// a delta sets bytes, growing the content when needed.
func (Blob) Compose(state []byte, hunk model.Hunk, payload []byte) ([]byte, error) {
	switch hunk.Representation {
	case model.State:
		content, err := DecodeBlob(payload)
		if err != nil {
			return nil, err
		}
		if hunk.Completion == model.Complete {
			return EncodeBlob(content)
		}
		current, err := decodeState(state)
		if err != nil {
			return nil, err
		}
		if len(content) > len(current) {
			current = append(current, make([]byte, len(content)-len(current))...)
		}
		copy(current, content)
		return EncodeBlob(current)

	case model.Delta, model.CumulativeDelta:
		delta, err := DecodeDelta(payload)
		if err != nil {
			return nil, err
		}
		current, err := decodeState(state)
		if err != nil {
			return nil, err
		}
		return EncodeBlob(delta.Apply(current))

	default:
		return nil, fmt.Errorf("invalid representation %q", hunk.Representation)
	}
}

func decodeState(state []byte) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return DecodeBlob(state)
}

// EncodeBlob encodes the content of a blob
func EncodeBlob(content []byte) ([]byte, error) {
	if content == nil {
		content = []byte{}
	}
	return marshal(content)
}

// DecodeBlob decodes the content of a blob
func DecodeBlob(payload []byte) ([]byte, error) {
	var content []byte
	if err := unmarshal(payload, &content); err != nil {
		return nil, fmt.Errorf("invalid blob payload: %w", err)
	}
	return content, nil
}

// EncodeDelta encodes a blob delta
func EncodeDelta(d Delta) ([]byte, error) {
	if len(d.Indices) != len(d.Bytes) {
		return nil, fmt.Errorf("delta has %d indices for %d bytes", len(d.Indices), len(d.Bytes))
	}
	return marshal(d)
}

// DecodeDelta decodes a blob delta
func DecodeDelta(payload []byte) (Delta, error) {
	var d Delta
	if err := unmarshal(payload, &d); err != nil {
		return d, fmt.Errorf("invalid delta payload: %w", err)
	}
	if len(d.Indices) != len(d.Bytes) {
		return d, fmt.Errorf("delta has %d indices for %d bytes", len(d.Indices), len(d.Bytes))
	}
	return d, nil
}

// Apply sets the bytes of the delta into some content, growing it when needed
func (d Delta) Apply(content []byte) []byte {
	out := append([]byte(nil), content...)
	for i, idx := range d.Indices {
		if idx >= uint64(len(out)) {
			out = append(out, make([]byte, idx+1-uint64(len(out)))...)
		}
		out[idx] = d.Bytes[i]
	}
	return out
}

// Diff computes the delta turning some content into another one.
//
// Deltas cannot shrink content.
func Diff(from, to []byte) (Delta, error) {
	if len(to) < len(from) {
		return Delta{}, fmt.Errorf("a delta cannot shrink a blob from %d to %d bytes", len(from), len(to))
	}
	var d Delta
	for i := range to {
		if i < len(from) && from[i] == to[i] {
			continue
		}
		d.Indices = append(d.Indices, uint64(i))
		d.Bytes = append(d.Bytes, to[i])
	}
	return d, nil
}

// Writer writes hunks into staging versions
type Writer interface {
	WriteHunk(context.Context, core.HunkSpec) (*model.Hunk, error)
}

// Materializer materializes the content of versions
type Materializer interface {
	Materialize(ctx context.Context, versionID string, partition uint64) ([]byte, error)
}

// WriteBlob writes blob content for a partition of a staging version, as a complete state
func WriteBlob(ctx context.Context, w Writer, versionID string, partition uint64, content []byte) (*model.Hunk, error) {
	payload, err := EncodeBlob(content)
	if err != nil {
		return nil, err
	}
	return w.WriteHunk(ctx, core.HunkSpec{
		VersionID:      versionID,
		Partition:      partition,
		Representation: model.State,
		Completion:     model.Complete,
		Payload:        payload,
	})
}

// WriteBlobDelta writes a blob delta for a partition of a staging version
func WriteBlobDelta(ctx context.Context, w Writer, versionID string, partition uint64, d Delta) (*model.Hunk, error) {
	payload, err := EncodeDelta(d)
	if err != nil {
		return nil, err
	}
	return w.WriteHunk(ctx, core.HunkSpec{
		VersionID:      versionID,
		Partition:      partition,
		Representation: model.Delta,
		Completion:     model.Complete,
		Payload:        payload,
	})
}

// ReadBlob materializes the blob content of a partition of a version
func ReadBlob(ctx context.Context, m Materializer, versionID string, partition uint64) ([]byte, error) {
	state, err := m.Materialize(ctx, versionID, partition)
	if err != nil {
		return nil, err
	}
	return DecodeBlob(state)
}
