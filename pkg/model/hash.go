package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/minio/blake2b-simd"
)

// HashSize is the size in bytes of a content hash
const HashSize = 32

// Hash is the deterministic content hash of an entity.
//
// Hashes never cover the identifier of the entity they describe.
type Hash [HashSize]byte

// ZeroHash is the hash of an entity which content is not known yet
var ZeroHash Hash

// ParseHash parses the hex representation of a hash
func ParseHash(s string) (Hash, error) {
	var h Hash
	if s == "" {
		return h, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash %q: expected %d bytes, got %d", s, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// IsZero tells if this hash has not been computed
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) String() string {
	if h.IsZero() {
		return ""
	}
	return hex.EncodeToString(h[:])
}

// Short renders an abbreviated hash, for display
func (h Hash) Short() string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// MarshalText implements encoding.TextMarshaler
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Hashes is a sortable slice of hashes
type Hashes []Hash

func (b Hashes) Len() int           { return len(b) }
func (b Hashes) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b Hashes) Less(i, j int) bool { return string(b[i][:]) < string(b[j][:]) }

// Hasher accumulates fields into a blake2b-256 content hash.
//
// Variable length fields are length-prefixed, so that distinct field sequences never collide.
type Hasher struct {
	h   hash.Hash
	buf [binary.MaxVarintLen64]byte
}

// NewHasher builds a content hasher
func NewHasher() *Hasher {
	return &Hasher{h: blake2b.New256()}
}

// Uint64 adds an integer field
func (h *Hasher) Uint64(v uint64) *Hasher {
	n := binary.PutUvarint(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:n])
	return h
}

// Bool adds a boolean field
func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		return h.Uint64(1)
	}
	return h.Uint64(0)
}

// Bytes adds a byte slice field
func (h *Hasher) Bytes(b []byte) *Hasher {
	h.Uint64(uint64(len(b)))
	_, _ = h.h.Write(b)
	return h
}

// String adds a string field
func (h *Hasher) String(s string) *Hasher {
	return h.Bytes([]byte(s))
}

// Hash adds a nested hash
func (h *Hasher) Hash(v Hash) *Hasher {
	_, _ = h.h.Write(v[:])
	return h
}

// SortedHashes adds a set of hashes, independently of their order
func (h *Hasher) SortedHashes(hashes []Hash) *Hasher {
	sorted := make(Hashes, len(hashes))
	copy(sorted, hashes)
	sort.Sort(sorted)
	h.Uint64(uint64(len(sorted)))
	for _, v := range sorted {
		h.Hash(v)
	}
	return h
}

// SortedStrings adds a set of strings, independently of their order
func (h *Hasher) SortedStrings(values []string) *Hasher {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	h.Uint64(uint64(len(sorted)))
	for _, v := range sorted {
		h.String(v)
	}
	return h
}

// Sum returns the accumulated hash
func (h *Hasher) Sum() Hash {
	var result Hash
	copy(result[:], h.h.Sum(nil))
	return result
}

// HashBytes computes the content hash of a byte slice, such as a hunk payload
func HashBytes(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}
