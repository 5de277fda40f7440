// Package cafs provides a content-addressable store for hunk payloads.
//
// Payloads are indexed by their blake2b hash and stored as whole objects on a backend store,
// under a path derived from the hash. Writing the same payload twice stores it once.
//
// Recently read payloads are kept in an LRU cache, since materializing a partition
// often replays the same ancestor hunks.
package cafs
