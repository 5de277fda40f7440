// Package core implements the heraclitus engine.
//
// A Session ties a metadata store, a content-addressable payload store and a
// catalog of artifact kinds. It exposes the version graph of every artifact
// in an artifact graph: staging versions are created, receive hunks, then get
// committed. Committing a version triggers the production cascade, which
// evaluates the production policies of dependent producers and runs them.
//
// Content is resolved per partition by walking the descent graph of a version
// back to the nearest sufficient state, then folded by the datatype of the
// artifact.
//
// Merges reconcile the partition histories of several versions of the same
// artifact, detecting conflicts and recording precedences.
package core
