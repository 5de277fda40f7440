// Package model describes the base objects manipulated by heraclitus.
//
// The object model for heraclitus is composed of:
//
//	Artifact graph:
//	  A DAG of artifacts. Edges are either datatype dependencies (e.g. partitioning)
//	  or producer dependencies, feeding producers or fed by them.
//	  The topology is read-only once persisted.
//
//	Artifacts:
//	  A versioned data holder of some kind. Kinds are a closed set, with a static
//	  table of capabilities (partitioning, producer, reference).
//
//	Versions:
//	  A point in the history of an artifact. Versions descend from parent versions of the
//	  same artifact and pin versions of their dependency artifacts.
//	  Versions are staging (mutable) until committed (frozen).
//
//	Hunks:
//	  The content of a version for one partition, as state, delta or cumulative delta.
//
//	Branches:
//	  Mutable pointers to versions of a ref artifact.
//
// Every entity gets a unique KSUID identifier and a blake2b content hash which does not
// cover the identifier.
package model
