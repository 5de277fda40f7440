/*
Package heraclitus provides a versioned data artifact engine and its CLI tooling.

The primary goal of heraclitus is to keep the histories of linked data artifacts
consistent: artifacts are versioned, partitioned, and derived from one another by
producers, which run automatically when the versions they depend on are committed.
*/
package heraclitus
