// Package snapshot captures and restores the set of resting orders. Each
// capture is stored in a pebble keyspace under a fresh uuid, with a latest
// pointer for startup restore. A snapshot plus the journal records past its
// sequence number reproduce the book exactly.
package snapshot
