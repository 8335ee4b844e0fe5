// Package wal is an append-only journal of order operations. Accepted
// submits, cancels and modifies are framed with a length and CRC32 header,
// buffered into segment files that rotate by size or age, and tracked in a
// JSON-lines segment index. Replaying the journal over an empty book
// rebuilds the resting state; segments wholly covered by a snapshot can be
// truncated away.
package wal
