package snapshot

import (
	"time"

	"matchbook/book"
)

// Snapshot is a consistent capture of every resting order, tagged with the
// journal sequence it covers.
type Snapshot struct {
	ID      string
	Seq     uint64
	Created time.Time
	Orders  []book.RestingOrder
}

// Capture copies the book's resting orders into a new snapshot. seq is the
// journal sequence of the last operation applied to the book.
func Capture(b *book.Book, seq uint64) *Snapshot {
	return &Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Orders:  b.Resting(),
	}
}

// Restore re-places every snapshotted order into b. A snapshot is taken
// from an uncrossed book, so re-admission never produces trades.
func Restore(b *book.Book, snap *Snapshot) {
	for _, e := range snap.Orders {
		b.AddOrder(book.NewOrder(e.Type, e.ID, e.Side, e.Price, e.Quantity))
	}
}
