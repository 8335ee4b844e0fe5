package service

import (
	"errors"
	"fmt"
	"io"

	"matchbook/book"
	"matchbook/snapshot"
	"matchbook/wal"
)

// Restore rebuilds book state before the service accepts traffic: the
// latest snapshot first, then every journal record past its sequence.
// It returns the last applied sequence number. The store may be nil.
func Restore(b *book.Book, store *snapshot.Store, walDir string) (uint64, error) {
	var fromSeq uint64
	if store != nil {
		snap, err := store.Latest()
		if err != nil {
			return 0, fmt.Errorf("load latest snapshot: %w", err)
		}
		if snap != nil {
			snapshot.Restore(b, snap)
			fromSeq = snap.Seq
		}
	}
	return replay(b, walDir, fromSeq)
}

// replay applies every journal record with a sequence past fromSeq.
func replay(b *book.Book, walDir string, fromSeq uint64) (uint64, error) {
	r, err := wal.OpenReader(walDir)
	if err != nil {
		return fromSeq, fmt.Errorf("open journal: %w", err)
	}
	defer r.Close()

	last := fromSeq
	for r.Next() {
		rec := r.Record()
		if rec.Seq <= fromSeq {
			continue
		}
		if err := apply(b, rec); err != nil {
			return last, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
		last = rec.Seq
	}
	if r.Err() != nil && !errors.Is(r.Err(), io.EOF) {
		return last, fmt.Errorf("replay journal: %w", r.Err())
	}
	return last, nil
}

// apply re-executes one journal record against the book. Replay runs the
// same deterministic admission and matching as live traffic, so the book
// converges to its pre-restart state.
func apply(b *book.Book, rec *wal.Record) error {
	switch rec.Type {
	case wal.RecordPlace:
		p, err := wal.DecodeOrderPayload(rec.Data)
		if err != nil {
			return err
		}
		typ := book.OrderType(p.Type)
		if typ == book.Market {
			b.AddOrder(book.NewMarketOrder(book.OrderID(p.OrderID), book.Side(p.Side), p.Qty))
		} else {
			b.AddOrder(book.NewOrder(typ, book.OrderID(p.OrderID), book.Side(p.Side), p.Price, p.Qty))
		}
	case wal.RecordCancel:
		p, err := wal.DecodeCancelPayload(rec.Data)
		if err != nil {
			return err
		}
		b.CancelOrder(book.OrderID(p.OrderID))
	case wal.RecordModify:
		p, err := wal.DecodeOrderPayload(rec.Data)
		if err != nil {
			return err
		}
		b.ModifyOrder(book.OrderModify{
			ID:       book.OrderID(p.OrderID),
			Side:     book.Side(p.Side),
			Price:    p.Price,
			Quantity: p.Qty,
		})
	default:
		return fmt.Errorf("unknown record type %d", rec.Type)
	}
	return nil
}
