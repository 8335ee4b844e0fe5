package service

import (
	"fmt"
	"sync"

	"matchbook/book"
	"matchbook/snapshot"
	"matchbook/wal"
)

// Publisher receives executed trades. Implementations buffer internally;
// Publish must not block the submit path.
type Publisher interface {
	Publish(trades []book.Trade)
}

// OrderService coordinates the book, the journal and the publisher. The
// journal and publisher are both optional; a nil journal gives a purely
// in-memory engine.
//
// The service mutex orders every journal append with the book mutation it
// records, and snapshot captures with both, so a capture always pairs the
// book state with the exact journal sequence that produced it.
type OrderService struct {
	mu   sync.Mutex
	book *book.Book
	wal  *wal.WAL
	pub  Publisher
}

func New(b *book.Book, w *wal.WAL, pub Publisher) *OrderService {
	return &OrderService{book: b, wal: w, pub: pub}
}

// Submit journals and admits one order, returning the trades it produced.
// An empty trade slice with a nil error is a normal outcome (the order
// rested, or was rejected per its type's admission rules).
func (s *OrderService) Submit(typ book.OrderType, id book.OrderID, side book.Side, price, qty int64) ([]book.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.journal(wal.RecordPlace, wal.OrderPayload{
		OrderID: uint64(id),
		Side:    uint8(side),
		Type:    uint8(typ),
		Price:   price,
		Qty:     qty,
	}.Encode()); err != nil {
		return nil, fmt.Errorf("journal place: %w", err)
	}

	var o *book.Order
	if typ == book.Market {
		o = book.NewMarketOrder(id, side, qty)
	} else {
		o = book.NewOrder(typ, id, side, price, qty)
	}
	trades := s.book.AddOrder(o)
	s.publish(trades)
	return trades, nil
}

// Cancel journals and removes one resting order; unknown ids are a no-op.
func (s *OrderService) Cancel(id book.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.journal(wal.RecordCancel, wal.CancelPayload{OrderID: uint64(id)}.Encode()); err != nil {
		return fmt.Errorf("journal cancel: %w", err)
	}
	s.book.CancelOrder(id)
	return nil
}

// Modify journals and applies a cancel-and-replace.
func (s *OrderService) Modify(mod book.OrderModify) ([]book.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.journal(wal.RecordModify, wal.OrderPayload{
		OrderID: uint64(mod.ID),
		Side:    uint8(mod.Side),
		Price:   mod.Price,
		Qty:     mod.Quantity,
	}.Encode()); err != nil {
		return nil, fmt.Errorf("journal modify: %w", err)
	}
	trades := s.book.ModifyOrder(mod)
	s.publish(trades)
	return trades, nil
}

// CaptureSnapshot copies the resting orders together with the journal
// sequence of the last operation applied to them. It holds the write lock,
// so no submit, cancel or modify can land between reading the sequence and
// copying the book.
func (s *OrderService) CaptureSnapshot() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seq uint64
	if s.wal != nil {
		seq = s.wal.LastSeq()
	}
	return snapshot.Capture(s.book, seq)
}

func (s *OrderService) BidLevels(depth int) []book.Level { return s.book.BidLevels(depth) }
func (s *OrderService) AskLevels(depth int) []book.Level { return s.book.AskLevels(depth) }
func (s *OrderService) Size() int                        { return s.book.Size() }

func (s *OrderService) journal(typ wal.RecordType, data []byte) error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Append(&wal.Record{Type: typ, Data: data})
}

func (s *OrderService) publish(trades []book.Trade) {
	if s.pub != nil && len(trades) > 0 {
		s.pub.Publish(trades)
	}
}
