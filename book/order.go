package book

import (
	"fmt"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

type OrderType int

const (
	GoodTillCancel OrderType = iota
	FillAndKill
	FillOrKill
	GoodForDay
	Market
)

func (t OrderType) String() string {
	switch t {
	case GoodTillCancel:
		return "GTC"
	case FillAndKill:
		return "IOC"
	case FillOrKill:
		return "FOK"
	case GoodForDay:
		return "DAY"
	case Market:
		return "MKT"
	default:
		return "UNKNOWN"
	}
}

type OrderID uint64

// Order is one order resting in, or passing through, the book. Once
// admitted it is owned exclusively by the Book: only the matching loop
// decrements Remaining, and the intrusive links below place the order in
// exactly one price level queue, which is what makes interior removal O(1).
type Order struct {
	ID        OrderID
	Side      Side
	Type      OrderType
	Price     int64
	Initial   int64
	Remaining int64
	Timestamp time.Time

	level *PriceLevel
	next  *Order
	prev  *Order
}

func NewOrder(typ OrderType, id OrderID, side Side, price, qty int64) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Type:      typ,
		Price:     price,
		Initial:   qty,
		Remaining: qty,
		Timestamp: time.Now(),
	}
}

// NewMarketOrder builds an order with no limit price. AddOrder converts it
// into a priced GoodTillCancel order against the worst opposing level, or
// rejects it when the opposing side is empty.
func NewMarketOrder(id OrderID, side Side, qty int64) *Order {
	return NewOrder(Market, id, side, 0, qty)
}

func (o *Order) Filled() bool { return o.Remaining == 0 }

// Fill consumes qty of the remaining quantity. Filling past the remaining
// quantity means the level aggregates or the matching loop are corrupt, so
// it panics rather than clamping.
func (o *Order) Fill(qty int64) {
	if qty > o.Remaining {
		panic(fmt.Sprintf("book: order %d fill %d exceeds remaining %d", o.ID, qty, o.Remaining))
	}
	o.Remaining -= qty
}

// toGoodTillCancel caps a market order at worstPrice. No-op otherwise.
func (o *Order) toGoodTillCancel(worstPrice int64) {
	if o.Type != Market {
		return
	}
	o.Type = GoodTillCancel
	o.Price = worstPrice
}

// OrderModify asks the book to replace a resting order's price, side and
// quantity. The replacement goes through full admission as a fresh order of
// the original's type, so it always forfeits the original's queue priority.
type OrderModify struct {
	ID       OrderID
	Side     Side
	Price    int64
	Quantity int64
}

func (m OrderModify) toOrder(typ OrderType) *Order {
	return NewOrder(typ, m.ID, m.Side, m.Price, m.Quantity)
}
