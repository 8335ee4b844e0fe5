package book

import (
	"sync"
	"time"
)

// DefaultExpiryHour is the local wall-clock hour at which the background
// task sweeps GoodForDay orders from the book.
const DefaultExpiryHour = 16

// Level is one row of a depth query: a price and the total remaining
// quantity resting at it.
type Level struct {
	Price    int64
	Quantity int64
}

// RestingOrder is a read-only copy of one resting order, as returned by
// Resting. Snapshots are built from these.
type RestingOrder struct {
	ID       OrderID
	Side     Side
	Type     OrderType
	Price    int64
	Quantity int64
}

// Book is a single-instrument limit order book. Orders are matched with
// strict price-time priority: better price first, then arrival order within
// a price. Every exported operation takes the book mutex for its full
// duration, so callers observe operations fully serialized.
type Book struct {
	mu     sync.Mutex
	bids   *RBTree // best bid = MaxLevel
	asks   *RBTree // best ask = MinLevel
	orders map[OrderID]*Order

	expiryHour int
	now        func() time.Time

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Book)

// WithExpiryHour overrides the local hour of the day-order sweep.
func WithExpiryHour(hour int) Option {
	return func(b *Book) { b.expiryHour = hour }
}

// New creates an empty book and starts its day-order expiry task.
func New(opts ...Option) *Book {
	b := &Book{
		bids:       NewRBTree(),
		asks:       NewRBTree(),
		orders:     make(map[OrderID]*Order),
		expiryHour: DefaultExpiryHour,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.wg.Add(1)
	go b.expiryLoop()
	return b
}

// Close stops the expiry task and waits for it to exit. The book stays
// usable afterwards; only the background sweep is gone.
func (b *Book) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

// AddOrder validates and admits an order, then runs the matching loop and
// returns the trades it produced. A rejection returns nil and leaves the
// book untouched: duplicate id, market order with no counter-liquidity, an
// immediate-or-cancel that cannot match, or a fill-or-kill that cannot be
// fully satisfied.
func (b *Book) AddOrder(o *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(o)
}

func (b *Book) addLocked(o *Order) []Trade {
	if _, ok := b.orders[o.ID]; ok {
		return nil
	}

	// a market order borrows the worst opposing price as its limit
	if o.Type == Market {
		switch {
		case o.Side == Buy && b.asks.Size() > 0:
			o.toGoodTillCancel(b.asks.MaxLevel().Price)
		case o.Side == Sell && b.bids.Size() > 0:
			o.toGoodTillCancel(b.bids.MinLevel().Price)
		default:
			return nil
		}
	}

	if o.Type == FillAndKill && !b.canMatch(o.Side, o.Price) {
		return nil
	}
	if o.Type == FillOrKill && !b.canFullyFill(o.Side, o.Price, o.Initial) {
		return nil
	}

	if o.Side == Buy {
		b.bids.UpsertLevel(o.Price).Enqueue(o)
	} else {
		b.asks.UpsertLevel(o.Price).Enqueue(o)
	}
	b.orders[o.ID] = o

	return b.matchLocked()
}

// CancelOrder removes a resting order. Unknown ids are a no-op.
func (b *Book) CancelOrder(id OrderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked(id)
}

// ModifyOrder cancels the order and re-admits a replacement carrying the
// modification's price, side and quantity but the original order's type.
// The replacement queues behind everything already resting at its price.
// Unknown ids return nil with no effect. Cancel and re-add run in one
// critical section, so no caller can observe the order half-replaced.
func (b *Book) ModifyOrder(mod OrderModify) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[mod.ID]
	if !ok {
		return nil
	}
	typ := o.Type
	b.cancelLocked(mod.ID)
	return b.addLocked(mod.toOrder(typ))
}

// BidLevels returns up to depth bid levels, best price first, with the
// aggregate remaining quantity at each.
func (b *Book) BidLevels(depth int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return collectLevels(b.bids.ForEachDescending, depth)
}

// AskLevels returns up to depth ask levels, best price first.
func (b *Book) AskLevels(depth int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return collectLevels(b.asks.ForEachAscending, depth)
}

// Size reports the number of currently resting orders.
func (b *Book) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// Resting returns a copy of every resting order, bids best-to-worst then
// asks best-to-worst, taken under the lock so it is a consistent view.
func (b *Book) Resting() []RestingOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RestingOrder, 0, len(b.orders))
	collect := func(lvl *PriceLevel) bool {
		for o := lvl.Front(); o != nil; o = o.next {
			out = append(out, RestingOrder{
				ID:       o.ID,
				Side:     o.Side,
				Type:     o.Type,
				Price:    o.Price,
				Quantity: o.Remaining,
			})
		}
		return true
	}
	b.bids.ForEachDescending(collect)
	b.asks.ForEachAscending(collect)
	return out
}

func (b *Book) cancelLocked(id OrderID) {
	o, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)
	lvl := o.level
	lvl.Unlink(o)
	if lvl.Empty() {
		if o.Side == Buy {
			b.bids.DeleteLevel(lvl.Price)
		} else {
			b.asks.DeleteLevel(lvl.Price)
		}
	}
}

// canMatch reports whether an order at price has any crossing liquidity.
func (b *Book) canMatch(side Side, price int64) bool {
	if side == Buy {
		best := b.asks.MinLevel()
		return best != nil && price >= best.Price
	}
	best := b.bids.MaxLevel()
	return best != nil && price <= best.Price
}

// canFullyFill walks the opposing levels best-to-worst, stopping past the
// limit price, accumulating level aggregates until qty is covered. It never
// touches individual orders.
func (b *Book) canFullyFill(side Side, price, qty int64) bool {
	if !b.canMatch(side, price) {
		return false
	}
	need := qty
	if side == Buy {
		b.asks.ForEachAscending(func(lvl *PriceLevel) bool {
			if lvl.Price > price {
				return false
			}
			need -= min(need, lvl.TotalQty)
			return need > 0
		})
	} else {
		b.bids.ForEachDescending(func(lvl *PriceLevel) bool {
			if lvl.Price < price {
				return false
			}
			need -= min(need, lvl.TotalQty)
			return need > 0
		})
	}
	return need == 0
}

// matchLocked crosses the book until the best bid no longer meets the best
// ask. Within the crossing levels the oldest orders match first, and each
// trade executes at the ask level's price.
func (b *Book) matchLocked() []Trade {
	var trades []Trade
	for {
		bestBid := b.bids.MaxLevel()
		bestAsk := b.asks.MinLevel()
		if bestBid == nil || bestAsk == nil || bestBid.Price < bestAsk.Price {
			break
		}
		for !bestBid.Empty() && !bestAsk.Empty() {
			bid := bestBid.Front()
			ask := bestAsk.Front()
			qty := min(bid.Remaining, ask.Remaining)

			bid.Fill(qty)
			ask.Fill(qty)
			bestBid.fill(qty)
			bestAsk.fill(qty)

			trades = append(trades, Trade{
				Bid: TradeInfo{OrderID: bid.ID, Price: bestAsk.Price, Quantity: qty},
				Ask: TradeInfo{OrderID: ask.ID, Price: bestAsk.Price, Quantity: qty},
			})

			if bid.Filled() {
				bestBid.Unlink(bid)
				delete(b.orders, bid.ID)
			}
			if ask.Filled() {
				bestAsk.Unlink(ask)
				delete(b.orders, ask.ID)
			}
		}
		if bestBid.Empty() {
			b.bids.DeleteLevel(bestBid.Price)
		}
		if bestAsk.Empty() {
			b.asks.DeleteLevel(bestAsk.Price)
		}
	}

	// an immediate-or-cancel remainder must not rest
	if lvl := b.bids.MaxLevel(); lvl != nil && lvl.Front().Type == FillAndKill {
		b.cancelLocked(lvl.Front().ID)
	}
	if lvl := b.asks.MinLevel(); lvl != nil && lvl.Front().Type == FillAndKill {
		b.cancelLocked(lvl.Front().ID)
	}
	return trades
}

func collectLevels(walk func(func(*PriceLevel) bool), depth int) []Level {
	out := make([]Level, 0, depth)
	walk(func(lvl *PriceLevel) bool {
		if len(out) >= depth {
			return false
		}
		out = append(out, Level{Price: lvl.Price, Quantity: lvl.TotalQty})
		return true
	})
	return out
}

func (b *Book) expiryLoop() {
	defer b.wg.Done()
	for {
		now := b.now()
		timer := time.NewTimer(nextExpiry(now, b.expiryHour).Sub(now) + 100*time.Millisecond)
		select {
		case <-b.done:
			timer.Stop()
			return
		case <-timer.C:
		}
		b.expireDayOrders()
	}
}

// nextExpiry is the next local wall-clock instant at hour:00:00 strictly
// after now.
func nextExpiry(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// expireDayOrders cancels every GoodForDay order through the normal cancel
// path, so all index and aggregate invariants hold afterwards.
func (b *Book) expireDayOrders() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []OrderID
	for id, o := range b.orders {
		if o.Type == GoodForDay {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		b.cancelLocked(id)
	}
}
