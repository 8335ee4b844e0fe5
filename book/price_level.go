package book

// PriceLevel is the FIFO queue of orders resting at one price on one side
// of the book. TotalQty and OrderCount are settled on every enqueue, fill
// and unlink, so feasibility checks and depth queries read them instead of
// walking the queue.
type PriceLevel struct {
	Price      int64
	TotalQty   int64
	OrderCount int

	head *Order
	tail *Order
}

// Enqueue appends o at the tail, preserving arrival order.
func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	o.level = p
	p.TotalQty += o.Remaining
	p.OrderCount++
}

// Front returns the oldest order at this price, nil when empty.
func (p *PriceLevel) Front() *Order { return p.head }

func (p *PriceLevel) Empty() bool { return p.OrderCount == 0 }

// fill accounts a matched quantity against the aggregate. The order itself
// is updated separately by Order.Fill.
func (p *PriceLevel) fill(qty int64) {
	p.TotalQty -= qty
}

// Unlink removes o from anywhere in the queue in O(1) and settles the
// aggregate with the order's remaining quantity (zero for a filled order,
// whose quantity was already accounted by fill).
func (p *PriceLevel) Unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	p.TotalQty -= o.Remaining
	p.OrderCount--
	o.level = nil
	o.next = nil
	o.prev = nil
}
