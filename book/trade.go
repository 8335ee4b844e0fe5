package book

// TradeInfo is one leg of an execution.
type TradeInfo struct {
	OrderID  OrderID
	Price    int64
	Quantity int64
}

// Trade pairs the buy-side and sell-side legs of one matched quantity. Both
// legs carry the ask level's price; that is the execution price convention
// for the whole book.
type Trade struct {
	Bid TradeInfo
	Ask TradeInfo
}
