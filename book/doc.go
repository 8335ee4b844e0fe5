// Package book implements a single-instrument limit order book with strict
// price-time priority. Bids and asks live in red-black trees of price
// levels; each level is a FIFO queue of orders carrying count and quantity
// aggregates, so immediate-or-cancel and fill-or-kill feasibility checks and
// depth queries never rescan order lists.
//
// All operations serialize on a single mutex. A background task owned by
// the book sweeps good-for-day orders once per day and stops when the book
// is closed.
package book
