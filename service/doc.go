// Package service is the write entry point callers use when they want
// durability and trade publication around the bare book: every accepted
// operation is journaled before it runs, executed trades go to an optional
// publisher, and startup restores the book from the latest snapshot plus
// the journal tail.
package service
