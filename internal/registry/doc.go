// Package registry is an in-memory virtual land registry and marketplace.
//
// An Engine owns the land store, the derived owner and coordinate indices,
// the marketplace, the append-only transaction ledger and the admin set.
// Every mutation validates its preconditions against current state, builds
// one commit and applies it under a single write lock, so a failed call
// leaves nothing behind. Observers see each applied commit in order.
package registry
