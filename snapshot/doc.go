// Package snapshot takes point-in-time copies of the record store as pebble
// checkpoints. Each checkpoint carries a manifest naming the last journal
// sequence it contains, so the journal before it can be dropped and a lost
// data directory can be seeded from it.
package snapshot
