// Package store declares the persistence contracts of the generation
// pipeline: pages and their block fields, the generation queue, the
// generation log, the image library and the key-value state used by the
// gates. It also holds the sentinel errors and the transaction helper that
// every implementation shares.
package store
