// Package state provides the in-process StateStore and typed helpers for
// reading and writing JSON and timestamp values through any StateStore.
package state
