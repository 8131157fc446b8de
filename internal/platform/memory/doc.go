// Package memory provides in-process implementations of the store interfaces.
// They back unit tests and local runs without a database; the queue needs the
// Postgres store to survive restarts.
package memory
