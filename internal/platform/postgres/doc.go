// Package postgres implements the store interfaces on PostgreSQL.
//
// Pages keep their blocks, block order and generation metadata in JSONB
// columns so a single block can be merged without rewriting the rest.
// Schema changes live in migrations/ and are applied with goose via Migrate.
package postgres
