// Package domain contains the core business entities and value objects of the
// block generation pipeline: pages and their block fields, the static block
// catalog entries, generation log rows, tagged images and bulk run results.
// It is independent of any storage or transport mechanism.
package domain
