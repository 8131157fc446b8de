// Package config handles configuration loading, parsing, and validation
// from various sources (a .env file, config.yaml, environment variables with
// the COPYBLOCKS_ prefix). It provides type-safe access to the settings of the
// generation pipeline while keeping configuration details separate from
// business logic.
package config
