// Package openai implements generation.Client for OpenAI-compatible chat
// completion endpoints over plain HTTP.
package openai
