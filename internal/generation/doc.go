// Package generation defines the boundary between the block pipeline and the
// external AI/LLM services used for content generation. It holds the Client
// interface implemented by the provider adapters (OpenAI-compatible HTTP and
// Gemini), the closed error taxonomy every layer reports in, and the retry
// policy applied to provider calls.
package generation
