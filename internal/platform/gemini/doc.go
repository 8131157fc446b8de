// Package gemini provides a generation.Client backed by Google's Gemini API
// through the google.golang.org/genai SDK.
package gemini
