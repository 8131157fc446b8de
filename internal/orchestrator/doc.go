// Package orchestrator composes the generation pipeline. For each block of a
// page it checks the budget, renders the prompt, calls the model, parses and
// validates the reply, stores the fields and records the attempt.
//
// Bulk runs are capped per user, continue past failed blocks and report a
// domain.BulkGenerationResult. Queued runs additionally honor the queue's
// pause flag and the global minimum interval between runs.
package orchestrator
