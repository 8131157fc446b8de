// Package task runs the background scheduler that drains the generation
// queue. On every poll it hands the earliest due page to the orchestrator,
// periodically resets entries stuck in processing after a crash and prunes
// the generation log.
package task
