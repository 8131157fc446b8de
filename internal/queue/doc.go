// Package queue implements the paced, pausable worklist of page generation
// jobs. Storage is delegated to a store.JobStore; the pacing rule is the pure
// function PaceSchedule.
package queue
