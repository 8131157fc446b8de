// Package gate holds the admission controls for generation runs: a per-user
// ceiling on simultaneous bulk runs, a global minimum interval between runs,
// and the transient progress records of active runs. All state lives in a
// StateStore so any number of processes can share it.
package gate
