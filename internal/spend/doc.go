// Package spend prices generation calls, keeps the append-only attempt log
// and enforces the shared monthly budget.
//
// The budget is checked before each call against cost already incurred; it
// does not reserve the projected cost of the call about to be made.
package spend
