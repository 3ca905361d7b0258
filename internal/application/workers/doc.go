// Package workers implements the settlement worker pool.
//
// The pool subscribes once to game events and hands each delivery to one of
// a fixed number of goroutines that:
//   - Decode the results of a finished game
//   - Record wins, losses and points on player accounts
//   - Report the outcome as a settlement metric
//
// Draws and aborted games are not recorded. The health monitor tracks
// worker status and exports idle/busy gauges.
package workers
