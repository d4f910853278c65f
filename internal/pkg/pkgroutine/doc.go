// Package pkgroutine runs background work on a bounded set of goroutines.
// Errors and panics are logged, and Wait lets shutdown drain pending work.
package pkgroutine
