package imapresp

import "log"

// warnf logs a non-fatal parse anomaly. Grounded on imapclient.Client's own
// use of the standard log package for background read-loop errors
// (see emersion's client.go read loop); the accumulator borrows the same
// idiom for the lines spec.md §7 classifies as logged-and-skipped rather
// than fatal.
func warnf(format string, args ...any) {
	log.Printf("imapresp: "+format, args...)
}
