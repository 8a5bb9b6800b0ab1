package imapclient

import "log"

// warnf logs a non-fatal handler anomaly, the same stdlib log idiom the
// background read loop in emersion-go-imap's Client.read uses for
// decoder errors it can't otherwise surface.
func warnf(format string, args ...any) {
	log.Printf("imapclient: "+format, args...)
}
