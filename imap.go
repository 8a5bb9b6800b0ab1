// Package imap contains the wire-level vocabulary shared by the IMAP4rev1
// client engine in package imapclient: response codes, connection states,
// command kinds, the tag generator and the typed results each command
// produces.
//
// The protocol subset implemented is the one exercised by package
// imapclient: connect greeting, LOGIN, LOGOUT, LIST, SELECT, NOOP, SEARCH
// and FETCH. CAPABILITY, STARTTLS, IDLE and SASL mechanisms other than
// plaintext LOGIN are not implemented.
package imap
