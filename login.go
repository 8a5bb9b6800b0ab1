package imap

// LoginResult is the typed result of a successful LOGIN command. It carries
// no data; a non-nil error from the client indicates failure.
type LoginResult struct{}

// NoopResult is the typed result of a successful NOOP command.
type NoopResult struct{}
