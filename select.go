package imap

// SelectData is the typed result of a SELECT command.
//
// Numeric fields default to zero when the server omits the corresponding
// untagged line; this is indistinguishable from the server explicitly
// reporting zero, and that ambiguity is carried over deliberately (see
// spec.md §9 Open Question (c)) rather than papered over.
//
// Grounded on temail::client::response::Select in
// original_source/include/temail/client/response.hpp.
type SelectData struct {
	Exists         uint64
	Recent         uint64
	Unseen         uint64
	UIDValidity    uint64
	Flags          []string
	PermanentFlags []string
	Permission     string
}
