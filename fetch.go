package imap

// Literal is a single byte-counted FETCH literal body, named and sized as
// the server declared it (a "{N}" introducer). It mirrors the teacher's own
// imap.Literal type, retargeted to hold the raw bytes of one FETCH field
// instead of a generic command argument.
type Literal struct {
	len      int
	contents []byte
}

// NewLiteral wraps b as a Literal of length len(b).
func NewLiteral(b []byte) Literal {
	return Literal{len: len(b), contents: b}
}

func (l Literal) Len() int      { return l.len }
func (l Literal) Bytes() []byte { return l.contents }
func (l Literal) String() string {
	return string(l.contents)
}

// FetchResult is the typed result of a FETCH command: per message sequence
// number, the raw bytes fetched for each requested field spec. MIME
// decoding is explicitly out of scope (spec.md §1); callers decode the
// bytes themselves.
//
// Per spec.md §9 Open Question (b), this map is the sole authoritative
// FETCH payload shape.
type FetchResult map[uint64]map[string]Literal
