package imap

import "strings"

// FetchField is a bitset of the FETCH field groups this client knows how to
// request, mapped to their literal IMAP fetch-section spec per spec.md §6.
//
// Grounded on temail::client::request::Fetch::Field in original_source.
type FetchField uint8

const (
	FetchEnvelope FetchField = 1 << 0
	FetchMIME     FetchField = 1 << 1
	FetchText     FetchField = 1 << 2
)

// fetchFieldSections maps each single-bit FetchField to the literal token
// sequence written on the wire. MIME maps to two tokens, grounded on
// IMAP::FETCH_FIELD in original_source's include/temail/client/imap.hpp.
var fetchFieldSections = []struct {
	field  FetchField
	tokens []string
}{
	{FetchEnvelope, []string{"BODY.PEEK[HEADER.FIELDS (DATE SUBJECT FROM TO)]"}},
	{FetchMIME, []string{"BODY.PEEK[HEADER.FIELDS (CONTENT-TYPE)]", "BODY.PEEK[1.MIME]"}},
	{FetchText, []string{"BODY[1]"}},
}

// Sections returns the ordered, space-joined list of wire tokens for every
// bit set in f, preserving ENVELOPE, MIME, TEXT order regardless of which
// bits are present.
func (f FetchField) Sections() string {
	var tokens []string
	for _, entry := range fetchFieldSections {
		if f&entry.field != 0 {
			tokens = append(tokens, entry.tokens...)
		}
	}
	return strings.Join(tokens, " ")
}

func (f FetchField) Has(field FetchField) bool {
	return f&field != 0
}
