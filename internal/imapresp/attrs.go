package imapresp

import (
	"regexp"
	"strings"
)

// SplitAttrs splits a space-separated mailbox attribute or flag list such
// as `\HasNoChildren \Unmarked`, stripping the leading backslash from each
// item.
//
// Grounded on the _parse_attrs helper duplicated verbatim between
// original_source/src/client/imap/list.cpp and select.cpp (flagged there as
// "TODO: Duplicate."); spec.md §9 calls for the duplication to be fixed by
// sharing one helper, which is what this function is for.
func SplitAttrs(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.TrimPrefix(f, "\\"))
	}
	return out
}

var bracketRe = regexp.MustCompile(`\[(?P<type>[A-Z-]+)(?: (?:\()?(?P<data>[^)\]]+)(?:\))?)?\]`)

// Bracket is a parsed "[TYPE]", "[TYPE data]" or "[TYPE (data)]" response
// code suffix, as seen in SELECT's tagged completion and in individual
// untagged OK lines (e.g. "[UNSEEN 5]", "[PERMANENTFLAGS (\* \Deleted)]").
type Bracket struct {
	Type    string
	Data    string
	HasData bool
}

// ParseBracket parses the first bracketed group in s.
//
// Grounded on SELECT_BRACKET_REG in
// original_source/src/client/imap/select.cpp.
func ParseBracket(s string) (Bracket, bool) {
	m := bracketRe.FindStringSubmatch(s)
	if m == nil {
		return Bracket{}, false
	}
	data := m[bracketRe.SubexpIndex("data")]
	return Bracket{
		Type:    m[bracketRe.SubexpIndex("type")],
		Data:    data,
		HasData: data != "",
	}, true
}

var listLineRe = regexp.MustCompile(`\((?P<attrs>[^)]+)\) "(?P<parent>[^"]+)" "(?P<name>[^"]+)"`)

// ListEntry is a parsed LIST response line's payload.
type ListEntry struct {
	Parent string
	Name   string
	Attrs  []string
}

// ParseListLine parses a single untagged LIST line's data, e.g.
// `(\HasNoChildren) "/" "INBOX"`.
//
// Grounded on LIST_REG in original_source/src/client/imap/list.cpp.
func ParseListLine(data string) (ListEntry, bool) {
	m := listLineRe.FindStringSubmatch(data)
	if m == nil {
		return ListEntry{}, false
	}
	return ListEntry{
		Parent: m[listLineRe.SubexpIndex("parent")],
		Name:   m[listLineRe.SubexpIndex("name")],
		Attrs:  SplitAttrs(m[listLineRe.SubexpIndex("attrs")]),
	}, true
}
