// Package imapresp implements the incremental, literal-aware IMAP4rev1
// response parser (spec.md component C, the "response accumulator").
//
// Grounded on temail::client::detail::IMAPResponse in
// original_source/include/temail/private/client/imap/response.hpp and
// original_source/src/client/imap/response.cpp: four regexes are carried
// over (untagged-leading, untagged-trailing, untagged FETCH-start,
// paired-fetch element), while the tagged line is split by hand on its tag
// prefix and the following space. All of it works against a growing
// []byte buffer instead of a QDataStream so that Digest tolerates being fed
// arbitrarily small chunks, per spec.md §8's chunking invariant.
package imapresp

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/dessera-temail/go-imapclient"
)

// State is the result of a Digest call.
type State int

const (
	// NeedMore reports that the accumulator consumed what it could but
	// requires additional bytes to make progress.
	NeedMore State = iota
	// Complete reports that the terminating tagged line (or, for the
	// connect greeting, the first untagged line) has been parsed.
	Complete
	// Error reports a sticky parse failure; no further input is consumed.
	Error
)

func (s State) String() string {
	switch s {
	case NeedMore:
		return "need more"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Line is a single tagged or untagged response line, kept as its response
// code plus the remainder of the line after the code.
type Line struct {
	Code imap.ResponseCode
	Data string
}

var (
	fetchStartRe  = regexp.MustCompile(`^\* ([0-9]+) FETCH \((.*)$`)
	leadingRe     = regexp.MustCompile(`^\* ([A-Z-]+)(?: (.*))?$`)
	trailingRe    = regexp.MustCompile(`^\* (.*) ([A-Z-]+)$`)
	pairedFetchRe = regexp.MustCompile(
		`([A-Za-z0-9\-\[\]\(\)\. ]+?) (?:(NIL)|\{([0-9]+)\}(?:\s([\s\S]*))?)`,
	)
)

// Accumulator is the per-inflight-command incremental parser state. It
// survives short reads: bytes fed via Digest that don't yet form a
// complete line, or don't yet satisfy a pending literal's byte count, are
// buffered until the next call.
type Accumulator struct {
	tag imap.Tag

	tagged           []Line
	untaggedLeading  []Line
	untaggedTrailing []Line
	literals         map[uint64]map[string]imap.Literal

	buf []byte

	inFetch      bool
	fetchID      uint64
	pendingPairs []pairToken

	rawMode     bool
	bytesToRead int
	curField    string
	literalBuf  []byte

	complete bool
	err      error
}

type pairToken struct {
	field    string
	isNil    bool
	hasSize  bool
	size     int
	hasData  bool
	inline   string
}

// New constructs an accumulator awaiting the terminating line for tag.
// Pass imap.TagConnect for the connect greeting, which terminates on its
// first untagged line instead of a tagged reply (spec.md §3, §4.C rule 4).
func New(tag imap.Tag) *Accumulator {
	return &Accumulator{
		tag:      tag,
		literals: make(map[uint64]map[string]imap.Literal),
	}
}

func (a *Accumulator) Tag() imap.Tag            { return a.tag }
func (a *Accumulator) Tagged() []Line           { return a.tagged }
func (a *Accumulator) UntaggedLeading() []Line  { return a.untaggedLeading }
func (a *Accumulator) UntaggedTrailing() []Line { return a.untaggedTrailing }
func (a *Accumulator) Literals() map[uint64]map[string]imap.Literal {
	return a.literals
}
func (a *Accumulator) Err() error { return a.err }

// Leftover returns whatever bytes remain unconsumed in the buffer once the
// accumulator has reached Complete or Error: bytes belonging to the next
// response, already on the wire when this one finished parsing. The
// caller feeds these to the next queue entry's accumulator (spec.md §4.E
// pipelining).
func (a *Accumulator) Leftover() []byte { return a.buf }

func (a *Accumulator) fail(err error) State {
	if a.err == nil {
		a.err = err
	}
	return Error
}

// Digest appends p to the internal buffer and attempts to advance parsing
// as far as the currently available bytes allow.
//
// For any byte stream split arbitrarily into chunks, feeding those chunks
// through successive Digest calls yields the same final state as feeding
// the whole stream in one call (spec.md §8).
func (a *Accumulator) Digest(p []byte) State {
	if a.err != nil {
		return Error
	}
	if a.complete {
		return Complete
	}
	a.buf = append(a.buf, p...)

	for {
		if a.rawMode {
			if !a.consumeLiteral() {
				return NeedMore
			}
			continue
		}

		if a.inFetch && len(a.pendingPairs) > 0 {
			a.consumePendingPair()
			continue
		}

		if a.inFetch {
			line, ok := a.takeLine()
			if !ok {
				return NeedMore
			}
			if string(line) == ")" {
				a.inFetch = false
				continue
			}
			pairs, err := parsePairedFetch(string(line))
			if err != nil {
				return a.fail(err)
			}
			a.pendingPairs = pairs
			continue
		}

		line, ok := a.takeLine()
		if !ok {
			return NeedMore
		}

		done, err := a.handleTopLevelLine(string(line))
		if err != nil {
			return a.fail(err)
		}
		if done {
			a.complete = true
			return Complete
		}
	}
}

// takeLine extracts the next CRLF-terminated line from the buffer, without
// the trailing CRLF, replacing the buffer with whatever follows so that an
// already-consumed line is never re-parsed (spec.md §4.C rule 6).
func (a *Accumulator) takeLine() ([]byte, bool) {
	for i := 0; i+1 < len(a.buf); i++ {
		if a.buf[i] == '\r' && a.buf[i+1] == '\n' {
			line := a.buf[:i]
			a.buf = a.buf[i+2:]
			return line, true
		}
	}
	return nil, false
}

// handleTopLevelLine parses one line outside of an in-progress FETCH block.
// It returns done=true once the accumulator has reached a terminal line
// (the tagged completion, or for imap.TagConnect the first untagged line).
func (a *Accumulator) handleTopLevelLine(line string) (bool, error) {
	if len(line) > 0 && line[0] == '*' {
		if m := fetchStartRe.FindStringSubmatch(line); m != nil && a.tag != imap.TagConnect {
			id, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				return false, fmt.Errorf("imapresp: invalid FETCH id %q: %w", m[1], err)
			}
			a.inFetch = true
			a.fetchID = id
			if _, ok := a.literals[id]; !ok {
				a.literals[id] = make(map[string]imap.Literal)
			}
			pairs, err := parsePairedFetch(m[2])
			if err != nil {
				return false, err
			}
			a.pendingPairs = pairs
			return false, nil
		}

		if m := leadingRe.FindStringSubmatch(line); m != nil {
			code, _ := imap.ParseResponseCode(m[1])
			a.untaggedLeading = append(a.untaggedLeading, Line{Code: code, Data: m[2]})
			return a.tag == imap.TagConnect, nil
		}

		if m := trailingRe.FindStringSubmatch(line); m != nil {
			code, _ := imap.ParseResponseCode(m[2])
			a.untaggedTrailing = append(a.untaggedTrailing, Line{Code: code, Data: m[1]})
			return a.tag == imap.TagConnect, nil
		}

		if a.tag == imap.TagConnect {
			return false, fmt.Errorf("imapresp: malformed greeting line %q", line)
		}

		warnf("unhandled response line: %q", line)
		return false, nil
	}

	tagPrefix := string(a.tag) + " "
	if len(line) >= len(tagPrefix) && line[:len(tagPrefix)] == tagPrefix {
		rest := line[len(tagPrefix):]
		sp := indexByte(rest, ' ')
		if sp < 0 {
			return false, fmt.Errorf("imapresp: malformed tagged line %q", line)
		}
		typ := rest[:sp]
		data := rest[sp+1:]
		code, ok := imap.ParseResponseCode(typ)
		if !ok {
			return false, fmt.Errorf("imapresp: unknown tagged response type %q", typ)
		}
		a.tagged = append(a.tagged, Line{Code: code, Data: data})
		return true, nil
	}

	return false, fmt.Errorf("imapresp: unhandled response line: %q", line)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func parsePairedFetch(data string) ([]pairToken, error) {
	var tokens []pairToken
	for _, m := range pairedFetchRe.FindAllStringSubmatch(data, -1) {
		field, isNil, sizeStr, inline := m[1], m[2], m[3], m[4]
		tok := pairToken{field: field}
		switch {
		case isNil != "":
			tok.isNil = true
		case sizeStr != "":
			size, err := strconv.Atoi(sizeStr)
			if err != nil {
				return nil, fmt.Errorf("imapresp: invalid literal size %q: %w", sizeStr, err)
			}
			tok.hasSize = true
			tok.size = size
			if inline != "" {
				tok.hasData = true
				tok.inline = inline
			}
		default:
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// consumePendingPair processes exactly the next pending paired-fetch token:
// NIL tokens are skipped and store nothing; inline tokens are stored
// immediately; tokens whose literal content didn't fit on the line switch
// the accumulator into raw mode.
func (a *Accumulator) consumePendingPair() {
	tok := a.pendingPairs[0]
	a.pendingPairs = a.pendingPairs[1:]

	switch {
	case tok.isNil:
	case tok.hasData:
		n := tok.size
		if n > len(tok.inline) {
			n = len(tok.inline)
		}
		a.literals[a.fetchID][tok.field] = imap.NewLiteral([]byte(tok.inline[:n]))
	case tok.hasSize:
		a.rawMode = true
		a.bytesToRead = tok.size
		a.curField = tok.field
		a.literalBuf = a.literalBuf[:0]
	}
}

// consumeLiteral reads exactly bytesToRead raw bytes for the current
// field, without regard to line boundaries, so that embedded CRLFs inside
// a literal's content are preserved byte-for-byte (spec.md §8).
func (a *Accumulator) consumeLiteral() bool {
	n := len(a.buf)
	if n > a.bytesToRead {
		n = a.bytesToRead
	}
	a.literalBuf = append(a.literalBuf, a.buf[:n]...)
	a.buf = a.buf[n:]
	a.bytesToRead -= n

	if a.bytesToRead > 0 {
		return false
	}

	a.literals[a.fetchID][a.curField] = imap.NewLiteral(append([]byte(nil), a.literalBuf...))
	a.rawMode = false
	a.literalBuf = nil
	return true
}
