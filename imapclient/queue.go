package imapclient

import (
	"github.com/dessera-temail/go-imapclient"
	"github.com/dessera-temail/go-imapclient/internal/imapresp"
)

// queueEntry is one in-flight command: its tag, its own accumulator, and
// the single result callback registered when the command was submitted,
// which receives either the typed value or an error. The engine
// keeps these in strict FIFO order so that responses are attributed to
// commands in submission order (spec.md §5, IMAP pipelining).
//
// Grounded on temail::client::IMAP's per-tag handler map
// (RESPONSE_HANDLER / _add_handler in original_source/src/client/imap.cpp),
// reshaped into an explicit queue since spec.md §9 asks for a single
// completion channel per command instead of the source's parallel
// readable-queue-plus-callback-map design.
type queueEntry struct {
	tag  imap.Tag
	kind imap.CommandKind
	acc  *imapresp.Accumulator

	onResult func(any, error)
}

// queue is the FIFO of in-flight commands. Index 0 is always the head:
// the entry whose accumulator is currently being fed.
type queue struct {
	entries []*queueEntry
}

func (q *queue) push(e *queueEntry) {
	q.entries = append(q.entries, e)
}

func (q *queue) head() *queueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

func (q *queue) popHead() {
	if len(q.entries) == 0 {
		return
	}
	q.entries = q.entries[1:]
}

// remove drops e from the queue by pointer identity, wherever it sits,
// leaving every other entry's order untouched. Used when a command fails
// to write after already being queued: the entry that failed isn't
// necessarily the head, since earlier pipelined commands may still be
// awaiting their responses.
func (q *queue) remove(e *queueEntry) {
	for i, entry := range q.entries {
		if entry == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *queue) empty() bool {
	return len(q.entries) == 0
}

// drain removes and returns every pending entry, in submission order, for
// use when the transport closes and every in-flight command must be
// failed at once (spec.md §5, cancellation).
func (q *queue) drain() []*queueEntry {
	entries := q.entries
	q.entries = nil
	return entries
}
