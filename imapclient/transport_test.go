package imapclient

import (
	"strings"
	"sync"
)

// memTransport is the in-memory Transport test helper committed to by
// SPEC_FULL.md §4.B: Connect fires onConnected synchronously instead of
// dialing, Write records every line sent so a test can assert on command
// construction (and can be made to fail via writeFn), and the test drives
// the response side explicitly by calling feed. This plays the role
// original_source/test/client/test_imap.cpp plays against a live server,
// but against scripted bytes instead of a real socket, since spec.md §5's
// dispatch loop only depends on transportEvents, not on any particular
// net.Conn behavior.
type memTransport struct {
	events transportEvents

	mu      sync.Mutex
	writes  []string
	closed  bool
	writeFn func(p []byte) error
}

func newMemTransport(events transportEvents) *memTransport {
	return &memTransport{events: events}
}

func (t *memTransport) Connect(host string, port int, mode TLSMode) {
	t.events.onConnected()
}

func (t *memTransport) Write(p []byte) error {
	t.mu.Lock()
	t.writes = append(t.writes, strings.TrimRight(string(p), "\r\n"))
	fn := t.writeFn
	t.mu.Unlock()
	if fn != nil {
		return fn(p)
	}
	return nil
}

// Close only marks the transport closed; it does not itself fire
// onClosed, mirroring netTransport.Close (imapclient/transport.go), which
// closes the file descriptor and lets the reader goroutine observe it and
// fire onClosed asynchronously. Tests call events.onClosed() explicitly
// once they want that to be observed.
func (t *memTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *memTransport) lastWrite() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.writes) == 0 {
		return ""
	}
	return t.writes[len(t.writes)-1]
}

func (t *memTransport) allWrites() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *memTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// feed delivers raw server bytes to the client as though they'd just
// arrived on the wire.
func (t *memTransport) feed(s string) {
	t.events.onReadable([]byte(s))
}

// failNextWrites makes the next n calls to Write return err instead of
// succeeding, then reverts to succeeding. A failed write is still recorded.
func (t *memTransport) failNextWrites(n int, err error) {
	remaining := n
	t.mu.Lock()
	t.writeFn = func(p []byte) error {
		t.mu.Lock()
		remaining--
		if remaining <= 0 {
			t.writeFn = nil
		}
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()
}
