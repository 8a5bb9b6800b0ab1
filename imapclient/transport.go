package imapclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// TLSMode selects whether a connection is established in the clear or with
// implicit TLS. There is no STARTTLS upgrade path (spec.md §6).
type TLSMode int

const (
	NoSSL TLSMode = iota
	UseSSL
)

const (
	portNoSSL  = 143
	portUseSSL = 993
)

// DefaultPort returns the conventional port for mode, 143 or 993.
func (mode TLSMode) DefaultPort() int {
	if mode == UseSSL {
		return portUseSSL
	}
	return portNoSSL
}

// transportEvents is the set of callbacks a Transport drives the engine
// with. Exactly one of onReadable/onError fires per event; onClosed fires
// once, after which no further events are delivered.
type transportEvents struct {
	onConnected func()
	onReadable  func([]byte)
	onError     func(error)
	onClosed    func()
}

// Transport is the engine's view of the wire: a byte-oriented connection
// that delivers readiness via callbacks instead of blocking reads, so the
// single-threaded dispatch loop in dispatch.go never blocks on the
// network.
//
// Grounded on emersion-go-imap's Client, which owns a net.Conn plus a
// background goroutine (Client.read) turning blocking reads into command
// completions; this rewrite turns the same goroutine-per-connection idiom
// into an explicit event-callback interface so the accumulator-driven
// dispatch loop in dispatch.go stays synchronous and single-threaded, per
// spec.md §5's concurrency model.
type Transport interface {
	// Connect dials host:port, using TLS when mode is UseSSL. It returns
	// once the dial is initiated; completion is reported via onConnected
	// or onError.
	Connect(host string, port int, mode TLSMode)
	// Write sends p verbatim.
	Write(p []byte) error
	// Close tears down the connection. onClosed fires once the
	// background reader observes the close.
	Close() error
}

// netTransport is the default Transport, backed by net.Conn/tls.Conn.
type netTransport struct {
	events transportEvents

	mu   sync.Mutex
	conn net.Conn
}

func newNetTransport(events transportEvents) *netTransport {
	return &netTransport{events: events}
}

func (t *netTransport) Connect(host string, port int, mode TLSMode) {
	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)

		var conn net.Conn
		var err error
		if mode == UseSSL {
			conn, err = tls.Dial("tcp", addr, nil)
		} else {
			conn, err = net.Dial("tcp", addr)
		}
		if err != nil {
			t.events.onError(err)
			return
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		t.events.onConnected()
		t.readLoop(conn)
	}()
}

func (t *netTransport) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.events.onReadable(chunk)
		}
		if err != nil {
			t.events.onClosed()
			return
		}
	}
}

func (t *netTransport) Write(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("imapclient: write on unconnected transport")
	}
	_, err := conn.Write(p)
	return err
}

func (t *netTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
