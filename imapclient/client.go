// Package imapclient implements an IMAP4rev1 client engine: connect,
// LOGIN, LOGOUT, LIST, SELECT, NOOP, SEARCH and FETCH over a pipelined,
// single-threaded dispatch loop driven by transport readiness events.
//
// Grounded throughout on emersion-go-imap's imapclient.Client (background
// reader goroutine, per-command completion, tag bookkeeping under a
// mutex), adapted to the narrower IMAP4rev1 surface and the callback/
// readable-queue contract described in spec.md §4.E, and on
// temail::client::IMAP in original_source/src/client/imap.cpp for the
// exact command-construction and dispatch semantics.
package imapclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/dessera-temail/go-imapclient"
	"github.com/dessera-temail/go-imapclient/internal/imapresp"
)

// DefaultTimeout is a 30-second deadline callers may pass to the WaitFor*
// methods. Those methods do not apply it on their own: they always use the
// timeout they are given, and a zero-or-negative timeout waits without a
// deadline.
const DefaultTimeout = 30 * time.Second

// Options configures a Client. A zero Options is valid and picks the
// default net.Conn/tls.Conn-backed Transport.
type Options struct {
	// newTransport, when set, overrides transport construction. Tests use
	// this to inject an in-memory Transport.
	newTransport func(transportEvents) Transport
}

// Client is the IMAP4rev1 client engine described by spec.md §4.E.
//
// All protocol state — the command queue, each command's accumulator,
// connection state, and the readable-payload queue — is guarded by mu,
// realizing the single logical executor spec.md §5 requires: transport
// events arrive on a background goroutine and must not race with command
// submission from the caller's goroutine.
type Client struct {
	opts      Options
	transport Transport

	mu       sync.Mutex
	state    imap.ConnState
	lastErr  *imap.ProtocolError
	tagGen   *imap.TagGenerator
	q        queue
	readable []any

	connWaiters    []chan struct{}
	disconnWaiters []chan struct{}
	readyWaiters   []chan struct{}

	// disconnectCB is set by DisconnectFromHost and resolved with a nil
	// error by handleTransportClosed once the close it asked for actually
	// happens, distinct from the Internal error every other in-flight
	// entry is failed with. Grounded on
	// temail::client::IMAP::_on_disconnected calling
	// _handle_success(DISCONNECT_TAG, {}) in
	// original_source/src/client/imap.cpp.
	disconnectCB func(error)

	onConnected    func()
	onDisconnected func()
	onReadyRead    func()
	onError        func(*imap.ProtocolError)
}

// New constructs a disconnected Client. A nil options pointer is
// equivalent to a zero Options value.
func New(options *Options) *Client {
	if options == nil {
		options = &Options{}
	}
	return &Client{
		opts:   *options,
		state:  imap.StateDisconnected,
		tagGen: imap.NewTagGenerator(),
	}
}

func (c *Client) newTransport(events transportEvents) Transport {
	if c.opts.newTransport != nil {
		return c.opts.newTransport(events)
	}
	return newNetTransport(events)
}

// OnConnected, OnDisconnected, OnReadyRead and OnError register the
// signal handlers spec.md §4.E names: connected, disconnected, ready_read
// and error_occurred. Each replaces any previously registered handler for
// that signal.
func (c *Client) OnConnected(fn func()) { c.mu.Lock(); c.onConnected = fn; c.mu.Unlock() }
func (c *Client) OnDisconnected(fn func()) { c.mu.Lock(); c.onDisconnected = fn; c.mu.Unlock() }
func (c *Client) OnReadyRead(fn func()) { c.mu.Lock(); c.onReadyRead = fn; c.mu.Unlock() }
func (c *Client) OnError(fn func(*imap.ProtocolError)) { c.mu.Lock(); c.onError = fn; c.mu.Unlock() }

// IsConnected reports whether the engine believes itself authenticated or
// merely connected (i.e. not disconnected).
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != imap.StateDisconnected
}

// IsDisconnected is the complement of IsConnected.
func (c *Client) IsDisconnected() bool {
	return !c.IsConnected()
}

// Error returns the last error delivered through the error_occurred signal
// (see OnError): a command or greeting that failed once its response was
// processed, or a transport error. Errors handed straight to a command's
// callback at submission (not connected, write failure) are not recorded
// here. ResetError clears it.
func (c *Client) Error() *imap.ProtocolError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ErrorString returns Error().Error(), or "" if there is no error.
func (c *Client) ErrorString() string {
	if err := c.Error(); err != nil {
		return err.Error()
	}
	return ""
}

// ResetError clears the last engine-level error.
func (c *Client) ResetError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// Read pops the oldest completed command payload from the readable queue,
// in completion order. It returns nil if the queue is empty, logging a
// warning, per spec.md §4.E.
func (c *Client) Read() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.readable) == 0 {
		warnf("Read called with nothing available")
		return nil
	}
	v := c.readable[0]
	c.readable = c.readable[1:]
	return v
}

// ConnectToHost dials host, defaulting port to 143 (NoSSL) or 993 (UseSSL)
// when port is 0. cb, if non-nil, is invoked once with a nil error on
// success or a *imap.ProtocolError on failure.
func (c *Client) ConnectToHost(host string, port int, mode TLSMode, cb func(error)) {
	c.mu.Lock()
	if c.state != imap.StateDisconnected {
		c.mu.Unlock()
		if cb != nil {
			cb(imap.NewProtocolError(imap.ErrDuplicate, "already connected"))
		}
		return
	}
	if port == 0 {
		port = mode.DefaultPort()
	}

	greeting := &queueEntry{
		tag:  imap.TagConnect,
		kind: imap.CommandKind(-1),
		acc:  imapresp.New(imap.TagConnect),
		onResult: func(v any, err error) {
			if cb != nil {
				cb(err)
			}
		},
	}
	c.q.push(greeting)
	c.mu.Unlock()

	c.transport = c.newTransport(transportEvents{
		onConnected: func() {},
		onReadable:  c.handleReadable,
		onError:     c.handleTransportError,
		onClosed:    c.handleTransportClosed,
	})
	c.transport.Connect(host, port, mode)
}

// DisconnectFromHost closes the transport. cb, if non-nil, fires once the
// disconnection completes.
func (c *Client) DisconnectFromHost(cb func(error)) {
	c.mu.Lock()
	if c.state == imap.StateDisconnected {
		c.mu.Unlock()
		if cb != nil {
			cb(imap.NewProtocolError(imap.ErrDuplicate, "already disconnected"))
		}
		return
	}
	c.disconnectCB = cb
	c.mu.Unlock()

	if c.transport != nil {
		c.transport.Close()
	}
}

// Login submits a LOGIN command.
func (c *Client) Login(user, pass string, cb func(imap.LoginResult, error)) {
	c.submit(imap.CmdLogin, fmt.Sprintf("LOGIN %s %s", user, pass), func(v any, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(imap.LoginResult{}, err)
			return
		}
		cb(v.(imap.LoginResult), nil)
	})
}

// Logout submits a LOGOUT command.
func (c *Client) Logout(cb func(error)) {
	c.submit(imap.CmdLogout, "LOGOUT", func(v any, err error) {
		if cb != nil {
			cb(err)
		}
	})
}

// Noop submits a NOOP command.
func (c *Client) Noop(cb func(error)) {
	c.submit(imap.CmdNoop, "NOOP", func(v any, err error) {
		if cb != nil {
			cb(err)
		}
	})
}

// List submits a LIST command with the given reference and pattern,
// quoted as the caller supplies them (spec.md §4.E).
func (c *Client) List(reference, pattern string, cb func(imap.ListResult, error)) {
	c.submit(imap.CmdList, fmt.Sprintf("LIST %s %s", reference, pattern), func(v any, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, err)
			return
		}
		cb(v.(imap.ListResult), nil)
	})
}

// Select submits a SELECT command.
func (c *Client) Select(mailbox string, cb func(imap.SelectData, error)) {
	c.submit(imap.CmdSelect, fmt.Sprintf("SELECT %s", mailbox), func(v any, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(imap.SelectData{}, err)
			return
		}
		cb(v.(imap.SelectData), nil)
	})
}

// Search submits a SEARCH command for a single criterion.
func (c *Client) Search(criterion imap.SearchCriteria, cb func(imap.SearchResult, error)) {
	c.submit(imap.CmdSearch, fmt.Sprintf("SEARCH %s", criterion), func(v any, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, err)
			return
		}
		cb(v.(imap.SearchResult), nil)
	})
}

// Fetch submits a FETCH command for a range of n consecutive message
// sequence numbers starting at id (n == 1 fetches id alone), requesting
// every field set in fields.
func (c *Client) Fetch(id uint64, n uint64, fields imap.FetchField, cb func(imap.FetchResult, error)) {
	rangeSpec := fmt.Sprintf("%d", id)
	if n > 1 {
		rangeSpec = fmt.Sprintf("%d:%d", id, id+n-1)
	}
	c.submit(imap.CmdFetch, fmt.Sprintf("FETCH %s (%s)", rangeSpec, fields.Sections()), func(v any, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, err)
			return
		}
		cb(v.(imap.FetchResult), nil)
	})
}

// submit allocates a tag, writes "<tag> <commandText>\r\n" and pushes a
// queue entry awaiting the response.
func (c *Client) submit(kind imap.CommandKind, commandText string, onResult func(any, error)) {
	c.mu.Lock()
	if c.state == imap.StateDisconnected {
		c.mu.Unlock()
		onResult(nil, imap.NewProtocolError(imap.ErrNotConnected, "not connected"))
		return
	}
	tag := c.tagGen.Generate()
	entry := &queueEntry{
		tag:      tag,
		kind:     kind,
		acc:      imapresp.New(tag),
		onResult: onResult,
	}
	c.q.push(entry)
	c.mu.Unlock()

	if err := c.transport.Write([]byte(fmt.Sprintf("%s %s\r\n", tag, commandText))); err != nil {
		c.mu.Lock()
		c.q.remove(entry)
		c.mu.Unlock()
		onResult(nil, imap.WrapProtocolError(imap.ErrInternal, err))
	}
}

func asProtocolError(err error) *imap.ProtocolError {
	if pe, ok := err.(*imap.ProtocolError); ok {
		return pe
	}
	return imap.WrapProtocolError(imap.ErrInternal, err)
}

func (c *Client) fireConnected() {
	c.mu.Lock()
	fn := c.onConnected
	waiters := c.connWaiters
	c.connWaiters = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	for _, ch := range waiters {
		close(ch)
	}
}

func (c *Client) fireDisconnected() {
	c.mu.Lock()
	fn := c.onDisconnected
	waiters := c.disconnWaiters
	c.disconnWaiters = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	for _, ch := range waiters {
		close(ch)
	}
}

func (c *Client) fireReadyRead() {
	c.mu.Lock()
	fn := c.onReadyRead
	waiters := c.readyWaiters
	c.readyWaiters = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	for _, ch := range waiters {
		close(ch)
	}
}

func (c *Client) fireError(err *imap.ProtocolError) {
	c.mu.Lock()
	c.lastErr = err
	fn := c.onError
	c.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// waitFor parks until either ch closes or timeout elapses. A
// zero-or-negative timeout disables the deadline, per spec.md §5.
func waitFor(ch <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-ch
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return imap.NewProtocolError(imap.ErrInternal, "timed out")
	}
}

// WaitForConnected blocks until the connected signal fires or timeout
// elapses.
func (c *Client) WaitForConnected(timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.connWaiters = append(c.connWaiters, ch)
	c.mu.Unlock()
	return waitFor(ch, timeout)
}

// WaitForDisconnected blocks until the disconnected signal fires or
// timeout elapses.
func (c *Client) WaitForDisconnected(timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.disconnWaiters = append(c.disconnWaiters, ch)
	c.mu.Unlock()
	return waitFor(ch, timeout)
}

// WaitForReadyRead blocks until the next ready_read signal fires or
// timeout elapses.
func (c *Client) WaitForReadyRead(timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.readyWaiters = append(c.readyWaiters, ch)
	c.mu.Unlock()
	return waitFor(ch, timeout)
}
