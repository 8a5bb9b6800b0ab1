package imapclient

import (
	"github.com/dessera-temail/go-imapclient"
	"github.com/dessera-temail/go-imapclient/internal/imapresp"
)

// handleReadable is the transport's onReadable callback: it runs on the
// transport's background goroutine, so it holds mu while it parses,
// matching spec.md §5's single-executor model (parse advancement is one
// of the four critical sections). completeHead releases mu only while it
// runs the caller's callbacks and signal handlers.
//
// Grounded on temail::client::IMAP::_on_ready_read in
// original_source/src/client/imap.cpp, and on its digest/dispatch loop
// inside IMAP::read.
func (c *Client) handleReadable(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := data
	for {
		head := c.q.head()
		if head == nil {
			if len(pending) > 0 {
				warnf("discarding %d bytes with no pending command", len(pending))
			}
			return
		}

		st := head.acc.Digest(pending)
		switch st {
		case imapresp.NeedMore:
			return
		case imapresp.Error:
			c.completeHead(head, nil, imap.NewProtocolError(imap.ErrParse, head.acc.Err().Error()))
			pending = nil
			continue
		case imapresp.Complete:
			pending = append([]byte(nil), head.acc.Leftover()...)
			c.completeHead(head, nil, nil)
			if len(pending) == 0 && c.q.empty() {
				return
			}
			continue
		}
	}
}

// completeHead pops the queue head and dispatches it either to the
// connect-greeting handler (for imap.TagConnect) or to the per-command
// handler table in handle.go, then fires the entry's result callback plus
// one signal: error_occurred on failure, connected for a successful
// greeting, ready_read for any other success. Must be called with mu held.
func (c *Client) completeHead(head *queueEntry, _ any, forcedErr error) {
	c.q.popHead()

	isConnect := head.tag == imap.TagConnect

	var value any
	err := forcedErr
	if err == nil {
		if isConnect {
			var code imap.ResponseCode
			code, err = handleGreeting(head.acc)
			if err == nil {
				if code == imap.RespPREAUTH {
					c.state = imap.StateAuthenticated
				} else {
					c.state = imap.StateConnected
				}
			}
		} else {
			res := handle(head.kind, head.acc)
			value, err = res.value, res.err
		}
	}

	if err == nil && head.kind == imap.CmdLogin {
		c.state = imap.StateAuthenticated
	}

	if err == nil && !isConnect {
		c.readable = append(c.readable, value)
	}

	c.mu.Unlock()
	head.onResult(value, err)
	switch {
	case err != nil:
		c.fireError(asProtocolError(err))
	case isConnect:
		c.fireConnected()
	default:
		c.fireReadyRead()
	}
	c.mu.Lock()
}

// handleTransportError attributes a transport failure to the head entry
// if one is in flight, otherwise sets the engine-level last error.
//
// Grounded on temail::client::IMAP::_on_error_occurred.
func (c *Client) handleTransportError(err error) {
	c.mu.Lock()
	head := c.q.head()
	c.mu.Unlock()

	if head == nil {
		c.fireError(imap.WrapProtocolError(imap.ErrInternal, err))
		return
	}

	c.mu.Lock()
	c.completeHead(head, nil, imap.WrapProtocolError(imap.ErrInternal, err))
	c.mu.Unlock()
}

// handleTransportClosed resets connection state, fails every pending
// command entry with an Internal error (spec.md §5's cancellation rule),
// and resolves a caller-initiated DisconnectFromHost, if one is waiting,
// with a nil error: a graceful disconnect succeeds, distinct from the
// in-flight commands it cancels.
func (c *Client) handleTransportClosed() {
	c.mu.Lock()
	c.state = imap.StateDisconnected
	pending := c.q.drain()
	disconnectCB := c.disconnectCB
	c.disconnectCB = nil
	c.mu.Unlock()

	for _, entry := range pending {
		entry.onResult(nil, imap.NewProtocolError(imap.ErrInternal, "connection closed"))
	}
	if disconnectCB != nil {
		disconnectCB(nil)
	}
	c.fireDisconnected()
}

// handleGreeting classifies the connect greeting's first untagged line:
// OK or PREAUTH succeeds, anything else is Unexpected (spec.md §4.E). It
// reports which of the two matched so completeHead can land the client
// in the state spec.md §3's transition table calls for: PREAUTH skips
// straight to Authenticated, distinct from OK's Connected, matching
// Status::AUTHENTICATE vs Status::CONNECT in
// original_source/src/client/imap.cpp's greeting handling.
func handleGreeting(acc *imapresp.Accumulator) (imap.ResponseCode, error) {
	lines := acc.UntaggedLeading()
	if len(lines) == 0 {
		lines = acc.UntaggedTrailing()
	}
	if len(lines) == 0 {
		return imap.RespUnknown, imap.NewProtocolError(imap.ErrUnexpected, "no greeting line")
	}
	switch lines[0].Code {
	case imap.RespOK, imap.RespPREAUTH:
		return lines[0].Code, nil
	default:
		return imap.RespUnknown, imap.NewProtocolError(imap.ErrUnexpected, "unexpected greeting code")
	}
}
