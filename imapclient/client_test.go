package imapclient

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dessera-temail/go-imapclient"
)

func newTestClient(t *testing.T) (*Client, *memTransport) {
	t.Helper()
	mt := &memTransport{}
	c := New(&Options{
		newTransport: func(events transportEvents) Transport {
			mt.events = events
			return mt
		},
	})
	return c, mt
}

// connectAndLogin drives a client through the greeting and a successful
// LOGIN, mirroring the opening moves of
// original_source/test/client/test_imap.cpp's test_interface.
func connectAndLogin(t *testing.T, c *Client, mt **memTransport) {
	t.Helper()
	connErrCh := make(chan error, 1)
	c.ConnectToHost("imap.example.org", 0, NoSSL, func(err error) { connErrCh <- err })
	require.NotNil(t, *mt)
	(*mt).feed("* OK IMAP4rev1 ready\r\n")
	require.NoError(t, <-connErrCh)
	assert.True(t, c.IsConnected())

	loginCh := make(chan error, 1)
	c.Login("alice", "hunter2", func(_ imap.LoginResult, err error) { loginCh <- err })
	tag := firstToken(t, (*mt).lastWrite())
	(*mt).feed(tag + " OK LOGIN completed\r\n")
	require.NoError(t, <-loginCh)
}

func firstToken(t *testing.T, line string) string {
	t.Helper()
	i := strings.IndexByte(line, ' ')
	require.Greater(t, i, 0, "malformed command line %q", line)
	return line[:i]
}

func TestClientFullInterfaceFlow(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	listCh := make(chan struct {
		res imap.ListResult
		err error
	}, 1)
	c.List(`""`, "*", func(res imap.ListResult, err error) {
		listCh <- struct {
			res imap.ListResult
			err error
		}{res, err}
	})
	tag := firstToken(t, mt.lastWrite())
	mt.feed("* LIST (\\HasNoChildren) \"/\" \"INBOX\"\r\n")
	mt.feed(tag + " OK LIST completed\r\n")
	got := <-listCh
	require.NoError(t, got.err)
	require.Len(t, got.res, 1)
	assert.Equal(t, "INBOX", got.res[0].Name)

	selectCh := make(chan struct {
		data imap.SelectData
		err  error
	}, 1)
	c.Select("INBOX", func(data imap.SelectData, err error) {
		selectCh <- struct {
			data imap.SelectData
			err  error
		}{data, err}
	})
	tag = firstToken(t, mt.lastWrite())
	mt.feed("* 4 EXISTS\r\n")
	mt.feed("* 1 RECENT\r\n")
	mt.feed("* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n")
	mt.feed("* OK [UNSEEN 2] Message 2 is first unseen\r\n")
	mt.feed("* OK [UIDVALIDITY 3857529045] UIDs valid\r\n")
	mt.feed(tag + " OK [READ-WRITE] SELECT completed\r\n")
	selRes := <-selectCh
	require.NoError(t, selRes.err)
	assert.Equal(t, uint64(4), selRes.data.Exists)
	assert.Equal(t, uint64(1), selRes.data.Recent)
	assert.Equal(t, uint64(2), selRes.data.Unseen)
	assert.Equal(t, uint64(3857529045), selRes.data.UIDValidity)
	assert.Equal(t, "READ-WRITE", selRes.data.Permission)
	assert.Contains(t, selRes.data.Flags, "Seen")

	noopCh := make(chan error, 1)
	c.Noop(func(err error) { noopCh <- err })
	tag = firstToken(t, mt.lastWrite())
	mt.feed(tag + " OK NOOP completed\r\n")
	require.NoError(t, <-noopCh)

	searchCh := make(chan struct {
		ids imap.SearchResult
		err error
	}, 1)
	c.Search(imap.SearchAll, func(ids imap.SearchResult, err error) {
		searchCh <- struct {
			ids imap.SearchResult
			err error
		}{ids, err}
	})
	tag = firstToken(t, mt.lastWrite())
	assert.Contains(t, mt.lastWrite(), "SEARCH ALL")
	mt.feed("* SEARCH 1 2 3\r\n")
	mt.feed(tag + " OK SEARCH completed\r\n")
	searchRes := <-searchCh
	require.NoError(t, searchRes.err)
	assert.Equal(t, imap.SearchResult{1, 2, 3}, searchRes.ids)

	fetchCh := make(chan struct {
		res imap.FetchResult
		err error
	}, 1)
	c.Fetch(1, 1, imap.FetchText, func(res imap.FetchResult, err error) {
		fetchCh <- struct {
			res imap.FetchResult
			err error
		}{res, err}
	})
	tag = firstToken(t, mt.lastWrite())
	mt.feed("* 1 FETCH (BODY[1] {5}\r\nhello)\r\n")
	mt.feed(tag + " OK FETCH completed\r\n")
	fetchRes := <-fetchCh
	require.NoError(t, fetchRes.err)
	require.Contains(t, fetchRes.res, uint64(1))
	assert.Equal(t, "hello", fetchRes.res[1]["BODY[1]"].String())

	logoutCh := make(chan error, 1)
	c.Logout(func(err error) { logoutCh <- err })
	tag = firstToken(t, mt.lastWrite())
	mt.feed(tag + " OK LOGOUT completed\r\n")
	require.NoError(t, <-logoutCh)
}

// TestClientPreauthGreetingSkipsStraightToAuthenticated covers spec.md
// §3's "Disconnected -> Authenticated on PREAUTH greeting" transition,
// distinct from the ordinary OK greeting landing in Connected.
func TestClientPreauthGreetingSkipsStraightToAuthenticated(t *testing.T) {
	c, mt := newTestClient(t)
	connErrCh := make(chan error, 1)
	c.ConnectToHost("imap.example.org", 0, NoSSL, func(err error) { connErrCh <- err })
	require.NotNil(t, mt)
	mt.feed("* PREAUTH IMAP4rev1 already authenticated\r\n")
	require.NoError(t, <-connErrCh)
	assert.True(t, c.IsConnected())
	assert.Equal(t, imap.StateAuthenticated, c.state)
}

func TestClientOKGreetingLandsInConnectedNotAuthenticated(t *testing.T) {
	c, mt := newTestClient(t)
	connErrCh := make(chan error, 1)
	c.ConnectToHost("imap.example.org", 0, NoSSL, func(err error) { connErrCh <- err })
	require.NotNil(t, mt)
	mt.feed("* OK IMAP4rev1 ready\r\n")
	require.NoError(t, <-connErrCh)
	assert.Equal(t, imap.StateConnected, c.state)
}

func TestClientLoginFailureReportsErrLogin(t *testing.T) {
	c, mt := newTestClient(t)
	errCh := make(chan error, 1)
	c.ConnectToHost("imap.example.org", 0, NoSSL, func(err error) { errCh <- err })
	mt.feed("* OK IMAP4rev1 ready\r\n")
	require.NoError(t, <-errCh)

	loginCh := make(chan error, 1)
	c.Login("alice", "wrong", func(_ imap.LoginResult, err error) { loginCh <- err })
	tag := firstToken(t, mt.lastWrite())
	mt.feed(tag + " NO LOGIN failed\r\n")
	err := <-loginCh
	require.Error(t, err)
	var pe *imap.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, imap.ErrLogin, pe.Kind)
}

// TestClientNoopNoAndBadBothReportErrBadCommand covers original_source's
// imap_handle_noop (noop.cpp), which has no NO-specific branch: every
// non-OK tagged reply is E_BADCOMMAND.
func TestClientNoopNoAndBadBothReportErrBadCommand(t *testing.T) {
	for _, code := range []string{"NO", "BAD"} {
		c, mt := newTestClient(t)
		connectAndLogin(t, c, &mt)

		noopCh := make(chan error, 1)
		c.Noop(func(err error) { noopCh <- err })
		tag := firstToken(t, mt.lastWrite())
		mt.feed(tag + " " + code + " NOOP rejected\r\n")

		err := <-noopCh
		require.Error(t, err)
		var pe *imap.ProtocolError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, imap.ErrBadCommand, pe.Kind)
	}
}

// TestClientLogoutNoAndBadBothReportErrBadCommand mirrors the above for
// LOGOUT (original_source's logout.cpp's imap_handle_logout).
func TestClientLogoutNoAndBadBothReportErrBadCommand(t *testing.T) {
	for _, code := range []string{"NO", "BAD"} {
		c, mt := newTestClient(t)
		connectAndLogin(t, c, &mt)

		logoutCh := make(chan error, 1)
		c.Logout(func(err error) { logoutCh <- err })
		tag := firstToken(t, mt.lastWrite())
		mt.feed(tag + " " + code + " LOGOUT rejected\r\n")

		err := <-logoutCh
		require.Error(t, err)
		var pe *imap.ProtocolError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, imap.ErrBadCommand, pe.Kind)
	}
}

func TestClientCommandBeforeConnectReturnsErrNotConnected(t *testing.T) {
	c, _ := newTestClient(t)
	errCh := make(chan error, 1)
	c.Noop(func(err error) { errCh <- err })
	err := <-errCh
	require.Error(t, err)
	var pe *imap.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, imap.ErrNotConnected, pe.Kind)
}

func TestClientPipelinedResponsesResolveInSubmissionOrder(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	noop1 := make(chan error, 1)
	noop2 := make(chan error, 1)
	var order []int
	c.Noop(func(err error) { order = append(order, 1); noop1 <- err })
	c.Noop(func(err error) { order = append(order, 2); noop2 <- err })

	writes := mt.allWrites()
	require.Len(t, writes, 3) // LOGIN + two NOOPs
	tag1 := firstToken(t, writes[1])
	tag2 := firstToken(t, writes[2])

	// Both responses arrive in a single read, exercising the pipelining
	// leftover path in dispatch.go.
	mt.feed(tag1 + " OK NOOP completed\r\n" + tag2 + " OK NOOP completed\r\n")

	require.NoError(t, <-noop1)
	require.NoError(t, <-noop2)
	assert.Equal(t, []int{1, 2}, order)
}

func TestClientTransportCloseFailsPendingCommands(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	noopCh := make(chan error, 1)
	c.Noop(func(err error) { noopCh <- err })

	disconnected := make(chan struct{})
	c.OnDisconnected(func() { close(disconnected) })

	mt.events.onClosed()

	select {
	case err := <-noopCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending NOOP never failed after transport close")
	}
	<-disconnected
	assert.True(t, c.IsDisconnected())
}

// TestClientDisconnectFromHostSucceeds asserts that a caller-initiated
// DisconnectFromHost resolves its callback with a nil error once the
// close it requested completes, matching
// temail::client::IMAP::_on_disconnected's _handle_success(DISCONNECT_TAG, {})
// in original_source/src/client/imap.cpp: a graceful disconnect succeeds,
// it doesn't fail like the in-flight commands it cancels.
func TestClientDisconnectFromHostSucceeds(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	disconnectCh := make(chan error, 1)
	c.DisconnectFromHost(func(err error) { disconnectCh <- err })
	assert.True(t, mt.isClosed())

	// The transport's reader goroutine observes the close and fires
	// onClosed asynchronously; the test plays that role explicitly.
	mt.events.onClosed()

	select {
	case err := <-disconnectCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("DisconnectFromHost callback never fired")
	}
	assert.True(t, c.IsDisconnected())
}

// TestClientDisconnectWhileCommandPendingDoesNotPanic exercises the race
// where a command is still awaiting its response when
// DisconnectFromHost is called, and the response bytes for that command
// arrive (via onReadable) before the transport's onClosed fires. Both
// events ultimately run under the client's own mutex, so they're
// delivered here in that order explicitly. Before the fix, the disconnect
// placeholder queued behind the pending command had no accumulator, and
// handleReadable would call Digest on a nil receiver once it looped back
// to it.
func TestClientDisconnectWhileCommandPendingDoesNotPanic(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	noopCh := make(chan error, 1)
	c.Noop(func(err error) { noopCh <- err })
	tag := firstToken(t, mt.lastWrite())

	disconnectCh := make(chan error, 1)
	c.DisconnectFromHost(func(err error) { disconnectCh <- err })

	require.NotPanics(t, func() {
		mt.feed(tag + " OK NOOP completed\r\n")
	})
	require.NoError(t, <-noopCh)

	mt.events.onClosed()
	require.NoError(t, <-disconnectCh)
}

// TestClientSubmitWriteFailureDoesNotDiscardEarlierPipelinedEntry covers
// the case where a command is already in flight (its write succeeded,
// its response hasn't arrived yet) and a later command's write fails.
// The failure must remove only the entry that failed to write, not
// whatever happens to be at the head of the queue.
func TestClientSubmitWriteFailureDoesNotDiscardEarlierPipelinedEntry(t *testing.T) {
	c, mt := newTestClient(t)
	connectAndLogin(t, c, &mt)

	firstCh := make(chan error, 1)
	c.Noop(func(err error) { firstCh <- err })
	firstTag := firstToken(t, mt.lastWrite())

	mt.failNextWrites(1, errors.New("connection reset"))

	secondCh := make(chan error, 1)
	c.Noop(func(err error) { secondCh <- err })

	err := <-secondCh
	require.Error(t, err)
	var pe *imap.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, imap.ErrInternal, pe.Kind)

	// The first NOOP is still legitimately queued and resolves normally
	// once its response arrives.
	mt.feed(firstTag + " OK NOOP completed\r\n")
	require.NoError(t, <-firstCh)
}
