package imapclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dessera-temail/go-imapclient"
	"github.com/dessera-temail/go-imapclient/internal/imapresp"
)

// handleResult carries a command handler's outcome: on success, value is
// the typed payload spec.md §6 promises for that command; on failure, err
// is a *imap.ProtocolError with the kind spec.md §4.D/§7 prescribes.
type handleResult struct {
	value any
	err   error
}

// handle dispatches a completed accumulator to the handler for kind.
//
// Grounded on temail::client::detail::imap_handle_{login,logout,noop,list,
// select,search,fetch} in original_source/src/client/imap/*.cpp: each
// function there takes the completed IMAPResponse and a pair of
// success/error callbacks. This rewrite collapses that callback pair into
// the single handleResult spec.md §9 asks for ("prefer a single result
// channel... a flat pair of function pointers is... error-prone when only
// one must fire").
func handle(kind imap.CommandKind, acc *imapresp.Accumulator) handleResult {
	switch kind {
	case imap.CmdLogin:
		return handleTaggedOnlyKind(acc, imap.ErrLogin, imap.ErrBadCommand, func() any { return imap.LoginResult{} })
	case imap.CmdLogout:
		return handleTaggedOnly(acc, func() any { return imap.LoginResult{} })
	case imap.CmdNoop:
		return handleTaggedOnly(acc, func() any { return imap.NoopResult{} })
	case imap.CmdList:
		return handleList(acc)
	case imap.CmdSelect:
		return handleSelect(acc)
	case imap.CmdSearch:
		return handleSearch(acc)
	case imap.CmdFetch:
		return handleFetch(acc)
	default:
		return handleResult{err: imap.NewProtocolError(imap.ErrUnexpected, fmt.Sprintf("unhandled command kind %v", kind))}
	}
}

// tagTriage classifies the single required tagged line shared by LOGOUT,
// NOOP, LIST, SELECT, SEARCH and FETCH: exactly one tagged line is
// expected, and its code is OK, NO or BAD.
func tagTriage(acc *imapresp.Accumulator, onNo, onBad imap.ErrorKind) (ok bool, data string, result handleResult) {
	tagged := acc.Tagged()
	if len(tagged) != 1 {
		return false, "", handleResult{err: imap.NewProtocolError(imap.ErrUnexpected, "expected exactly one tagged response")}
	}
	line := tagged[0]
	switch line.Code {
	case imap.RespOK:
		return true, line.Data, handleResult{}
	case imap.RespNO:
		return false, line.Data, handleResult{err: imap.NewProtocolError(onNo, line.Data)}
	case imap.RespBAD:
		return false, line.Data, handleResult{err: imap.NewProtocolError(onBad, line.Data)}
	default:
		return false, line.Data, handleResult{err: imap.NewProtocolError(imap.ErrUnexpected, fmt.Sprintf("unexpected tagged code %v", line.Code))}
	}
}

// handleTaggedOnly triages LOGOUT/NOOP's single tagged reply. Unlike
// handleTaggedOnlyKind (LOGIN, and the List-shaped commands via
// tagTriage directly), it has no NO-specific error: both
// temail::client::detail::imap_handle_logout and ::imap_handle_noop
// (original_source/src/client/imap/logout.cpp,noop.cpp) map any
// non-OK tagged code, NO or BAD alike, to E_BADCOMMAND.
func handleTaggedOnly(acc *imapresp.Accumulator, onOK func() any) handleResult {
	return handleTaggedOnlyKind(acc, imap.ErrBadCommand, imap.ErrBadCommand, onOK)
}

func handleTaggedOnlyKind(acc *imapresp.Accumulator, onNo, onBad imap.ErrorKind, onOK func() any) handleResult {
	ok, _, res := tagTriage(acc, onNo, onBad)
	if !ok {
		return res
	}
	return handleResult{value: onOK()}
}

func handleList(acc *imapresp.Accumulator) handleResult {
	ok, _, res := tagTriage(acc, imap.ErrReference, imap.ErrBadCommand)
	if !ok {
		return res
	}

	var list imap.ListResult
	for _, line := range acc.UntaggedLeading() {
		if line.Code != imap.RespLIST {
			continue
		}
		entry, matched := imapresp.ParseListLine(line.Data)
		if !matched {
			warnf("failed to parse LIST response: unexpected format %q", line.Data)
			continue
		}
		list = append(list, imap.ListItem{
			Parent: entry.Parent,
			Name:   entry.Name,
			Attrs:  entry.Attrs,
		})
	}
	return handleResult{value: list}
}

func handleSelect(acc *imapresp.Accumulator) handleResult {
	ok, taggedData, res := tagTriage(acc, imap.ErrReference, imap.ErrBadCommand)
	if !ok {
		return res
	}

	var data imap.SelectData
	if b, matched := imapresp.ParseBracket(taggedData); matched {
		data.Permission = b.Type
	}

	for _, line := range acc.UntaggedTrailing() {
		n, err := strconv.ParseUint(line.Data, 10, 64)
		if err != nil {
			warnf("failed to parse SELECT %v response: not a number: %q", line.Code, line.Data)
			continue
		}
		switch line.Code {
		case imap.RespEXISTS:
			data.Exists = n
		case imap.RespRECENT:
			data.Recent = n
		}
	}

	for _, line := range acc.UntaggedLeading() {
		switch line.Code {
		case imap.RespOK:
			b, matched := imapresp.ParseBracket(line.Data)
			if !matched || !b.HasData {
				continue
			}
			switch b.Type {
			case "UNSEEN":
				n, err := strconv.ParseUint(b.Data, 10, 64)
				if err != nil {
					warnf("failed to parse SELECT UNSEEN response: not a number: %q", b.Data)
					continue
				}
				data.Unseen = n
			case "UIDVALIDITY":
				n, err := strconv.ParseUint(b.Data, 10, 64)
				if err != nil {
					warnf("failed to parse SELECT UIDVALIDITY response: not a number: %q", b.Data)
					continue
				}
				data.UIDValidity = n
			case "PERMANENTFLAGS":
				data.PermanentFlags = imapresp.SplitAttrs(b.Data)
			}
		case imap.RespFLAGS:
			data.Flags = imapresp.SplitAttrs(strings.Trim(line.Data, "()"))
		}
	}

	return handleResult{value: data}
}

func handleSearch(acc *imapresp.Accumulator) handleResult {
	ok, _, res := tagTriage(acc, imap.ErrReference, imap.ErrBadCommand)
	if !ok {
		return res
	}

	var ids imap.SearchResult
	for _, line := range acc.UntaggedLeading() {
		if line.Code != imap.RespSEARCH {
			continue
		}
		for _, tok := range strings.Fields(line.Data) {
			id, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				warnf("failed to parse SEARCH response: non-numeric id %q", tok)
				continue
			}
			ids = append(ids, id)
		}
	}
	return handleResult{value: ids}
}

func handleFetch(acc *imapresp.Accumulator) handleResult {
	ok, _, res := tagTriage(acc, imap.ErrReference, imap.ErrBadCommand)
	if !ok {
		return res
	}

	result := imap.FetchResult(acc.Literals())
	return handleResult{value: result}
}
