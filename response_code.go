package imap

// ResponseCode is an IMAP4 untagged or tagged response keyword, restricted
// to the subset used by this client.
//
// Grounded on temail::client::IMAP::Response in original_source.
type ResponseCode int

const (
	RespUnknown ResponseCode = iota
	RespOK
	RespNO
	RespBAD
	RespPREAUTH
	RespBYE
	RespCAPABILITY
	RespLIST
	RespLSUB
	RespSEARCH
	RespFLAGS
	RespEXISTS
	RespRECENT
	RespEXPUNGE
	RespFETCH
	RespMAILBOX
	RespCOPY
	RespSTORE
)

var responseCodeNames = map[string]ResponseCode{
	"OK":         RespOK,
	"NO":         RespNO,
	"BAD":        RespBAD,
	"PREAUTH":    RespPREAUTH,
	"BYE":        RespBYE,
	"CAPABILITY": RespCAPABILITY,
	"LIST":       RespLIST,
	"LSUB":       RespLSUB,
	"SEARCH":     RespSEARCH,
	"FLAGS":      RespFLAGS,
	"EXISTS":     RespEXISTS,
	"RECENT":     RespRECENT,
	"EXPUNGE":    RespEXPUNGE,
	"FETCH":      RespFETCH,
	"MAILBOX":    RespMAILBOX,
	"COPY":       RespCOPY,
	"STORE":      RespSTORE,
}

// ParseResponseCode maps a wire keyword to its ResponseCode, or
// (RespUnknown, false) if the keyword isn't recognized.
func ParseResponseCode(s string) (ResponseCode, bool) {
	code, ok := responseCodeNames[s]
	return code, ok
}

func (c ResponseCode) String() string {
	for name, code := range responseCodeNames {
		if code == c {
			return name
		}
	}
	return "UNKNOWN"
}
