package sim900

import "strings"

// ReplyPattern describes the shape of a reply the postmaster should
// correlate with a pending request.
//
// Starts lists the acceptable opening frames of the reply; a frame
// belongs to the reply while it matches any start token. Ends lists the
// terminal frames that close the reply. An empty Starts accepts every
// frame until an end token arrives, which suits replies with
// unpredictable bodies such as AT+CMGR output.
//
// When Substring is set a start token only needs to occur somewhere
// within the frame rather than at its head; used for headers followed by
// variable text ("+CMGS: 7").
//
// A pattern is immutable for the lifetime of the request it is attached
// to.
type ReplyPattern struct {
	Starts    []string
	Ends      []string
	Substring bool
}

// matchToken reports whether frame satisfies token. A frame matches
// outright, or with a single stray leading control byte removed (SIM900s
// are known to prefix garbage right after power-on), or — in substring
// mode — by containing the token anywhere.
func matchToken(frame, token string, substring bool) bool {
	if frame == token {
		return true
	}
	if len(frame) > 0 && frame[0] < 0x20 && frame[1:] == token {
		return true
	}
	return substring && strings.Contains(frame, token)
}

// MatchesStart reports whether frame opens or continues a reply under
// this pattern.
func (p ReplyPattern) MatchesStart(frame string) bool {
	if len(p.Starts) == 0 {
		return true
	}
	for _, token := range p.Starts {
		if matchToken(frame, token, p.Substring) {
			return true
		}
	}
	return false
}

// MatchesEnd reports whether frame terminates a reply under this pattern.
func (p ReplyPattern) MatchesEnd(frame string) bool {
	for _, token := range p.Ends {
		if matchToken(frame, token, p.Substring) {
			return true
		}
	}
	return false
}

// FramesEqual validates a received reply against an expected one
// field-by-field, tolerating the same stray-leading-byte variant per
// field as frame matching does.
func FramesEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !matchToken(got[i], want[i], false) {
			return false
		}
	}
	return true
}
