// Package at holds the SIM900 AT command vocabulary: the commands the
// orchestrator issues, the tokens the modem answers with, and the control
// characters of the wire protocol. It carries no behavior beyond token
// classification helpers; protocol semantics live in package sim900.
package at

import "strings"

const (
	// Terminal control
	CRLF   = "\r\n"
	Prompt = "> "
	// CtrlZ terminates an SMS body in text mode.
	CtrlZ = "\x1a"

	// Final response codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Commands
	CmdProbe       = "AT"
	CmdAnswer      = "ATA"
	CmdHangUp      = "ATH"
	CmdSetTextMode = "AT+CMGF=1"

	// Command formats, for use with fmt.Sprintf
	CmdDial    = "ATD%s;"
	CmdSendSMS = `AT+CMGS="%s"`
	CmdReadSMS = "AT+CMGR=%d,%d"

	// Reply headers
	SendConfirm = "+CMGS:"
	ReadHeader  = "+CMGR:"

	// URC headers
	UrcNewMsg = "+CMTI:"
	UrcRing   = "RING"
)

// SMS storage handling modes for AT+CMGR.
const (
	// ReadNormal marks the message as read after retrieval.
	ReadNormal = 0
	// ReadKeepUnread retrieves the message without changing its status.
	ReadKeepUnread = 1
)

// IsError reports whether line is one of the modem's failure status lines.
func IsError(line string) bool {
	switch line {
	case ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return true
	}
	return strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError)
}
