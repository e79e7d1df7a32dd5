package sim900

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aramirez92/gprs-sim900/at"
)

// Splitter is a bufio.SplitFunc that cuts the modem byte stream into
// frames: one echoed command, status line, or unsolicited notification per
// token.
//
// The boundary rule is terminator-based: a frame ends at CRLF, and the SMS
// input prompt ("> ", which the modem emits without a terminator) is
// returned as a frame of its own. Bytes that do not yet complete a frame
// stay buffered in the scanner and are prefixed onto the next read, so no
// byte is lost or duplicated across frame boundaries. At EOF any remaining
// tail is flushed as a final frame. No silence-gap timing is applied; a
// SIM900 terminates every transmission it makes, prompt aside.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if bytes.HasPrefix(data, []byte(at.Prompt)) {
		return len(at.Prompt), data[0:len(at.Prompt)], nil
	}

	if i := bytes.Index(data, []byte(at.CRLF)); i >= 0 {
		return i + len(at.CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Packetizer reassembles a raw transport byte stream into discrete frames
// and emits them, in arrival order, on its Frames channel. It knows nothing
// about commands or protocol state.
//
// Stray leading NUL/control bytes (seen right after device power-on) are
// left inside the frame; the pattern matcher tolerates them instead.
type Packetizer struct {
	r      io.Reader
	frames chan string
}

// NewPacketizer creates a Packetizer reading from r. Run must be called
// for frames to flow.
func NewPacketizer(r io.Reader) *Packetizer {
	return &Packetizer{
		r:      r,
		frames: make(chan string, 10),
	}
}

// Frames returns the channel on which decoded frames are delivered.
// The channel is closed when Run returns.
func (p *Packetizer) Frames() <-chan string {
	return p.frames
}

// Run scans the stream until EOF, a read error, or context cancellation,
// delivering each frame exactly once. Whitespace framing remnants are
// trimmed (the prompt keeps its trailing space) and empty pulses between
// CRLF pairs are skipped.
func (p *Packetizer) Run(ctx context.Context) error {
	defer close(p.frames)

	scanner := bufio.NewScanner(p.r)
	scanner.Split(Splitter)

	for scanner.Scan() {
		frame := scanner.Text()
		if frame != at.Prompt {
			frame = strings.TrimRight(frame, " \t\r\n")
		}
		if frame == "" {
			continue
		}
		select {
		case p.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
