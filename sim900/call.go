package sim900

import (
	"context"
	"fmt"
	"time"

	"github.com/aramirez92/gprs-sim900/at"
)

const callPatience = 10 * time.Second

// callEnds are the status lines that can close a voice-call exchange.
var callEnds = []string{at.OK, at.ERROR, at.NoCarrier, at.NoDialtone, at.Busy, at.NoAnswer}

// Dial places a voice call. Numbers with fewer than ten digits are
// rejected without touching the transport, as is dialing while another
// call is in progress.
func (o *Orchestrator) Dial(ctx context.Context, number string) error {
	if countDigits(number) < 10 {
		return fmt.Errorf("dial %q: %w", number, ErrNumberTooShort)
	}

	o.mu.Lock()
	if o.inACall {
		o.mu.Unlock()
		return ErrInCall
	}
	o.inACall = true
	o.mu.Unlock()

	cmd := fmt.Sprintf(at.CmdDial, number)
	frames, err := o.Transmit(ctx, cmd, callPatience, ReplyPattern{
		Starts: []string{cmd},
		Ends:   callEnds,
	})
	if err == nil {
		err = checkStatus(frames)
	}
	if err != nil {
		o.setInACall(false)
		return fmt.Errorf("dial: %w", err)
	}
	return nil
}

// AnswerCall answers an incoming call (typically on a RING notification).
func (o *Orchestrator) AnswerCall(ctx context.Context) error {
	frames, err := o.Transmit(ctx, at.CmdAnswer, callPatience, ReplyPattern{
		Starts: []string{at.CmdAnswer},
		Ends:   callEnds,
	})
	if err == nil {
		err = checkStatus(frames)
	}
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	o.setInACall(true)
	return nil
}

// HangUp terminates the current call. The in-call flag is cleared even if
// the modem answers badly; there is no call left worth protecting.
func (o *Orchestrator) HangUp(ctx context.Context) error {
	defer o.setInACall(false)
	frames, err := o.Transmit(ctx, at.CmdHangUp, callPatience, ReplyPattern{
		Starts: []string{at.CmdHangUp},
		Ends:   callEnds,
	})
	if err == nil {
		err = checkStatus(frames)
	}
	if err != nil {
		return fmt.Errorf("hang up: %w", err)
	}
	return nil
}

// InACall reports whether a call is currently in progress.
func (o *Orchestrator) InACall() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inACall
}

func (o *Orchestrator) setInACall(v bool) {
	o.mu.Lock()
	o.inACall = v
	o.mu.Unlock()
}

// checkStatus turns an explicit device error status into ErrProtocol.
func checkStatus(frames []string) error {
	for _, frame := range frames {
		if at.IsError(frame) {
			return fmt.Errorf("%w: %s", ErrProtocol, frame)
		}
	}
	return nil
}

func countDigits(number string) int {
	n := 0
	for _, r := range number {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
