package sim900

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aramirez92/gprs-sim900/at"
)

// SendFailed is the sentinel message reference returned when an SMS could
// not be sent.
const SendFailed = -1

const (
	smsStepPatience    = 5 * time.Second
	smsConfirmPatience = 30 * time.Second
	smsReadPatience    = 5 * time.Second
)

// SendSMS sends body to recipient in text mode and returns the message
// reference the network assigned.
//
// The exchange is a three-step chain — select text mode, open the
// recipient, write the body — followed by the manual CtrlZ byte that
// marks body completion. The confirmation must open with a "+CMGS:"
// frame (matched by substring; the reference follows it) and close with
// OK. Any mismatch yields SendFailed plus an error.
func (o *Orchestrator) SendSMS(ctx context.Context, recipient, body string) (int, error) {
	open := fmt.Sprintf(at.CmdSendSMS, recipient)
	steps := []ChainStep{
		{Message: at.CmdSetTextMode, Patience: smsStepPatience, Expect: []string{at.CmdSetTextMode, at.OK}},
		{Message: open, Patience: smsStepPatience, Expect: []string{open, at.Prompt}},
		{Message: body, Patience: smsStepPatience},
	}

	frames, err := o.RunChain(ctx, steps)
	if err != nil {
		return SendFailed, fmt.Errorf("send sms: %w", err)
	}
	if len(frames) == 0 || frames[len(frames)-1] != at.Prompt {
		return SendFailed, fmt.Errorf("send sms: no body prompt, got %q: %w", frames, ErrProtocol)
	}

	confirm, err := o.TransmitRaw(ctx, []byte(at.CtrlZ), smsConfirmPatience, ReplyPattern{
		Starts:    []string{at.SendConfirm},
		Ends:      []string{at.OK},
		Substring: true,
	})
	if err != nil {
		return SendFailed, fmt.Errorf("send sms: confirmation: %w", err)
	}

	ref, err := parseSendConfirm(confirm)
	if err != nil {
		return SendFailed, fmt.Errorf("send sms: %w", err)
	}
	o.log.Info("sms sent", "to", recipient, "ref", ref)
	return ref, nil
}

// parseSendConfirm extracts the numeric message reference from a
// ["+CMGS: <ref>", "OK"] confirmation.
func parseSendConfirm(frames []string) (int, error) {
	if len(frames) < 2 || frames[len(frames)-1] != at.OK {
		return SendFailed, fmt.Errorf("%w: confirmation %q", ErrProtocol, frames)
	}
	header := frames[0]
	i := strings.Index(header, at.SendConfirm)
	if i < 0 {
		return SendFailed, fmt.Errorf("%w: confirmation %q", ErrProtocol, frames)
	}
	ref, err := strconv.Atoi(strings.TrimSpace(header[i+len(at.SendConfirm):]))
	if err != nil {
		return SendFailed, fmt.Errorf("%w: reference in %q", ErrProtocol, header)
	}
	return ref, nil
}

// ReadSMS retrieves the message stored at index. With keep set the
// message's unread status is left untouched. The reply body is free-form,
// so every frame up to the status line is collected and returned raw.
func (o *Orchestrator) ReadSMS(ctx context.Context, index int, keep bool) ([]string, error) {
	mode := at.ReadNormal
	if keep {
		mode = at.ReadKeepUnread
	}

	cmd := fmt.Sprintf(at.CmdReadSMS, index, mode)
	frames, err := o.Transmit(ctx, cmd, smsReadPatience, ReplyPattern{
		Ends: []string{at.OK, at.ERROR},
	})
	if err != nil {
		return frames, fmt.Errorf("read sms %d: %w", index, err)
	}
	if err := checkStatus(frames); err != nil {
		return frames, fmt.Errorf("read sms %d: %w", index, err)
	}
	return frames, nil
}
