package sim900

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// Postmaster is the correlation and timeout engine. It owns the transport:
// all writes happen on its loop goroutine, and the packetizer it spawns is
// the only reader. At most one request is pending at any instant — the
// ordering guarantee that keeps frame correlation unambiguous on a
// transport without request IDs. A Send issued while another is pending
// fails with ErrBusy rather than relying on caller discipline.
//
// Frames that arrive with no pending request, or that match neither the
// pending pattern's starts nor its ends, are republished on the
// unsolicited channel instead of being discarded.
type Postmaster struct {
	transport Transport

	requests    chan *request
	clears      chan chan struct{}
	unsolicited chan string

	// done unblocks submitters once the loop has exited.
	done chan struct{}

	loopRunning atomic.Bool
}

// request is one pending exchange: the wire bytes already chosen, the
// patience window, the reply pattern, and the reply channel the submitter
// blocks on. The reply channel is buffered so the loop resolves each
// request exactly once without ever blocking on an abandoned submitter.
type request struct {
	wire     []byte
	patience time.Duration
	pattern  ReplyPattern
	resp     chan result
}

type result struct {
	frames []string
	err    error
}

// defaultPatience guards against requests armed with no window at all.
const defaultPatience = 5 * time.Second

// NewPostmaster creates a Postmaster over an established transport.
// Loop must be running before Send can resolve.
func NewPostmaster(transport Transport) *Postmaster {
	return &Postmaster{
		transport:   transport,
		requests:    make(chan *request),
		clears:      make(chan chan struct{}),
		unsolicited: make(chan string, 16),
		done:        make(chan struct{}),
	}
}

// Unsolicited returns the channel carrying frames that matched no pending
// request. The channel is buffered and drops frames when nobody consumes
// them fast enough.
func (p *Postmaster) Unsolicited() <-chan string {
	return p.unsolicited
}

// Send writes message plus the line terminator to the transport and blocks
// until a reply matching pattern arrives, the patience window elapses
// (ErrTimeout, with whatever frames were collected), the pending slot is
// force-cleared (ErrCleared), or the context is cancelled. It resolves
// exactly once per call.
func (p *Postmaster) Send(ctx context.Context, message string, patience time.Duration, pattern ReplyPattern) ([]string, error) {
	wire := []byte(strings.TrimSpace(message) + "\r")
	return p.submit(ctx, wire, patience, pattern)
}

// SendRaw is Send without command framing: the bytes go out verbatim.
// Used for the single CtrlZ byte that terminates an SMS body.
func (p *Postmaster) SendRaw(ctx context.Context, raw []byte, patience time.Duration, pattern ReplyPattern) ([]string, error) {
	return p.submit(ctx, raw, patience, pattern)
}

func (p *Postmaster) submit(ctx context.Context, wire []byte, patience time.Duration, pattern ReplyPattern) ([]string, error) {
	if patience <= 0 {
		patience = defaultPatience
	}
	req := &request{
		wire:     wire,
		patience: patience,
		pattern:  pattern,
		resp:     make(chan result, 1),
	}

	select {
	case p.requests <- req:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.resp:
		return res.frames, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ForceClear removes any pending request without waiting for its reply.
// The blocked sender, if any, resolves with ErrCleared. It is the recovery
// valve after a chain abort: a subsequent Send is never blocked by stale
// pending state.
func (p *Postmaster) ForceClear() {
	ack := make(chan struct{})
	select {
	case p.clears <- ack:
		<-ack
	case <-p.done:
	}
}

// Loop runs the engine until the context is cancelled or the transport
// fails. It must be called exactly once, typically in its own goroutine.
// The loop serializes transport writes, correlates incoming frames with
// the pending request, arms the patience timer, and republishes
// uncorrelated frames as unsolicited.
func (p *Postmaster) Loop(ctx context.Context) error {
	if !p.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer func() {
		close(p.done)
		// Publishing only happens on this goroutine, so closing here is
		// safe and lets notification dispatchers drain and exit.
		close(p.unsolicited)
	}()

	packetizer := NewPacketizer(p.transport)
	runErr := make(chan error, 1)
	go func() {
		runErr <- packetizer.Run(ctx)
	}()
	frames := packetizer.Frames()

	var (
		pending   *request
		collected []string
		timer     *time.Timer
		timerC    <-chan time.Time
	)

	// resolve delivers exactly one result for the pending request and
	// disarms the slot.
	resolve := func(err error) {
		pending.resp <- result{frames: collected, err: err}
		pending = nil
		collected = nil
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		timerC = nil
	}

	publish := func(frame string) {
		select {
		case p.unsolicited <- frame:
		default:
			// Slow consumer; the frame is dropped, same as a missed URC.
		}
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				resolve(ctx.Err())
			}
			return ctx.Err()

		case req := <-p.requests:
			if pending != nil {
				req.resp <- result{err: ErrBusy}
				continue
			}
			if _, err := p.transport.Write(req.wire); err != nil {
				req.resp <- result{err: fmt.Errorf("write %q: %w", req.wire, err)}
				continue
			}
			pending = req
			collected = nil
			timer = time.NewTimer(req.patience)
			timerC = timer.C

		case ack := <-p.clears:
			if pending != nil {
				resolve(ErrCleared)
			}
			close(ack)

		case frame, ok := <-frames:
			if !ok {
				err := <-runErr
				if err == nil {
					err = io.EOF
				}
				if pending != nil {
					resolve(err)
				}
				return err
			}
			switch {
			case pending == nil:
				publish(frame)
			case pending.pattern.MatchesEnd(frame):
				collected = append(collected, frame)
				resolve(nil)
			case pending.pattern.MatchesStart(frame):
				collected = append(collected, frame)
			default:
				publish(frame)
			}

		case <-timerC:
			resolve(ErrTimeout)
		}
	}
}
