package sim900

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aramirez92/gprs-sim900/at"
)

// NotificationHandler consumes one unsolicited frame.
type NotificationHandler func(frame string)

// ChainStep is one command of a multi-step chain. Expect lists the exact
// frame sequence the step must answer with; nil means any reply that
// carries no error status line is acceptable.
type ChainStep struct {
	Message  string
	Patience time.Duration
	Expect   []string
}

// Orchestrator is the public protocol driver: it issues single commands
// through the Postmaster, runs command chains, manages the
// contact/power-retry state machine, and routes unsolicited frames to
// registered handlers.
type Orchestrator struct {
	pm        *Postmaster
	transport Transport
	config    Config
	log       *slog.Logger
	bus       *Bus

	mu          sync.Mutex
	inACall     bool
	headers     map[string]NotificationHandler
	wildcards   []NotificationHandler
	dispatching bool
	closed      bool
}

// New dials the transport and assembles an Orchestrator. Loop must be
// started before any command can resolve, and EstablishContact should run
// before domain operations are attempted.
func New(ctx context.Context, config Config) (*Orchestrator, error) {
	if config.Dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("dialer returned no transport: %w", ErrClosed)
	}

	return &Orchestrator{
		pm:        NewPostmaster(transport),
		transport: transport,
		config:    config,
		log:       config.Logger,
		bus:       NewBus(),
		headers:   make(map[string]NotificationHandler),
	}, nil
}

// Loop runs the correlation engine until the context is cancelled or the
// transport fails. Call it exactly once, typically in its own goroutine.
func (o *Orchestrator) Loop(ctx context.Context) error {
	return o.pm.Loop(ctx)
}

// Bus returns the signal bus carrying ready, power-cycle-complete,
// chain-intermediate-result, and unsolicited-frame events.
func (o *Orchestrator) Bus() *Bus {
	return o.bus
}

// Close shuts the transport down. After Close the orchestrator cannot be
// reused.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.closed = true
	return o.transport.Close()
}

// Transmit sends a single command and waits for a reply matching pattern.
// It is the only path by which application commands reach the transport.
// Patience values below the configured floor are silently raised to it: a
// modem cannot react faster than the floor, and a shorter window would
// only manufacture timeouts.
func (o *Orchestrator) Transmit(ctx context.Context, message string, patience time.Duration, pattern ReplyPattern) ([]string, error) {
	return o.pm.Send(ctx, message, o.flooredPatience(patience), pattern)
}

// TransmitRaw is Transmit without command framing.
func (o *Orchestrator) TransmitRaw(ctx context.Context, raw []byte, patience time.Duration, pattern ReplyPattern) ([]string, error) {
	return o.pm.SendRaw(ctx, raw, o.flooredPatience(patience), pattern)
}

func (o *Orchestrator) flooredPatience(patience time.Duration) time.Duration {
	if patience < o.config.PatienceFloor {
		return o.config.PatienceFloor
	}
	return patience
}

// chainPattern is the broad transport-level pattern a chain step runs
// under: the command echo opens the reply and any status line or prompt
// closes it. Step validation against the expectation happens afterwards,
// field by field.
func chainPattern(step ChainStep) ReplyPattern {
	return ReplyPattern{
		Starts: []string{strings.TrimSpace(step.Message)},
		Ends:   []string{at.OK, at.ERROR, at.Prompt},
	}
}

// RunChain executes steps strictly in order; step i+1 is only transmitted
// after step i resolved. Every step but the last is validated against its
// expectation; on failure the chain aborts immediately: the pending slot
// is force-cleared, no further step runs, and a ChainBrokenError naming
// the breaking step is returned alongside the offending frames. The final
// step's raw result passes through verbatim — final-step checks are the
// caller's business.
func (o *Orchestrator) RunChain(ctx context.Context, steps []ChainStep) ([]string, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}

	last := len(steps) - 1
	for i, step := range steps[:last] {
		frames, err := o.Transmit(ctx, step.Message, step.Patience, chainPattern(step))
		if err == nil {
			err = validateStep(frames, step.Expect)
		}
		if err != nil {
			o.pm.ForceClear()
			o.log.Warn("chain aborted", "step", i, "command", step.Message, "error", err)
			return frames, &ChainBrokenError{Step: i, Frames: frames, Err: err}
		}
		o.bus.Publish(SignalChainStep, frames)
	}

	final := steps[last]
	return o.Transmit(ctx, final.Message, final.Patience, chainPattern(final))
}

func validateStep(frames, expect []string) error {
	if expect != nil {
		if !FramesEqual(frames, expect) {
			return ErrMismatch
		}
		return nil
	}
	for _, frame := range frames {
		if at.IsError(frame) {
			return fmt.Errorf("%w: %s", ErrProtocol, frame)
		}
	}
	return nil
}

// EstablishContact probes the modem and, while the probe times out,
// power-cycles the device and tries again, up to the configured attempt
// ceiling. A clean reply publishes SignalReady. Exhausting the ceiling is
// fatal and reported as ErrContactFailed; any non-timeout failure aborts
// the state machine immediately.
func (o *Orchestrator) EstablishContact(ctx context.Context) error {
	pattern := ReplyPattern{
		Starts: []string{at.CmdProbe},
		Ends:   []string{at.OK},
	}

	for attempt := 1; attempt <= o.config.ContactAttempts; attempt++ {
		_, err := o.Transmit(ctx, at.CmdProbe, o.config.ProbePatience, pattern)
		if err == nil {
			o.log.Info("modem contact established", "attempt", attempt)
			o.bus.Publish(SignalReady, nil)
			return nil
		}
		if !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("contact probe: %w", err)
		}
		o.log.Warn("modem unresponsive, power cycling", "attempt", attempt)
		if err := o.powerCycle(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrContactFailed, o.config.ContactAttempts)
}

// powerCycle emulates a press of the modem's power button: raise, short
// hold, lower, long hold, raise again, then wait out the boot settle
// period before the device is considered live again.
func (o *Orchestrator) powerCycle(ctx context.Context) error {
	if o.config.Power == nil {
		return ErrNoPowerLine
	}

	sequence := []struct {
		high bool
		hold time.Duration
	}{
		{true, o.config.PowerPressHold},
		{false, o.config.PowerOffHold},
		{true, o.config.PowerBootWait},
	}
	for _, s := range sequence {
		if err := o.config.Power.Set(s.high); err != nil {
			return fmt.Errorf("power line: %w", err)
		}
		if err := sleep(ctx, s.hold); err != nil {
			return err
		}
	}

	o.bus.Publish(SignalPowerCycled, nil)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterNotification routes unsolicited frames opening with header to
// handler. Registering the same header again replaces its handler.
// The first registration of any kind subscribes the orchestrator to the
// Postmaster's unsolicited channel; later ones do not resubscribe.
func (o *Orchestrator) RegisterNotification(header string, handler NotificationHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.headers[header] = handler
	o.ensureDispatchLocked()
}

// RegisterWildcard adds a handler invoked for every unsolicited frame,
// independently of header dispatch.
func (o *Orchestrator) RegisterWildcard(handler NotificationHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.wildcards = append(o.wildcards, handler)
	o.ensureDispatchLocked()
}

func (o *Orchestrator) ensureDispatchLocked() {
	if o.dispatching {
		return
	}
	o.dispatching = true
	go func() {
		for frame := range o.pm.Unsolicited() {
			o.dispatch(frame)
		}
	}()
}

// dispatch fans one unsolicited frame out: every header handler whose
// token prefixes the frame fires, and every wildcard handler fires —
// header match does not exclude wildcard dispatch.
func (o *Orchestrator) dispatch(frame string) {
	o.mu.Lock()
	var matched []NotificationHandler
	for header, handler := range o.headers {
		if headerMatches(frame, header) {
			matched = append(matched, handler)
		}
	}
	wildcards := make([]NotificationHandler, len(o.wildcards))
	copy(wildcards, o.wildcards)
	o.mu.Unlock()

	o.bus.Publish(SignalUnsolicited, []string{frame})
	for _, handler := range matched {
		handler(frame)
	}
	for _, handler := range wildcards {
		handler(frame)
	}
}

// headerMatches applies the prefix rule with the same stray-leading-byte
// tolerance as frame matching.
func headerMatches(frame, header string) bool {
	if strings.HasPrefix(frame, header) {
		return true
	}
	return len(frame) > 0 && frame[0] < 0x20 && strings.HasPrefix(frame[1:], header)
}
