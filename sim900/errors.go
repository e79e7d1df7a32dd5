package sim900

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when an Orchestrator is constructed without
	// a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoPowerLine is returned by EstablishContact when a power cycle is
	// needed but no PowerLine was configured.
	ErrNoPowerLine = errors.New("no power line configured")

	// ErrTimeout is returned when no frame satisfying the request's
	// pattern arrived within its patience window. The frames collected
	// before the window closed accompany the error.
	ErrTimeout = errors.New("reply timeout")

	// ErrBusy is returned when Send is called while another request is
	// still pending. The engine holds at most one pending request; callers
	// must wait for the previous exchange to resolve.
	ErrBusy = errors.New("request already pending")

	// ErrCleared is returned to a sender whose pending request was
	// removed by ForceClear. No reply should be expected for it.
	ErrCleared = errors.New("pending request force-cleared")

	// ErrClosed is returned when an operation is attempted after the
	// engine has shut down.
	ErrClosed = errors.New("engine closed")

	// ErrLoopRunning is returned when Loop is called while a previous
	// Loop invocation is still active.
	ErrLoopRunning = errors.New("loop already running")

	// ErrContactFailed is returned by EstablishContact once the retry
	// ceiling is exhausted without a clean probe reply. It is fatal; no
	// further automatic retries occur.
	ErrContactFailed = errors.New("modem contact failed")

	// ErrMismatch marks a chain step whose reply did not match its
	// expectation. It surfaces wrapped in a ChainBrokenError.
	ErrMismatch = errors.New("reply mismatch")

	// ErrProtocol is returned when the device explicitly answered with an
	// error status line.
	ErrProtocol = errors.New("modem returned error status")

	// ErrNumberTooShort is returned by Dial for phone numbers with fewer
	// than ten digits.
	ErrNumberTooShort = errors.New("phone number too short")

	// ErrInCall is returned by Dial while another call is in progress.
	ErrInCall = errors.New("currently in a call")

	// ErrEmptyChain is returned by RunChain for a chain with no steps.
	ErrEmptyChain = errors.New("chain has no steps")
)

// ChainBrokenError reports a chain that aborted because an intermediate
// step's reply failed validation. Step is the zero-based index of the
// breaking step; Frames holds the reply that failed; Unwrap yields the
// underlying cause (ErrMismatch or ErrProtocol).
type ChainBrokenError struct {
	Step   int
	Frames []string
	Err    error
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("chain broken at step %d: %v (got %q)", e.Step, e.Err, e.Frames)
}

func (e *ChainBrokenError) Unwrap() error {
	return e.Err
}
