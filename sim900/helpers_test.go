package sim900_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aramirez92/gprs-sim900/sim900"
)

// newEngine builds an orchestrator over a scripted TestTransport with
// timings short enough for tests, starts its loop, and registers cleanup.
// mutate, when non-nil, adjusts the builder before Build.
func newEngine(t *testing.T, mutate func(*sim900.ConfigBuilder) *sim900.ConfigBuilder) (*sim900.Orchestrator, *sim900.TestTransport) {
	t.Helper()

	transport := sim900.NewTestTransport()
	builder := sim900.NewConfigBuilder().
		WithDialer(sim900.TestDialer{Transport: transport}).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithPatienceFloor(5 * time.Millisecond).
		WithProbePatience(20 * time.Millisecond).
		WithPowerTimings(time.Millisecond, time.Millisecond, time.Millisecond)
	if mutate != nil {
		builder = mutate(builder)
	}

	config, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o, err := sim900.New(ctx, config)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- o.Loop(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		transport.Close()
		<-loopDone
	})
	return o, transport
}

// fakePower records every transition driven onto the line.
type fakePower struct {
	mu          sync.Mutex
	transitions []bool
}

func (f *fakePower) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, high)
	return nil
}

func (f *fakePower) Transitions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.transitions))
	copy(out, f.transitions)
	return out
}
