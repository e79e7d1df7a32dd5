package sim900

import "sync"

// Signal names an event the orchestrator emits for external listeners.
type Signal string

const (
	// SignalReady fires once contact with the modem is established.
	SignalReady Signal = "ready"
	// SignalPowerCycled fires after each completed power toggle sequence.
	SignalPowerCycled Signal = "power-cycle-complete"
	// SignalChainStep fires with the validated reply of each intermediate
	// chain step.
	SignalChainStep Signal = "chain-intermediate-result"
	// SignalUnsolicited fires for every frame routed to the notification
	// subsystem.
	SignalUnsolicited Signal = "unsolicited-frame"
)

// Event is one emission on the Bus. Frames carries the payload where the
// signal has one (chain results, unsolicited frames) and is nil otherwise.
type Event struct {
	Signal Signal
	Frames []string
}

// Bus distributes orchestrator signals to subscribers. Publishing never
// blocks: a subscriber that stops draining its channel misses events, it
// does not stall the engine.
type Bus struct {
	mu   sync.RWMutex
	subs map[Signal][]chan Event
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Signal][]chan Event)}
}

// Subscribe registers interest in a signal and returns the channel events
// arrive on. Subscriptions last for the lifetime of the bus.
func (b *Bus) Subscribe(sig Signal) <-chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	b.subs[sig] = append(b.subs[sig], ch)
	b.mu.Unlock()
	return ch
}

// Publish fans an event out to every subscriber of its signal.
func (b *Bus) Publish(sig Signal, frames []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[sig] {
		select {
		case ch <- Event{Signal: sig, Frames: frames}:
		default:
		}
	}
}
