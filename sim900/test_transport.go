package sim900

import (
	"context"
	"io"
	"sync"
)

// TestDialer hands out a pre-built transport, bypassing any real
// connection setup.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	return d.Transport, nil
}

// TestTransport is a test helper that simulates an echo-based modem over
// a blocking transport. Reads block until data is available, like a real
// serial port, and each Write is answered with whatever reply was
// scripted for it via Respond. Unsolicited traffic is injected with
// SendData.
//
// Exported for use in tests; it is not part of the production surface.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	script   map[string][]byte
	writes   []string
	closed   bool
}

// NewTestTransport creates a test transport with an empty script.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 32),
		script:   make(map[string][]byte),
	}
}

// Respond registers the raw bytes the modem side answers with when
// exactly wire is written. Registering the same wire again replaces the
// reply.
func (t *TestTransport) Respond(wire, reply string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script[wire] = []byte(reply)
}

// SendData queues bytes to be read from the transport, simulating a
// device-initiated transmission.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns every wire string written so far, in order.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, string(p))
	if reply, ok := t.script[string(p)]; ok && !t.closed {
		t.readChan <- reply
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (int, error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}
