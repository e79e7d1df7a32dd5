package sim900_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/aramirez92/gprs-sim900/at"
	"github.com/aramirez92/gprs-sim900/sim900"
)

func TestNew(t *testing.T) {
	t.Run("Missing dialer", func(t *testing.T) {
		_, err := sim900.New(context.Background(), sim900.Config{})
		if !errors.Is(err, sim900.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Dial failure propagates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dialer := sim900.NewMockDialer(ctrl)
		dialErr := errors.New("port busy")
		dialer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr)

		_, err := sim900.New(context.Background(), sim900.Config{Dialer: dialer})
		if !errors.Is(err, dialErr) {
			t.Errorf("expected dial error, got: %v", err)
		}
	})

	t.Run("Nil transport from dialer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dialer := sim900.NewMockDialer(ctrl)
		dialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

		_, err := sim900.New(context.Background(), sim900.Config{Dialer: dialer})
		if !errors.Is(err, sim900.ErrClosed) {
			t.Errorf("expected ErrClosed for nil transport, got: %v", err)
		}
	})
}

func TestOrchestratorClose(t *testing.T) {
	o, _ := newEngine(t, nil)

	if err := o.Close(); err != nil {
		t.Errorf("unexpected error on first Close: %v", err)
	}
	if err := o.Close(); !errors.Is(err, sim900.ErrClosed) {
		t.Errorf("expected ErrClosed on second Close, got: %v", err)
	}
}

func TestTransmitPatienceFloor(t *testing.T) {
	o, _ := newEngine(t, func(b *sim900.ConfigBuilder) *sim900.ConfigBuilder {
		return b.WithPatienceFloor(100 * time.Millisecond)
	})

	// An absurdly small patience must be raised to the floor, not produce
	// an instant timeout.
	start := time.Now()
	_, err := o.Transmit(context.Background(), "AT", time.Nanosecond, probePattern)
	elapsed := time.Since(start)

	if !errors.Is(err, sim900.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got: %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("expected timeout after at least the floor, got %v", elapsed)
	}
}

func TestRunChain(t *testing.T) {
	t.Run("Empty chain", func(t *testing.T) {
		o, _ := newEngine(t, nil)
		if _, err := o.RunChain(context.Background(), nil); !errors.Is(err, sim900.ErrEmptyChain) {
			t.Errorf("expected ErrEmptyChain, got: %v", err)
		}
	})

	t.Run("Final step result passes through verbatim", func(t *testing.T) {
		o, transport := newEngine(t, nil)
		transport.Respond("AT+CMGF=1\r", "AT+CMGF=1\r\nOK\r\n")
		transport.Respond("AT+CSQ\r", "AT+CSQ\r\n+CSQ: 21,0\r\nOK\r\n")

		stepEvents := o.Bus().Subscribe(sim900.SignalChainStep)

		frames, err := o.RunChain(context.Background(), []sim900.ChainStep{
			{Message: at.CmdSetTextMode, Patience: time.Second, Expect: []string{at.CmdSetTextMode, at.OK}},
			{Message: "AT+CSQ", Patience: time.Second},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"AT+CSQ", "+CSQ: 21,0", "OK"}
		if len(frames) != len(want) {
			t.Fatalf("expected final frames %q, got %q", want, frames)
		}
		for i := range want {
			if frames[i] != want[i] {
				t.Errorf("frame %d: expected %q, got %q", i, want[i], frames[i])
			}
		}

		select {
		case ev := <-stepEvents:
			if len(ev.Frames) != 2 || ev.Frames[1] != at.OK {
				t.Errorf("expected intermediate result event, got %q", ev.Frames)
			}
		default:
			t.Error("expected a chain-step event on the bus")
		}
	})

	t.Run("Mismatch aborts before later steps run", func(t *testing.T) {
		o, transport := newEngine(t, nil)
		transport.Respond("AT+CMGF=1\r", "AT+CMGF=1\r\nERROR\r\n")

		_, err := o.RunChain(context.Background(), []sim900.ChainStep{
			{Message: at.CmdSetTextMode, Patience: time.Second, Expect: []string{at.CmdSetTextMode, at.OK}},
			{Message: "AT+CSQ", Patience: time.Second},
			{Message: "AT+CPIN?", Patience: time.Second},
		})

		var broken *sim900.ChainBrokenError
		if !errors.As(err, &broken) {
			t.Fatalf("expected ChainBrokenError, got: %v", err)
		}
		if broken.Step != 0 {
			t.Errorf("expected break at step 0, got %d", broken.Step)
		}
		if !errors.Is(broken.Err, sim900.ErrMismatch) {
			t.Errorf("expected ErrMismatch cause, got: %v", broken.Err)
		}
		if len(broken.Frames) != 2 || broken.Frames[1] != at.ERROR {
			t.Errorf("expected offending frames in error, got %q", broken.Frames)
		}
		if writes := transport.Writes(); len(writes) != 1 {
			t.Errorf("expected only the first step written, got %q", writes)
		}

		// The pending slot must be immediately reusable after the abort.
		transport.Respond("AT\r", "AT\r\nOK\r\n")
		if _, err := o.Transmit(context.Background(), "AT", time.Second, probePattern); err != nil {
			t.Errorf("unexpected error reusing the engine: %v", err)
		}
	})

	t.Run("Error status fails a step without expectation", func(t *testing.T) {
		o, transport := newEngine(t, nil)
		transport.Respond("AT+CPIN?\r", "AT+CPIN?\r\n+CME ERROR: 10\r\nERROR\r\n")

		_, err := o.RunChain(context.Background(), []sim900.ChainStep{
			{Message: "AT+CPIN?", Patience: time.Second},
			{Message: "AT+CSQ", Patience: time.Second},
		})

		var broken *sim900.ChainBrokenError
		if !errors.As(err, &broken) {
			t.Fatalf("expected ChainBrokenError, got: %v", err)
		}
		if !errors.Is(broken.Err, sim900.ErrProtocol) {
			t.Errorf("expected ErrProtocol cause, got: %v", broken.Err)
		}
	})
}

func TestEstablishContact(t *testing.T) {
	t.Run("Responsive modem", func(t *testing.T) {
		o, transport := newEngine(t, nil)
		transport.Respond("AT\r", "AT\r\nOK\r\n")

		ready := o.Bus().Subscribe(sim900.SignalReady)

		if err := o.EstablishContact(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		select {
		case <-ready:
		default:
			t.Error("expected a ready event on the bus")
		}
	})

	t.Run("Unresponsive modem exhausts the attempt ceiling", func(t *testing.T) {
		power := &fakePower{}
		o, _ := newEngine(t, func(b *sim900.ConfigBuilder) *sim900.ConfigBuilder {
			return b.WithPowerLine(power)
		})

		cycled := o.Bus().Subscribe(sim900.SignalPowerCycled)

		err := o.EstablishContact(context.Background())
		if !errors.Is(err, sim900.ErrContactFailed) {
			t.Fatalf("expected ErrContactFailed, got: %v", err)
		}

		// Five probes, each followed by a raise/lower/raise press.
		transitions := power.Transitions()
		if len(transitions) != 15 {
			t.Fatalf("expected 15 power transitions, got %d", len(transitions))
		}
		for i, high := range transitions {
			if want := i%3 != 1; high != want {
				t.Errorf("transition %d: expected high=%v, got %v", i, want, high)
			}
		}

		events := 0
		for {
			select {
			case <-cycled:
				events++
				continue
			default:
			}
			break
		}
		if events != 5 {
			t.Errorf("expected 5 power-cycle events, got %d", events)
		}
	})

	t.Run("Missing power line aborts the retry machine", func(t *testing.T) {
		o, _ := newEngine(t, nil)
		if err := o.EstablishContact(context.Background()); !errors.Is(err, sim900.ErrNoPowerLine) {
			t.Errorf("expected ErrNoPowerLine, got: %v", err)
		}
	})

	t.Run("Cancellation stops probing", func(t *testing.T) {
		power := &fakePower{}
		o, _ := newEngine(t, func(b *sim900.ConfigBuilder) *sim900.ConfigBuilder {
			return b.WithPowerLine(power)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := o.EstablishContact(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context error, got: %v", err)
		}
	})
}

func TestNotificationDispatch(t *testing.T) {
	t.Run("Header and wildcard handlers both fire", func(t *testing.T) {
		o, transport := newEngine(t, nil)

		newMsg := make(chan string, 1)
		rings := make(chan string, 1)
		all := make(chan string, 4)
		o.RegisterNotification(at.UrcNewMsg, func(frame string) { newMsg <- frame })
		o.RegisterNotification(at.UrcRing, func(frame string) { rings <- frame })
		o.RegisterWildcard(func(frame string) { all <- frame })

		transport.SendData("+CMTI: \"SM\",3\r\n")

		select {
		case frame := <-newMsg:
			if frame != "+CMTI: \"SM\",3" {
				t.Errorf("expected notification frame, got %q", frame)
			}
		case <-time.After(time.Second):
			t.Fatal("expected header handler to fire")
		}
		select {
		case frame := <-all:
			if frame != "+CMTI: \"SM\",3" {
				t.Errorf("expected wildcard to see the frame, got %q", frame)
			}
		case <-time.After(time.Second):
			t.Fatal("expected wildcard handler to fire")
		}
		select {
		case frame := <-rings:
			t.Errorf("ring handler fired for %q", frame)
		default:
		}
	})

	t.Run("Stray leading byte still reaches the header handler", func(t *testing.T) {
		o, transport := newEngine(t, nil)

		rings := make(chan string, 1)
		o.RegisterNotification(at.UrcRing, func(frame string) { rings <- frame })

		transport.SendData("\x00RING\r\n")

		select {
		case frame := <-rings:
			if frame != "\x00RING" {
				t.Errorf("expected raw frame with stray byte, got %q", frame)
			}
		case <-time.After(time.Second):
			t.Error("expected ring handler to fire despite stray byte")
		}
	})

	t.Run("Unsolicited frames reach the bus", func(t *testing.T) {
		o, transport := newEngine(t, nil)
		o.RegisterWildcard(func(string) {})
		unsolicited := o.Bus().Subscribe(sim900.SignalUnsolicited)

		transport.SendData("RING\r\n")

		select {
		case ev := <-unsolicited:
			if len(ev.Frames) != 1 || ev.Frames[0] != "RING" {
				t.Errorf("expected RING event, got %q", ev.Frames)
			}
		case <-time.After(time.Second):
			t.Error("expected an unsolicited event on the bus")
		}
	})
}
