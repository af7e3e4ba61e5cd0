package console

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBus struct {
	masked  []string
	stopped []string
	maskErr error
	stopErr error
}

func (f *fakeBus) MaskUnit(name string) error {
	f.masked = append(f.masked, name)
	return f.maskErr
}

func (f *fakeBus) StopUnit(name string) error {
	f.stopped = append(f.stopped, name)
	return f.stopErr
}

func withFakeBaud(t *testing.T, fn func(path string, baud int) error) {
	t.Helper()
	orig := setBaudFn
	setBaudFn = fn
	t.Cleanup(func() { setBaudFn = orig })
}

func testConfig() Config {
	return Config{
		Unit:   "serial-getty@serial0.service",
		Device: "/dev/ttyAMA0",
		Baud:   9600,
		Settle: time.Millisecond,
	}
}

func TestNewSilencer_Validation(t *testing.T) {
	if _, err := NewSilencer(&fakeBus{}, Config{Device: "/dev/ttyAMA0"}); err == nil {
		t.Fatalf("expected error for missing unit")
	}
	if _, err := NewSilencer(&fakeBus{}, Config{Unit: "u.service"}); err == nil {
		t.Fatalf("expected error for missing device")
	}

	s, err := NewSilencer(&fakeBus{}, Config{Unit: "u.service", Device: "/dev/ttyAMA0"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.cfg.Baud != 9600 {
		t.Fatalf("expected default baud, got %d", s.cfg.Baud)
	}
	if s.cfg.Settle != time.Second {
		t.Fatalf("expected default settle, got %s", s.cfg.Settle)
	}
}

func TestSilence_MasksStopsAndSetsBaud(t *testing.T) {
	bus := &fakeBus{}
	var gotPath string
	var gotBaud int
	withFakeBaud(t, func(path string, baud int) error {
		gotPath = path
		gotBaud = baud
		return nil
	})

	s, err := NewSilencer(bus, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Silence(context.Background()); err != nil {
		t.Fatalf("silence: %v", err)
	}

	if len(bus.masked) != 1 || bus.masked[0] != "serial-getty@serial0.service" {
		t.Fatalf("unexpected mask calls %v", bus.masked)
	}
	if len(bus.stopped) != 1 || bus.stopped[0] != "serial-getty@serial0.service" {
		t.Fatalf("unexpected stop calls %v", bus.stopped)
	}
	if gotPath != "/dev/ttyAMA0" || gotBaud != 9600 {
		t.Fatalf("unexpected baud call %s %d", gotPath, gotBaud)
	}
}

func TestSilence_UnitErrorsAreNonFatal(t *testing.T) {
	bus := &fakeBus{maskErr: errors.New("mask boom"), stopErr: errors.New("stop boom")}
	withFakeBaud(t, func(string, int) error { return nil })

	s, err := NewSilencer(bus, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Silence(context.Background()); err != nil {
		t.Fatalf("unit errors must not fail silence: %v", err)
	}
}

func TestSilence_BaudErrorReturned(t *testing.T) {
	wantErr := errors.New("baud boom")
	withFakeBaud(t, func(string, int) error { return wantErr })

	s, err := NewSilencer(&fakeBus{}, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Silence(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected baud error, got %v", err)
	}
}

func TestSilence_NilBusSkipsSuppression(t *testing.T) {
	var called bool
	withFakeBaud(t, func(string, int) error {
		called = true
		return nil
	})

	s, err := NewSilencer(nil, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Silence(context.Background()); err != nil {
		t.Fatalf("silence: %v", err)
	}
	if !called {
		t.Fatalf("baud setter not called")
	}
}

func TestSilence_CanceledContext(t *testing.T) {
	withFakeBaud(t, func(string, int) error { return nil })

	cfg := testConfig()
	cfg.Settle = time.Minute
	s, err := NewSilencer(&fakeBus{}, cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Silence(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancel, got %v", err)
	}
}

func TestSupportedBaud(t *testing.T) {
	for _, b := range []int{4800, 9600, 19200, 38400, 57600, 115200} {
		if !SupportedBaud(b) {
			t.Fatalf("baud %d should be supported", b)
		}
	}
	if SupportedBaud(1234) {
		t.Fatalf("baud 1234 should not be supported")
	}
}
