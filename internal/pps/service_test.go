package pps

import (
	"context"
	"io"
	"testing"
	"time"
)

type fakeLine struct {
	closed bool
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func withFakeLine(t *testing.T, fn func(pin int, consumer string, handler func(time.Time)) (io.Closer, error)) {
	t.Helper()
	orig := openPPSFn
	openPPSFn = fn
	t.Cleanup(func() { openPPSFn = orig })
}

func TestStart_DisabledIsNoop(t *testing.T) {
	called := false
	withFakeLine(t, func(int, string, func(time.Time)) (io.Closer, error) {
		called = true
		return &fakeLine{}, nil
	})

	s := New(Config{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if called {
		t.Fatalf("line requested while disabled")
	}
}

func TestStart_InvalidPin(t *testing.T) {
	s := New(Config{Enable: true})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for pin 0")
	}
}

func TestStart_PulsesReachSnapshot(t *testing.T) {
	var handler func(time.Time)
	line := &fakeLine{}
	withFakeLine(t, func(pin int, consumer string, h func(time.Time)) (io.Closer, error) {
		if pin != 18 {
			t.Errorf("unexpected pin %d", pin)
		}
		if consumer != "gpsd-agent-pps" {
			t.Errorf("unexpected consumer %q", consumer)
		}
		handler = h
		return line, nil
	})

	s := New(Config{Enable: true, Pin: 18})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	handler(now)
	handler(now.Add(time.Second))

	snap := s.Snapshot()
	if snap.PulseCount != 2 {
		t.Fatalf("expected 2 pulses, got %d", snap.PulseCount)
	}
	if !snap.LastPulse.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected last pulse %v", snap.LastPulse)
	}

	s.Close()
	if !line.closed {
		t.Fatalf("line not closed")
	}
}

func TestTracker_MissedPulses(t *testing.T) {
	tr := newPulseTracker()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if missed := tr.observe(now); missed != 0 {
		t.Fatalf("first pulse must not report a gap, got %d", missed)
	}
	if missed := tr.observe(now.Add(time.Second)); missed != 0 {
		t.Fatalf("on-time pulse must not report a gap, got %d", missed)
	}
	if missed := tr.observe(now.Add(4 * time.Second)); missed != 2 {
		t.Fatalf("expected 2 missed pulses after a 3s gap, got %d", missed)
	}

	count, last, mean := tr.snapshot()
	if count != 3 {
		t.Fatalf("expected 3 pulses, got %d", count)
	}
	if !last.Equal(now.Add(4 * time.Second)) {
		t.Fatalf("unexpected last %v", last)
	}
	if mean <= 0 {
		t.Fatalf("expected positive mean interval, got %f", mean)
	}
}
