package pps

// Package pps monitors a GPS receiver's pulse-per-second line on a
// header GPIO while the daemon runs. Purely observational: it counts
// pulses and flags gaps, which is usually enough to tell a wiring
// problem from a receiver without fix.

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

type Config struct {
	Enable bool

	// Pin is the BCM GPIO number the PPS line is wired to.
	Pin int

	// Consumer labels the line request; defaults to "gpsd-agent-pps".
	Consumer string
}

type Snapshot struct {
	Enabled         bool      `json:"enabled"`
	Pin             int       `json:"pin,omitempty"`
	PulseCount      uint64    `json:"pulse_count"`
	LastPulse       time.Time `json:"last_pulse"`
	MeanIntervalSec float64   `json:"mean_interval_sec,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg     Config
	tracker *pulseTracker

	mu      sync.Mutex
	line    io.Closer
	lastErr string
}

func New(cfg Config) *Service {
	if cfg.Consumer == "" {
		cfg.Consumer = "gpsd-agent-pps"
	}
	return &Service{cfg: cfg, tracker: newPulseTracker()}
}

// Start requests the GPIO line with rising-edge events. Failure to find
// or claim the line is returned; the caller treats it as non-fatal.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("pps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.Pin <= 0 {
		return fmt.Errorf("pps: invalid gpio pin %d", s.cfg.Pin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.line != nil {
		return nil
	}

	line, err := openPPSFn(s.cfg.Pin, s.cfg.Consumer, func(ts time.Time) {
		if gap := s.tracker.observe(ts); gap > 0 {
			log.Printf("pps gap pin=%d missed=%d", s.cfg.Pin, gap)
		}
	})
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.line = line

	log.Printf("pps monitor started pin=%d", s.cfg.Pin)
	context.AfterFunc(ctx, s.Close)
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	line := s.line
	s.line = nil
	s.mu.Unlock()

	if line != nil {
		_ = line.Close()
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	count, last, mean := s.tracker.snapshot()
	return Snapshot{
		Enabled:         s.cfg.Enable,
		Pin:             s.cfg.Pin,
		PulseCount:      count,
		LastPulse:       last,
		MeanIntervalSec: mean,
		LastError:       lastErr,
	}
}
