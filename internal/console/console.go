package console

// Package console silences the development-mode serial console which
// would otherwise contend for the UART, then programs the GPS baud rate
// on the device. With the UART overlay active, serial0 is a symlink to
// the primary UART, and serial-getty@serial0.service holds it open.
//
// There is currently no good way to detect whether dev mode is enabled,
// so all of this is best-effort and idempotent.

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Discrete rates the platform baud setter accepts.
var supportedBauds = map[int]bool{
	4800:   true,
	9600:   true,
	19200:  true,
	38400:  true,
	57600:  true,
	115200: true,
}

// SupportedBaud reports whether the platform setter can program baud.
func SupportedBaud(baud int) bool {
	return supportedBauds[baud]
}

// SystemdManager is the interprocess-bus boundary to systemd.
type SystemdManager interface {
	MaskUnit(name string) error
	StopUnit(name string) error
}

type Config struct {
	// Unit is the getty unit contending for the UART.
	Unit string

	// Device is the serial device to program, Baud the rate to set.
	Device string
	Baud   int

	// Settle is how long to wait after suppression for changes to take
	// effect.
	Settle time.Duration
}

type Silencer struct {
	bus SystemdManager
	cfg Config
}

func NewSilencer(bus SystemdManager, cfg Config) (*Silencer, error) {
	cfg.Unit = strings.TrimSpace(cfg.Unit)
	cfg.Device = strings.TrimSpace(cfg.Device)
	if cfg.Unit == "" {
		return nil, fmt.Errorf("console: unit is required")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("console: device is required")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 9600
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 1 * time.Second
	}
	return &Silencer{bus: bus, cfg: cfg}, nil
}

// Silence masks and stops the getty unit, then sets the baud rate on the
// device. Unit suppression failures are logged and skipped; a baud
// failure is returned for the caller to decide on.
func (s *Silencer) Silence(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("silencer is nil")
	}

	if s.bus == nil {
		log.Printf("console: no system bus, skipping unit suppression")
	} else {
		log.Printf("console: masking and stopping %s", s.cfg.Unit)
		if err := s.bus.MaskUnit(s.cfg.Unit); err != nil {
			log.Printf("console: mask %s failed: %v", s.cfg.Unit, err)
		}
		if err := s.bus.StopUnit(s.cfg.Unit); err != nil {
			log.Printf("console: stop %s failed: %v", s.cfg.Unit, err)
		}
	}

	log.Printf("console: setting baud=%d on %s", s.cfg.Baud, s.cfg.Device)
	if err := setBaudFn(s.cfg.Device, s.cfg.Baud); err != nil {
		return fmt.Errorf("console: set baud on %s: %w", s.cfg.Device, err)
	}

	// Give the changes a moment to take effect.
	t := time.NewTimer(s.cfg.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return nil
}
