//go:build linux && (arm || arm64)

package pps

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// openPPS requests the given BCM GPIO as an input with rising-edge
// events via the Linux GPIO character device, calling handler with the
// wall-clock time of each pulse.
func openPPS(pin int, consumer string, handler func(time.Time)) (io.Closer, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("pps: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO18", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithConsumer(consumer),
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				handler(time.Now())
			}))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodPPS{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("pps: gpio line %q not found (or busy)", lineName)
}

var openPPSFn = openPPS

type gpiodPPS struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodPPS) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
