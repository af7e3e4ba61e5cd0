package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"gpsd-agent/internal/config"
	"gpsd-agent/internal/console"
	"gpsd-agent/internal/gpsd"
	"gpsd-agent/internal/hardware"
	"gpsd-agent/internal/overlay"
	"gpsd-agent/internal/pps"
)

// agent runs the bring-up sequence once: detect the GPS serial device,
// reconcile the UART overlay, silence the dev-mode console when the
// hardware UART is in play, then launch gpsd and wait on it.
//
// Collaborators are held as funcs so the sequencing is testable without
// hardware or a remote API.
type agent struct {
	cfg config.Config

	controlUART  func(ctx context.Context, control overlay.Control) error
	isCharDevice func(path string) bool
	readModel    func() (string, error)
	silence      func(ctx context.Context) error
	runDaemon    func(ctx context.Context, device string) (int, error)
	startPPS     func(ctx context.Context) error
	stopPPS      func()
}

func newAgent(cfg config.Config, reconciler *overlay.Reconciler, silencer *console.Silencer, runner *gpsd.Runner, ppsSvc *pps.Service) *agent {
	return &agent{
		cfg: cfg,
		controlUART: func(ctx context.Context, control overlay.Control) error {
			if reconciler == nil {
				return fmt.Errorf("remote config unavailable")
			}
			_, err := reconciler.Apply(ctx, control)
			return err
		},
		isCharDevice: hardware.IsCharDevice,
		readModel:    hardware.Model,
		silence:      silencer.Silence,
		runDaemon:    runner.Run,
		startPPS:     ppsSvc.Start,
		stopPPS:      ppsSvc.Close,
	}
}

// detectSerialDevice returns the device path gpsd should attach to, or
// "" when no usable device exists. A USB CDC receiver wins; otherwise a
// supported Pi model falls back to the hardware UART. Overlay
// reconciliation failures propagate so the caller can apply the default
// device path.
func (a *agent) detectSerialDevice(ctx context.Context) (string, error) {
	if a.isCharDevice(a.cfg.ACMDevice) {
		log.Printf("usb cdc device detected at %s", a.cfg.ACMDevice)
		if err := a.controlUART(ctx, overlay.Disable); err != nil {
			return "", err
		}
		return a.cfg.ACMDevice, nil
	}

	log.Printf("usb cdc device not found, probing hardware uart support")
	model, err := a.readModel()
	if err != nil {
		// Unreadable model means unsupported hardware, not a fatal run.
		log.Printf("hardware probe failed: %v", err)
		return "", nil
	}
	matched, ok := hardware.MatchSupportedModel(model, a.cfg.SupportedModels)
	if !ok {
		log.Printf("hardware uart not supported, model=%q", model)
		return "", nil
	}

	log.Printf("detected supported model %q, falling back to uart at %s", matched, a.cfg.UARTDevice)
	if err := a.controlUART(ctx, overlay.Enable); err != nil {
		return "", err
	}
	return a.cfg.UARTDevice, nil
}

func (a *agent) run(ctx context.Context) int {
	device, err := a.detectSerialDevice(ctx)
	if err != nil {
		log.Printf("serial interface detection failed: %v", err)
		log.Printf("defaulting to %s", a.cfg.ACMDevice)
		device = a.cfg.ACMDevice
	}

	if device == "" {
		log.Printf("no usable gps device found, exiting in %s", a.cfg.ExitDelay)
		a.wait(ctx, a.cfg.ExitDelay.Std())
		return 0
	}

	// The getty only contends for the hardware UART.
	if device != a.cfg.ACMDevice {
		if err := a.silence(ctx); err != nil {
			log.Printf("console suppression failed: %v", err)
		}
	}

	if err := a.startPPS(ctx); err != nil {
		log.Printf("pps monitor unavailable: %v", err)
	}
	defer a.stopPPS()

	log.Printf("starting gpsd attached to %s", device)
	code, err := a.runDaemon(ctx, device)
	if err != nil {
		log.Printf("gpsd launch failed: %v", err)
		a.wait(ctx, a.cfg.ExitDelay.Std())
		return 1
	}
	if code != 0 {
		log.Printf("gpsd returned non-zero exit code %d, waiting %s before shutting down", code, a.cfg.ExitDelay)
		a.wait(ctx, a.cfg.ExitDelay.Std())
	}
	return code
}

func (a *agent) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
