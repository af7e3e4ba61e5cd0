package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gpsd-agent/internal/balena"
	"gpsd-agent/internal/config"
	"gpsd-agent/internal/console"
	"gpsd-agent/internal/gpsd"
	"gpsd-agent/internal/overlay"
	"gpsd-agent/internal/pps"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "/etc/gpsd-agent.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("gpsd-agent starting")
	log.Printf("acm=%s uart=%s overlay=%s baud=%d", cfg.ACMDevice, cfg.UARTDevice, cfg.UARTOverlay, cfg.Console.Baud)

	// Remote config is best-effort: without it the agent degrades to the
	// default device path instead of aborting.
	var reconciler *overlay.Reconciler
	client, err := balena.NewClient(balena.Config{
		APIURL: cfg.Balena.APIURL,
		APIKey: cfg.Balena.APIKey,
	})
	if err != nil {
		log.Printf("remote config client unavailable: %v", err)
	} else {
		reconciler, err = overlay.NewReconciler(client, cfg.Balena.DeviceUUID, cfg.Balena.AppID, cfg.UARTOverlay)
		if err != nil {
			log.Printf("overlay reconciler unavailable: %v", err)
			reconciler = nil
		}
	}

	bus, err := console.NewSystemdManager()
	if err != nil {
		log.Printf("system bus unavailable: %v", err)
	}
	silencer, err := console.NewSilencer(bus, console.Config{
		Unit:   cfg.Console.Unit,
		Device: cfg.UARTDevice,
		Baud:   cfg.Console.Baud,
		Settle: cfg.Console.Settle.Std(),
	})
	if err != nil {
		log.Fatalf("console silencer init failed: %v", err)
	}

	runner, err := gpsd.NewRunner(gpsd.Config{Command: cfg.GPSD.Command, Args: cfg.GPSD.Args})
	if err != nil {
		log.Fatalf("gpsd runner init failed: %v", err)
	}

	ppsSvc := pps.New(pps.Config{Enable: cfg.PPS.Enable, Pin: cfg.PPS.Pin})

	a := newAgent(cfg, reconciler, silencer, runner, ppsSvc)
	code := a.run(ctx)

	log.Printf("gpsd-agent stopping")
	if code != 0 {
		os.Exit(code)
	}
}
