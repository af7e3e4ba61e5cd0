package gpsd

// Package gpsd launches the GPS daemon bound to a detected serial
// device and blocks until it exits. The container engine is the process
// supervisor, so there is no restart loop here; the caller applies a
// fixed delay on failure to avoid rapid restart churn.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

type Config struct {
	// Command and Args form the daemon invocation; the device path is
	// appended as the final argument.
	Command string
	Args    []string

	// StderrTailLines bounds the retained stderr lines reported after a
	// failed run. MaxLineBytes limits any single retained line.
	StderrTailLines int
	MaxLineBytes    int
}

type Runner struct {
	cfg        Config
	stderrTail *logTail
}

func NewRunner(cfg Config) (*Runner, error) {
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Command == "" {
		return nil, fmt.Errorf("gpsd: command is required")
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = 50
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 16 * 1024
	}
	return &Runner{
		cfg:        cfg,
		stderrTail: newLogTail(cfg.StderrTailLines, cfg.MaxLineBytes),
	}, nil
}

// Run starts the daemon attached to device and waits for it to exit,
// returning its exit code. Context cancellation kills the process and
// is not reported as an error. A failure to launch at all is.
func (r *Runner) Run(ctx context.Context, device string) (int, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return 0, fmt.Errorf("gpsd: device is required")
	}

	args := append(append([]string{}, r.cfg.Args...), device)
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	// Bound teardown after cancellation: force-close the pipes if a
	// child of the daemon keeps them open past the kill.
	cmd.WaitDelay = time.Second

	// Let exec own the copy goroutines (via non-file writers) so
	// WaitDelay can force-close the child pipes even if a grandchild
	// keeps them open; explicit StdoutPipe/StderrPipe would not be
	// covered by WaitDelay.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return 0, fmt.Errorf("gpsd: start %s: %w", r.cfg.Command, err)
	}
	log.Printf("gpsd started pid=%d device=%s", cmd.Process.Pid, device)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.forwardLines(stdoutR, "stdout", nil)
	}()
	go func() {
		defer wg.Done()
		r.forwardLines(stderrR, "stderr", r.stderrTail)
	}()

	// Wait returns once the child's output has been fully copied into
	// the pipes above (or WaitDelay expired); closing the write ends
	// then lets the forwarding goroutines drain to EOF.
	waitErr := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()

	if ctx.Err() != nil {
		log.Printf("gpsd stopped: %v", ctx.Err())
		return 0, nil
	}
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("gpsd: wait: %w", waitErr)
}

// StderrTail returns the retained stderr lines from the last run.
func (r *Runner) StderrTail() []string {
	if r == nil {
		return nil
	}
	return r.stderrTail.snapshot()
}

func (r *Runner) forwardLines(pipe io.Reader, stream string, tail *logTail) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), r.cfg.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		log.Printf("gpsd %s: %s", stream, line)
		tail.add(line)
	}
	if err := scanner.Err(); err != nil {
		tail.add("[tail error] " + err.Error())
	}
}
