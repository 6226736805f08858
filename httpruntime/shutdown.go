package httpruntime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ListenAndServeUntilSignal runs s.Serve until SIGINT or SIGTERM is
// received, then cancels its context so Serve begins its drain
// sequence. If perSignalTimeout is positive (the per-signal timeout
// variant of graceful shutdown), a second signal, or perSignalTimeout
// elapsing after the first signal before Serve returns, makes it
// return nil at once rather than waiting out ShutdownDrain; Serve's
// drain keeps running in the background.
func ListenAndServeUntilSignal(parent context.Context, s *Server, perSignalTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case err := <-done:
		return err
	case <-sigCh:
		cancel()
	}

	if perSignalTimeout <= 0 {
		return <-done
	}

	select {
	case err := <-done:
		return err
	case <-time.After(perSignalTimeout):
		return nil
	case <-sigCh:
		return nil
	}
}
