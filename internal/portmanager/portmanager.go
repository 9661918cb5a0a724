// Package portmanager answers port availability questions and proposes
// alternative ports when the desired one is taken.
package portmanager

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Probe timing constants.
const (
	// ListenProbeTimeout bounds a single dial-based probe.
	ListenProbeTimeout = 1 * time.Second

	// FreeWaitInitialInterval is the first retry delay when waiting for a
	// port to be released.
	FreeWaitInitialInterval = 100 * time.Millisecond
	FreeWaitMaxInterval     = 2 * time.Second
	freeWaitMultiplier      = 2.0
)

// IsAvailable reports whether a port can be bound right now.
//
// A failed probe resolves to false (treat as busy, the safe default); this
// never returns an error and is safe to call repeatedly and concurrently.
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	if err := listener.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close probe listener: %v\n", err)
	}
	return true
}

// IsListening reports whether something is accepting TCP connections on the
// port, bounded by ListenProbeTimeout.
func IsListening(port int) bool {
	address := fmt.Sprintf("localhost:%d", port)
	conn, err := net.DialTimeout("tcp", address, ListenProbeTimeout)
	if err != nil {
		return false
	}
	if err := conn.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close probe connection: %v\n", err)
	}
	return true
}

// WaitUntilFree blocks until the port can be bound, retrying with
// exponential backoff up to the given timeout.
func WaitUntilFree(ctx context.Context, port int, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout
	b.InitialInterval = FreeWaitInitialInterval
	b.MaxInterval = FreeWaitMaxInterval
	b.Multiplier = freeWaitMultiplier

	operation := func() error {
		if IsAvailable(port) {
			return nil
		}
		return fmt.Errorf("port %d still in use", port)
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// EphemeralPort asks the OS for any free TCP port.
func EphemeralPort() (int, error) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate ephemeral port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close probe listener: %v\n", err)
	}
	return port, nil
}
