// Package netwait blocks until a TCP dependency starts accepting
// connections. The bootstrap cannot proceed without mysql and (for
// letsencrypt) nginx, so exhausting the attempt budget is fatal to the
// whole run.
package netwait

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

const dialTimeout = 5 * time.Second

// Target is one dependency to wait for. Attempts and Interval bound the
// polling loop; there is no higher-level retry on top of this.
type Target struct {
	Name     string
	Host     string
	Port     int
	Attempts int
	Interval time.Duration
}

// Wait polls target with a TCP connect per attempt, sleeping Interval
// between attempts. It returns nil as soon as a connect succeeds and a
// descriptive error once the budget is spent or ctx is cancelled.
func Wait(ctx context.Context, t Target) error {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	slog.Info("waiting for "+t.Name, "addr", addr)

	dialer := net.Dialer{Timeout: dialTimeout}
	for attempt := 1; attempt <= t.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s at %s: %w", t.Name, addr, ctx.Err())
			case <-time.After(t.Interval):
			}
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			slog.Info(t.Name+" is ready", "addr", addr, "attempts", attempt)
			return nil
		}
		slog.Debug(t.Name+" not ready yet", "addr", addr, "attempt", attempt, "err", err)
	}

	return fmt.Errorf("%s at %s still unreachable after %d attempts", t.Name, addr, t.Attempts)
}
