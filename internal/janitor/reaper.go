// Package janitor holds the two unsupervised background services: the
// stale-connection reaper and the inactivity auto-muter. Each runs on its
// own ticker with its own store session per tick, fully decoupled from
// request-scoped work; a failed tick is logged and the loop carries on.
package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/store"
)

// Reaper evicts presence records whose connection stopped pinging. Affected
// clients are simply no longer counted as present; a still-connected client
// recreates its record on the next ping. No live notification is sent.
type Reaper struct {
	factory  store.Factory
	interval time.Duration
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewReaper builds a reaper that removes connections whose last ping is
// older than timeout, checking every interval.
func NewReaper(factory store.Factory, interval, timeout time.Duration, logger *zerolog.Logger) *Reaper {
	return &Reaper{
		factory:  factory,
		interval: interval,
		timeout:  timeout,
		log:      logger,
	}
}

// Run loops until the context is cancelled. Cancellation is a normal stop,
// not an error.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().
		Dur("interval", r.interval).
		Dur("timeout", r.timeout).
		Msg("stale connection reaper started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stale connection reaper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	session, err := r.factory.Session(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("reaper: open store session")
		return
	}

	cutoff := time.Now().UTC().Add(-r.timeout)
	n, err := session.DeleteConnectionsPingedBefore(ctx, cutoff)
	if err != nil {
		r.log.Error().Err(err).Msg("reaper: delete stale connections")
		return
	}
	if n > 0 {
		r.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("reaped stale connections")
	}
}
