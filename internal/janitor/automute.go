package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/store"
)

// MuteNotifier pushes a channel mute change to live subscribers. The hub
// implements it.
type MuteNotifier interface {
	NotifyChannelMuteChanged(channel string, muted bool)
}

// AutoMuter mutes channels whose creator has gone idle or fully offline.
// It only ever mutes; unmuting stays an explicit administrative action.
type AutoMuter struct {
	factory   store.Factory
	notifier  MuteNotifier
	interval  time.Duration
	threshold time.Duration
	log       *zerolog.Logger
}

// NewAutoMuter builds an auto-muter that checks every interval and mutes
// channels whose creator's freshest ping is older than threshold.
func NewAutoMuter(factory store.Factory, notifier MuteNotifier, interval, threshold time.Duration, logger *zerolog.Logger) *AutoMuter {
	return &AutoMuter{
		factory:   factory,
		notifier:  notifier,
		interval:  interval,
		threshold: threshold,
		log:       logger,
	}
}

// Run loops until the context is cancelled.
func (a *AutoMuter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info().
		Dur("interval", a.interval).
		Dur("threshold", a.threshold).
		Msg("inactivity auto-muter started")

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("inactivity auto-muter stopped")
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *AutoMuter) tick(ctx context.Context) {
	session, err := a.factory.Session(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("automute: open store session")
		return
	}

	channels, err := session.ListUnmutedChannels(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("automute: list channels")
		return
	}

	cutoff := time.Now().UTC().Add(-a.threshold)
	for _, ch := range channels {
		// One channel's failure must not abort the rest of the tick.
		if err := a.evaluate(ctx, session, ch, cutoff); err != nil {
			a.log.Error().Err(err).Str("channel", ch.Name).Msg("automute: evaluate channel")
		}
	}
}

func (a *AutoMuter) evaluate(ctx context.Context, session store.Store, ch *store.Channel, cutoff time.Time) error {
	latest, err := session.LatestConnectionByUsername(ctx, ch.CreatedBy)
	if err != nil {
		return err
	}
	if latest != nil && latest.LastPingAt.After(cutoff) {
		return nil // creator still active
	}

	if err := session.SetChannelMuted(ctx, ch.Name, true); err != nil {
		return err
	}
	a.notifier.NotifyChannelMuteChanged(ch.Name, true)
	a.log.Info().Str("channel", ch.Name).Str("creator", ch.CreatedBy).Msg("channel auto-muted, creator inactive")
	return nil
}
