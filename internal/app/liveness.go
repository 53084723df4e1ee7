package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunLiveness probes every connection on a fixed period and reaps the
// ones that failed to acknowledge the previous probe. This is the only
// detector for half-open transports; an unresponsive connection is gone
// within two periods.
func (b *Broker) RunLiveness(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.liveness").Msg("liveness monitor stopped")
			return
		case <-t.C:
			b.SweepLiveness()
		}
	}
}

// SweepLiveness runs one clear-then-probe cycle: stale connections get
// the same teardown as a client-initiated close, the rest are probed.
func (b *Broker) SweepLiveness() {
	stale, probes := b.Registry.StaleAndProbe()
	for _, snap := range stale {
		log.Warn().Str("module", "app.liveness").Str("sid", string(snap.SID)).Msg("connection unresponsive, closing")
		snap.Conn.Close()
		b.Disconnect(snap.SID)
	}
	for _, snap := range probes {
		if err := snap.Conn.Ping(); err != nil {
			log.Warn().Err(err).Str("module", "app.liveness").Str("sid", string(snap.SID)).Msg("probe send failed")
		}
	}
}
