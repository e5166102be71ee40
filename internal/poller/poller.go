package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// EnqueueFunc hands one tick to the effect dispatcher. It reports whether the
// tick was accepted.
type EnqueueFunc func(ctx context.Context) bool

// Poller drives the effect engine at a fixed period. It does not touch the
// engine itself; every tick is handed off through the enqueue function so a
// single goroutine performs all engine work.
type Poller struct {
	period  time.Duration
	enqueue EnqueueFunc
}

// New creates a poller with the given tick period.
func New(period time.Duration, enqueue EnqueueFunc) *Poller {
	return &Poller{
		period:  period,
		enqueue: enqueue,
	}
}

// Run ticks until the context is cancelled. Ticks that cannot be queued are
// dropped with a warning; effect timing then slips by whole periods rather
// than bunching up.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	log.Info().Dur("period", p.period).Msg("Starting effect poller")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Effect poller stopped")
			return
		case <-ticker.C:
			if !p.enqueue(ctx) {
				log.Debug().Msg("Dropped poll tick, dispatcher busy")
			}
		}
	}
}
