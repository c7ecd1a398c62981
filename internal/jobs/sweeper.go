package jobs

import (
	"time"

	"github.com/rs/zerolog/log"
)

// SessionSweeper removes expired sessions and reports which were swept.
type SessionSweeper interface {
	SweepExpired() []string
}

// MembershipStore releases a session's relay membership.
type MembershipStore interface {
	DropSession(sessionID string)
}

// BlobStore releases a session's fallback blob.
type BlobStore interface {
	Delete(sessionID string)
}

// Sweeper periodically purges expired sessions from the registry and then
// clears the dependent relay and blob state for each swept identity. It
// runs beside the request paths; the stores do their own locking, so the
// sweep never holds up a create, relay or download.
type Sweeper struct {
	registry SessionSweeper
	hub      MembershipStore
	blobs    BlobStore
	interval time.Duration
	done     chan struct{}
}

func NewSweeper(registry SessionSweeper, hub MembershipStore, blobs BlobStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry: registry,
		hub:      hub,
		blobs:    blobs,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *Sweeper) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("session sweeper started")
}

func (j *Sweeper) Stop() {
	close(j.done)
	log.Info().Msg("session sweeper stopped")
}

func (j *Sweeper) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Sweeper) sweep() {
	swept := j.registry.SweepExpired()
	for _, sessionID := range swept {
		j.hub.DropSession(sessionID)
		j.blobs.Delete(sessionID)
	}

	if len(swept) > 0 {
		log.Info().Int("count", len(swept)).Msg("swept expired sessions")
	}
}
