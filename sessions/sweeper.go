package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes expired sessions from a Repo.
type Sweeper struct {
	repo     Repo
	interval time.Duration
}

func NewSweeper(repo Repo, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, interval: interval}
}

// Run sweeps every interval until ctx is done, then sweeps once more with a
// short detached deadline so shutdown leaves a clean keyspace.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			s.SweepOnce(finalCtx)
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and logs the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.repo.Sweep(ctx)
	if err != nil {
		log.Err(err).Msg("session sweep failed")
		return removed
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("expired sessions swept")
	}
	return removed
}
