package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper is the narrow store surface the stuck-sending janitor needs.
type Sweeper interface {
	SweepStuckSending(ctx context.Context, olderThan time.Duration) (int, error)
}

// SweepTrigger periodically runs the §7.4 janitor pass: message rows
// stuck in "sending" past olderThan (left behind by a crash between
// claim and terminal commit) are reset to "waiting" so a future
// dispatcher invocation can reclaim them.
type SweepTrigger struct {
	cron *cron.Cron
}

// NewSweepTrigger wires a cron schedule (e.g. "@every 1m") to sweep
// rows stuck in "sending" for longer than olderThan.
func NewSweepTrigger(spec string, store Sweeper, olderThan time.Duration, log zerolog.Logger) (*SweepTrigger, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := store.SweepStuckSending(context.Background(), olderThan)
		if err != nil {
			log.Error().Err(err).Msg("sweep stuck sending failed")
			return
		}
		if n > 0 {
			log.Info().Int("count", n).Msg("swept stuck sending messages back to waiting")
		}
	})
	if err != nil {
		return nil, err
	}
	return &SweepTrigger{cron: c}, nil
}

func (t *SweepTrigger) Start() { t.cron.Start() }
func (t *SweepTrigger) Stop()  { t.cron.Stop() }
