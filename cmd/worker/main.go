// cmd/worker/main.go
package main

import (
	"context"

	"github.com/unclebandit/campaign-dispatcher/internal/clock"
	"github.com/unclebandit/campaign-dispatcher/internal/config"
	"github.com/unclebandit/campaign-dispatcher/internal/dispatcher"
	"github.com/unclebandit/campaign-dispatcher/internal/lock"
	"github.com/unclebandit/campaign-dispatcher/internal/logging"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/sender"
	"github.com/unclebandit/campaign-dispatcher/internal/store/postgres"
)

// The worker consumes dispatch-trigger messages off the amqp queue
// and runs one Dispatcher.Run invocation per delivery (§4.5, §6's
// "Scheduler trigger"). Each invocation is itself bounded by
// dispatcher.Budget, so a single delivery never holds the consumer
// goroutine open indefinitely.
func main() {
	cfg := config.Load()
	log := logging.New(true)

	st, err := postgres.Open(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres store")
	}

	redisClient, err := lock.NewClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	campaignLock := lock.New(redisClient, cfg.CampaignLockTTL)

	snd := sender.New(cfg.SendEndpoint, sender.NewLimiter(cfg.SendRatePerSec, 1))

	disp := dispatcher.New(st, snd, clock.Real{}, log)
	disp.Locker = campaignLock

	conn, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("dial amqp")
	}
	defer conn.Close()

	publisher, err := queue.NewAMQPPublisher(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("open amqp publisher")
	}

	log.Info().Msg("worker running, waiting for dispatch triggers")
	err = publisher.Consume(context.Background(), triggerHandler(disp))
	if err != nil {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
}

// runner is the narrow dispatcher surface triggerHandler needs, so
// tests can substitute a fake without constructing a real Dispatcher.
type runner interface {
	Run(ctx context.Context, onlyCampaignID *int64) ([]dispatcher.CampaignResult, error)
}

// triggerHandler adapts one dispatch-trigger delivery into a single
// Dispatcher.Run invocation; any error bubbles up so the caller nacks
// and the broker redelivers.
func triggerHandler(disp runner) func(context.Context, queue.TriggerMessage) error {
	return func(ctx context.Context, msg queue.TriggerMessage) error {
		_, err := disp.Run(ctx, msg.CampaignID)
		return err
	}
}
