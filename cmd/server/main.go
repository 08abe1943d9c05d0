// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/clock"
	"github.com/unclebandit/campaign-dispatcher/internal/command"
	"github.com/unclebandit/campaign-dispatcher/internal/config"
	"github.com/unclebandit/campaign-dispatcher/internal/dispatcher"
	"github.com/unclebandit/campaign-dispatcher/internal/httpapi"
	"github.com/unclebandit/campaign-dispatcher/internal/lock"
	"github.com/unclebandit/campaign-dispatcher/internal/logging"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/sender"
	"github.com/unclebandit/campaign-dispatcher/internal/store/postgres"
)

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
	publisher, err := queue.NewAMQPPublisher(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("open amqp publisher")
	}

	commands := command.New(st, &queue.CommandTrigger{Publisher: publisher})

	periodic, err := queue.NewPeriodicTrigger(cfg.DispatchCronSpec, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule periodic dispatch trigger")
	}
	periodic.Start()
	defer periodic.Stop()

	sweeper, err := queue.NewSweepTrigger(cfg.SweepCronSpec, st, cfg.StuckSendingAfter, log)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule stuck-sending sweep")
	}
	sweeper.Start()
	defer sweeper.Stop()

	api := &httpapi.API{Store: st, Commands: commands, Dispatcher: disp, Log: log}
	router := httpapi.NewRouter(api)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: dispatcher.Budget + 15*time.Second,
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
