package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/beacon/adapters/directory"
	"github.com/layer-3/beacon/adapters/events"
	"github.com/layer-3/beacon/adapters/postgres"
	"github.com/layer-3/beacon/adapters/ratelimit"
	"github.com/layer-3/beacon/adapters/store"
	"github.com/layer-3/beacon/config"
	"github.com/layer-3/beacon/ports"
	"github.com/layer-3/beacon/service"
	beaconhttp "github.com/layer-3/beacon/transport/http"
	"github.com/layer-3/beacon/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.MustLoad(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.URL)
	if err != nil {
		log.Error("failed to create postgres pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var (
		challenges ports.ChallengeStore
		sessions   ports.SessionStore
		limiter    ports.RateLimiter
		publisher  message.Publisher
	)

	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Error("failed to parse redis url", "err", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		challenges = store.NewRedisChallengeStore(client)
		sessions, err = store.NewRedisSessionStore(client, cfg.Session.TTL)
		if err != nil {
			log.Error("failed to create session store", "err", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewSlogLogger(log),
		)
		if err != nil {
			log.Error("failed to create event publisher", "err", err)
			os.Exit(1)
		}

	default:
		challenges = store.NewMemoryChallengeStore()
		sessions, err = store.NewMemorySessionStore(cfg.Session.TTL)
		if err != nil {
			log.Error("failed to create session store", "err", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(log))
	}

	eventPub := events.NewWatermillPublisher(publisher)

	blocks := service.NewBlockService(log)
	blocks.StartSweep()
	defer blocks.StopSweep()

	tracker := service.NewPresenceTracker()
	presence := service.NewPresenceService(tracker, blocks, postgres.NewFriendGraph(pool), log)

	bans := service.NewGlobalBanList(postgres.NewGlobalBanStore(pool), sessions, eventPub, log)
	if err := bans.Load(ctx); err != nil {
		log.Error("failed to load global bans", "err", err)
		os.Exit(1)
	}

	gate := service.NewAccessGate(
		postgres.NewRoomStore(pool),
		directory.NewHTTPDirectory(cfg.Directory.URL),
		bans,
		log,
	)

	auth := service.NewAuthService(challenges, sessions, blocks, eventPub, log)

	keeper := service.NewHousekeeper(challenges, sessions, limiter, gate, 0, log)
	keeper.Start()
	defer keeper.Stop()

	hub := ws.NewHub(presence, blocks, gate, limiter, eventPub,
		ws.NewRoomSubscriptions(), ws.NewDMSubscriptions(), log)

	handlers := beaconhttp.NewHandlers(auth, presence, gate, bans, hub)
	router := beaconhttp.SetupRouter(handlers, auth, limiter)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: router,
	}

	go func() {
		log.Info("beacon started", "addr", cfg.HTTP.Addr(), "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
}
