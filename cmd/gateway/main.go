package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"openacs/gateway/internal/access"
	"openacs/gateway/internal/auth"
	"openacs/gateway/internal/config"
	"openacs/gateway/internal/core"
	"openacs/gateway/internal/feedback"
	"openacs/gateway/internal/hardware"
	"openacs/gateway/internal/logging"
	"openacs/gateway/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "optional TOML config file")
	flag.Parse()

	log := logging.New("acs-gateway")
	log.Info().Msg("starting rpleth gateway")

	cfg := config.Load()
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			log.Fatal().Err(err).Msg("load config file")
		}
	}
	log.Info().Str("id", cfg.GatewayID).Int("port", cfg.ListenPort).Msg("configuration loaded")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
		DB:   0,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("connect to redis")
	}
	defer redisClient.Close()
	log.Info().Str("addr", cfg.RedisURL).Msg("connected to redis")

	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to nats")
	}
	defer natsConn.Close()
	log.Info().Str("url", cfg.NATSURL).Msg("connected to nats")

	// The hardware module owns real drivers; the gateway resolves its
	// configured device names against the registry and falls back to
	// log-backed devices on development rigs.
	registry := hardware.NewRegistry()
	if cfg.GreenLedName != "" {
		registry.Register(hardware.NewLogDevice(cfg.GreenLedName, log))
	}
	if cfg.BuzzerName != "" {
		registry.Register(hardware.NewLogDevice(cfg.BuzzerName, log))
	}
	led, _ := registry.Lookup(cfg.GreenLedName)
	buzzer, _ := registry.Lookup(cfg.BuzzerName)

	fb := feedback.NewController(led, buzzer, log)
	queue := access.NewQueue()
	bridge := core.NewBridge(cfg.GatewayID, natsConn, redisClient, log)
	defer bridge.Close()

	srv := server.New(cfg, queue, fb, bridge, log)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("start rpleth server")
	}

	authSvc := auth.NewService(queue, fb, bridge, bridge, log)
	if err := bridge.SubscribeAuthRequests(authSvc); err != nil {
		log.Fatal().Err(err).Msg("subscribe auth requests")
	}
	if err := bridge.SubscribeDownlink(fb); err != nil {
		log.Fatal().Err(err).Msg("subscribe downlink")
	}

	log.Info().Msg("gateway started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-srv.Done():
		log.Error().Err(srv.Err()).Msg("rpleth server died")
		srv.Stop()
		os.Exit(1)
	}

	srv.Stop()
	log.Info().Msg("gateway stopped")
}
