/*
Package main is the entry point for the Campus Chat server.

It is responsible for loading configuration, initializing the global logging system,
opening the PostgreSQL pool and optional Redis presence mirror, starting the chat
Manager, setting up the HTTP server, and gracefully handling operating system
interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"campuschat/internal/app/chat"
	"campuschat/internal/app/db"
	"campuschat/internal/app/history"
	"campuschat/internal/app/moderation"
	"campuschat/internal/app/presence"
	"campuschat/internal/configs"
	"campuschat/internal/handler"
	"campuschat/internal/pkg/auth/jwt"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/metrics"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("send_buffer_size", cfg.SendBufferSize).
		Dur("match_max_wait", cfg.MatchMaxWait).
		Bool("redis_enabled", cfg.RedisURL != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	store := db.NewStore(pool)

	filter := moderation.NewFilter(store)
	if err := filter.Load(ctx); err != nil {
		logx.Fatal(err, "Failed to load block edges")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorder := history.NewRecorder(store, cfg.HistoryBuffer)

	opts := chat.Options{
		SendBufferSize:  cfg.SendBufferSize,
		MaxContentBytes: cfg.MaxContentBytes,
		Filter:          filter,
		History:         recorder,
		Metrics:         m,
		SweepInterval:   cfg.TicketSweepInterval,
		MaxWait:         cfg.MatchMaxWait,
	}

	deps := &handler.AppDeps{
		Config:     cfg,
		Verifier:   jwt.NewVerifier(cfg.JWTSecret),
		Moderation: filter,
		Gatherer:   reg,
	}

	var publisher *presence.RedisPublisher
	if cfg.RedisURL != "" {
		client, err := presence.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		defer client.Close()

		publisher = presence.NewRedisPublisher(client, presence.DefaultKey, cfg.InstanceID)
		opts.Presence = publisher
		deps.Presence = publisher
	}

	if opts.LastPairID, err = store.MaxPairRoomID(ctx); err != nil {
		logx.Fatal(err, "Failed to resume pair room ids")
	}

	// Initialize Chat Manager
	manager := chat.NewManager(opts)
	deps.Manager = manager

	rooms, err := store.ListRooms(ctx)
	if err != nil {
		logx.Fatal(err, "Failed to load rooms")
	}
	for _, info := range rooms {
		manager.AddRoom(info)
	}
	logx.Info("Durable rooms loaded.", "count", len(rooms))

	// Setup HTTP server and routes
	router, stopLimiters := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Campus Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	stopLimiters()
	manager.Shutdown()
	recorder.Close()
	if publisher != nil {
		publisher.Close()
	}

	logx.Info("Server gracefully stopped.", "history_dropped", recorder.Dropped())
}
