package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lirancohen/questengine/internal/auth"
	"github.com/lirancohen/questengine/internal/config"
	"github.com/lirancohen/questengine/internal/daemon"
	"github.com/lirancohen/questengine/internal/eventprocessor"
	"github.com/lirancohen/questengine/internal/eventqueue"
	"github.com/lirancohen/questengine/internal/httpapi"
	"github.com/lirancohen/questengine/internal/rewarddispatcher"
	"github.com/lirancohen/questengine/internal/rpcsession"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/updatechannel"
)

var version = "0.1.0-dev"

func main() {
	dataDir := flag.String("data-dir", ".", "Directory for the database, JWT keys, and PID file")
	daemonize := flag.Bool("daemon", false, "Write a PID file for the life of the process (the process stays in the foreground)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("questengine v%s\n", version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "questengine")

	if *daemonize {
		pidFile := daemon.NewPIDFile(*dataDir, "questengine")
		if err := pidFile.Write(); err != nil {
			logger.Error("write pid file", "error", err)
			os.Exit(1)
		}
		defer pidFile.Remove()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	queue, err := eventqueue.New(cfg.RedisURL, cfg.EventQueueKey)
	if err != nil {
		logger.Error("open event queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	channel, err := updatechannel.NewRedisChannel(cfg.RedisURL)
	if err != nil {
		logger.Error("open update channel", "error", err)
		os.Exit(1)
	}
	defer channel.Close()

	jwtKeys, err := auth.EnsureJWTKeyPair(*dataDir)
	if err != nil {
		logger.Error("load jwt keys", "error", err)
		os.Exit(1)
	}
	tokenConfig := &auth.TokenConfig{
		Issuer:       "questengine",
		ExpiryHours:  24,
		SigningKey:   jwtKeys.PrivateKey,
		VerifyingKey: jwtKeys.PublicKey,
	}

	rewards := rewarddispatcher.New(st, nil, logger.With("component", "rewarddispatcher"))
	processor := eventprocessor.New(queue, st, channel, rewards, logger.With("component", "eventprocessor"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processorErrCh := make(chan error, 1)
	go func() {
		processorErrCh <- processor.Run(ctx)
	}()

	httpSrv := httpapi.NewServer(httpapi.Config{
		Store:              st,
		Queue:              queue,
		Channel:            channel,
		TokenConfig:        tokenConfig,
		MetricsBearerToken: cfg.MetricsBearerToken,
		Logger:             logger.With("component", "httpapi"),
	})
	httpServer := &http.Server{Addr: ":" + cfg.HTTPServerPort, Handler: httpSrv.Handler()}

	rpcSrv := rpcsession.NewServer(st, queue, channel, logger.With("component", "rpcsession"))
	wsServer := &http.Server{Addr: ":" + cfg.WSServerPort, Handler: rpcSrv}

	serverErrCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("rpc session server listening", "addr", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("rpc session server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrCh:
		logger.Error("server error", "error", err)
	case err := <-processorErrCh:
		logger.Error("event processor stopped", "error", err)
	case sig := <-quit:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc session server shutdown", "error", err)
	}

	logger.Info("questengine stopped")
}
