package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"shelfd/internal/shelf"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getenvDefault("SHELFD_CONFIG", "/shelfd.yaml"), "path to shelfd.yaml")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := shelf.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	if cfg.Logging.Level != "" {
		lvl, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil {
			logger.Fatal().Str("level", cfg.Logging.Level).Err(err).Msg("parse log level")
		}
		logger = logger.Level(lvl)
	}

	svc, err := shelf.NewService(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init service")
	}
	defer svc.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Str("addr", addr).Err(err).Msg("listen")
	}

	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Msg("shelfd listening")
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
