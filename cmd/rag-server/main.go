package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/server"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var ingest stringsFlag
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragqa/config.yaml if not provided)")
	flag.Var(&ingest, "ingest", "Document path or glob to ingest at startup (repeatable)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := app.NewLogger(os.Stderr)
	a, err := app.Build(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble service: %v", err)
	}
	defer a.Close()

	if len(ingest) > 0 {
		if _, err := a.Service.IngestDocuments(ingest); err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
	}

	srv := server.New(a.Service, a.Cache, logger.With("component", "http"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}

type stringsFlag []string

func (f *stringsFlag) String() string { return "" }

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}
