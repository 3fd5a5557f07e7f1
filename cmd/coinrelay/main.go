// Command coinrelay runs the reward-redemption automation API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quocanh-dev/coinrelay/pkg/browser/adapters/chrome"
	"github.com/quocanh-dev/coinrelay/pkg/config"
	"github.com/quocanh-dev/coinrelay/pkg/provider"
	"github.com/quocanh-dev/coinrelay/pkg/server"
)

func main() {
	configPath := flag.String("config", "coinrelay.yaml", "path to the YAML config file")
	listen := flag.String("listen", "", "listen address override")
	dev := flag.Bool("dev", false, "human-readable development logging")
	flag.Parse()

	log, err := buildLogger(*dev)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading config", zap.Error(err))
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	engine := chrome.NewEngine(chrome.Config{
		ChromePath: cfg.Browser.ChromePath,
		Headless:   cfg.Browser.HeadlessEnabled(),
	}, log)
	defer func() { _ = engine.Close() }()

	ttc := provider.NewTuongTacCheo(provider.Options{
		BaseURL:          cfg.Providers.TuongTacCheo.BaseURL,
		MinimumBalance:   cfg.Providers.TuongTacCheo.MinimumBalance,
		TransferFraction: cfg.Providers.TuongTacCheo.TransferFraction,
		Logger:           log,
	})
	tds := provider.NewTraoDoiSub(provider.Options{
		BaseURL:          cfg.Providers.TraoDoiSub.BaseURL,
		MinimumBalance:   cfg.Providers.TraoDoiSub.MinimumBalance,
		TransferFraction: cfg.Providers.TraoDoiSub.TransferFraction,
		Logger:           log,
	})

	srv := server.New(engine, ttc, tds, cfg, log)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Listen),
			zap.String("recipient", cfg.Recipient),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
