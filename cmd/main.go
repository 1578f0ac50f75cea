package main

import (
	"chainbridgex/internal/api"
	"chainbridgex/internal/config"
	"chainbridgex/internal/ledger"
	"chainbridgex/internal/storage"
	"chainbridgex/internal/wallet"
	"chainbridgex/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Node stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	store, err := storage.Open(cfg.Store.Backend, cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()

	miner := cfg.Wallet.MinerAddress
	if miner == "" {
		w, err := wallet.LoadOrCreate(cfg.Wallet.KeystorePath, cfg.Wallet.Password, log)
		if err != nil {
			return fmt.Errorf("load miner wallet: %w", err)
		}
		miner = w.Address
	}

	chain, err := ledger.Open(store, cfg.Chain.Difficulty,
		ledger.WithLogger(log),
		ledger.WithWorkers(cfg.Chain.Workers),
	)
	if err != nil {
		return fmt.Errorf("open chain: %w", err)
	}
	defer func() {
		if err := chain.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to flush pending transactions")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval := time.Duration(cfg.Store.FlushInterval); interval > 0 {
		go flushLoop(ctx, chain, interval, log)
	}

	router := api.NewRouter(api.NewAPI(chain, miner, time.Duration(cfg.Chain.MineTimeout), log), log)
	srv := &http.Server{
		Addr:         cfg.API.ListenAddr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.API.ReadTimeout),
		WriteTimeout: time.Duration(cfg.API.WriteTimeout),
		IdleTimeout:  time.Duration(cfg.API.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("miner", miner).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	return nil
}

func flushLoop(ctx context.Context, chain *ledger.Blockchain, interval time.Duration, log zerolog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := chain.FlushPending(); err != nil {
				log.Warn().Err(err).Msg("Failed to flush pending transactions")
			}
		}
	}
}
