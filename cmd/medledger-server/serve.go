package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/medledger/internal/grpcapi"
	"github.com/BrandonDHaskell/medledger/internal/httpapi"
	"github.com/BrandonDHaskell/medledger/internal/medledger/service"
	"github.com/BrandonDHaskell/medledger/internal/medledger/token"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
	"github.com/BrandonDHaskell/medledger/internal/metrics"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Printf("close backend: %v", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
	}

	// Token ids continue after the highest token a committed record holds.
	seed, err := service.TokenSeed(ctx, be.ledger, types.TokenID(cfg.TokenBase))
	if err != nil {
		return err
	}
	minter := token.NewLedger(seed)

	records := service.NewRecordService(be.ledger, minter, be.audit, service.Options{
		Logger:  logger,
		Metrics: m,
	})

	pruner := service.NewAuditPruner(be.audit, service.PrunerConfig{
		RetentionDays: cfg.AuditRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTPAddr,
		RecordService: records,
		Metrics:       m,
		CallerHeader:  cfg.CallerHeader,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("listening on %s (backend=%s env=%s)", cfg.HTTPAddr, cfg.Backend, cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var health *grpcapi.Server
	if cfg.GRPCAddr != "" {
		health = grpcapi.NewServer(cfg.GRPCAddr, logger)
		health.SetServing(true)
		g.Go(health.Start)
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if health != nil {
			health.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server error: %v", err)
		return err
	}
	return nil
}
