// gqlmapd serves the GraphQL schema derived from an entity mapping.
//
//	GQLMAP_MAPPING=mapping.yaml GQLMAP_MIGRATE=true gqlmapd
//
// Configuration is read from GQLMAP_* environment variables and .env.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/internal/config"
	"github.com/syssam/gqlmap/internal/httpapi"
	"github.com/syssam/gqlmap/internal/logger"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()
	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "gqlmapd: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return err
	}
	defer drv.Close()
	if err := drv.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Dialect, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(drv.DB(), cfg.Dialect))
	metrics, err := sql.NewMetrics(reg)
	if err != nil {
		return err
	}
	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(cfg.SlowQuery),
		sql.WithLogger(log.Named("sql")),
		sql.WithMetrics(metrics),
	)
	srv, err := httpapi.New(reg,
		httpapi.WithLogger(log.Named("http")),
		httpapi.WithStats(stats.QueryStats()),
		httpapi.WithPlayground(cfg.Playground && !cfg.IsProduction()),
		httpapi.WithPretty(!cfg.IsProduction()),
	)
	if err != nil {
		return err
	}
	app := &app{cfg: cfg, drv: drv, stats: stats, srv: srv, log: log}
	if err := app.reload(ctx); err != nil {
		return err
	}
	if cfg.Watch {
		w, err := app.watch(ctx)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	hs := &http.Server{Addr: cfg.Addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return hs.Shutdown(shutdown)
}
