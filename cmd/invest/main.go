package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bitcoinuniversity/invest/internal/api"
	"github.com/bitcoinuniversity/invest/internal/cart"
	"github.com/bitcoinuniversity/invest/internal/checkout"
	"github.com/bitcoinuniversity/invest/internal/config"
	"github.com/bitcoinuniversity/invest/internal/database"
	"github.com/bitcoinuniversity/invest/internal/export"
	"github.com/bitcoinuniversity/invest/internal/invalidate"
	"github.com/bitcoinuniversity/invest/internal/ledger"
	"github.com/bitcoinuniversity/invest/internal/logging"
	"github.com/bitcoinuniversity/invest/internal/relay"
	"github.com/bitcoinuniversity/invest/internal/submit"
	"github.com/bitcoinuniversity/invest/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "invest",
		Usage: "Bitcoin University investment cart and batch checkout service",
		Before: func(c *cli.Context) error {
			logging.New(logging.Options{Service: "invest", Level: config.Load().LogLevel})
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations and exit",
				Action: migrate,
			},
			{
				Name:   "export",
				Usage:  "export recent receipts to the configured spreadsheet once",
				Action: exportOnce,
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("invest failed", "error", err)
		os.Exit(1)
	}
}

func migrate(c *cli.Context) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return runMigrations(c.Context, pool)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	return database.RunMigrations(ctx, pool, migrationsSub)
}

func exportOnce(c *cli.Context) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if !cfg.ExportEnabled() {
		return errors.New("no export destination configured (EXPORT_XLSX_PATH or GOOGLE_SHEETS_ID)")
	}

	pool, err := database.Connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	writer, err := newSheetWriter(c.Context, cfg)
	if err != nil {
		return err
	}

	ledgerSvc := ledger.NewService(ledger.NewPgRepository(pool), cfg.InvestmentsCacheTTL)
	n, err := export.NewService(ledgerSvc, writer).Export(c.Context)
	if err != nil {
		return err
	}
	slog.Info("receipts exported", "count", n)
	return nil
}

// newSheetWriter prefers Google Sheets over a local workbook. It returns nil
// when neither is configured.
// newSheetWriter prefers Google Sheets over a local workbook when both are configured.
func newSheetWriter(ctx context.Context, cfg config.Config) (export.SheetWriter, error) {
	switch {
	case !cfg.ExportEnabled():
		return nil, nil
	case cfg.GoogleSheetsID != "" && cfg.GoogleCredentialsJSON != "":
		w, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return export.NewXLSXWriter(cfg.ExportXLSXPath), nil
	}
}

func newCartPersister(cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client) (cart.Persister, error) {
	switch cfg.CartBackend {
	case config.CartBackendPostgres:
		if pool == nil {
			return nil, errors.New("CART_BACKEND=postgres requires DATABASE_URL")
		}
		return cart.NewPgPersister(pool), nil
	case config.CartBackendRedis:
		if rdb == nil {
			return nil, errors.New("CART_BACKEND=redis requires REDIS_ADDR")
		}
		return cart.NewRedisPersister(rdb, cfg.RedisCartTTL), nil
	default:
		return cart.NewMemoryPersister(), nil
	}
}

func serve(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := runMigrations(ctx, pool); err != nil {
			return err
		}
	} else {
		slog.Warn("DATABASE_URL not set, receipts are kept in memory only")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = database.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	persister, err := newCartPersister(cfg, pool, rdb)
	if err != nil {
		return err
	}
	carts := cart.NewStore(persister)

	var repo ledger.Repository = ledger.NewMemoryRepository()
	if pool != nil {
		repo = ledger.NewPgRepository(pool)
	}
	ledgerSvc := ledger.NewService(repo, cfg.InvestmentsCacheTTL)

	var (
		bus      checkout.Publisher
		redisBus *invalidate.RedisBus
	)
	if rdb != nil {
		redisBus = invalidate.NewRedisBus(rdb, ledgerSvc)
		bus = redisBus
	} else {
		bus = invalidate.NewLocal(ledgerSvc)
	}

	var (
		writer submit.ContractWriter
		prober submit.StatusProber
	)
	if !cfg.DemoMode() {
		client := relay.NewClient(relay.Options{
			BaseURL:       cfg.EngineURL,
			AccessToken:   cfg.EngineAccessToken,
			BackendWallet: cfg.EngineBackendWallet,
			Chain:         cfg.ChainID,
			MaxRetries:    cfg.EngineRetryMax,
			BaseDelay:     cfg.EngineRetryBaseDelay,
		})
		writer, prober = client, client
	}
	submitter := submit.New(writer, cfg.BatchContractAddress, cfg.DemoDelay)
	orch := checkout.NewOrchestrator(carts, submitter, ledgerSvc, bus)

	var exporter *export.Service
	if cfg.ExportEnabled() {
		sheetWriter, err := newSheetWriter(ctx, cfg)
		if err != nil {
			return err
		}
		exporter = export.NewService(ledgerSvc, sheetWriter)
	}

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, export endpoint is unprotected")
	}

	var handlerExporter api.Exporter
	if exporter != nil {
		handlerExporter = exporter
	}
	handler := api.NewHandler(carts, orch, ledgerSvc, prober, handlerExporter)
	srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort, "demo", cfg.DemoMode(), "cartBackend", cfg.CartBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return nil
	})

	if exporter != nil {
		g.Go(func() error {
			worker.NewExportWorker(exporter, cfg.ExportInterval).Run(gctx)
			return nil
		})
	}

	if redisBus != nil {
		g.Go(func() error {
			return redisBus.Listen(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
