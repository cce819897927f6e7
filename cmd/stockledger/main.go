package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/cmd/stockledger/cli"
	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/adjustments"
	"github.com/odyssey-erp/stockledger/internal/inventory/memstore"
	"github.com/odyssey-erp/stockledger/internal/observability"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
	"github.com/odyssey-erp/stockledger/jobs"
)

// stores bundles the storage adapters selected by STORE_DRIVER.
type stores struct {
	ledger      inventory.RepositoryPort
	adjustments adjustments.Repository
	approvals   adjustments.ApprovalPort
	audit       inventory.AuditPort
	pinger      app.Pinger
	close       func()
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 2 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	inventoryService := inventory.NewService(st.ledger, st.audit, logger)
	adjustmentService := adjustments.NewService(st.adjustments, inventoryService, st.approvals, st.audit, logger)
	metrics := observability.NewMetrics()

	var jobHandler *jobs.Handler
	if redisClient, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, job endpoints disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Store:             st.pinger,
		InventoryHandler:  inventory.NewHandler(logger, inventoryService, cfg.MaxPageSize),
		AdjustmentHandler: adjustments.NewHandler(adjustmentService, logger, cfg.MaxPageSize),
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func openStores(ctx context.Context, cfg *app.Config, logger *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case app.StoreDriverMemory:
		store := memstore.New()
		for _, g := range demoGoods {
			store.AddGood(g)
		}
		logger.Warn("using in-memory store, data is lost on restart", slog.Int("goods", len(demoGoods)))
		return stores{
			ledger:      store.Ledger(),
			adjustments: store.Adjustments(),
			approvals:   memstore.NewApprovals(),
			audit:       memstore.NewAudit(),
			close:       func() {},
		}, nil
	case app.StoreDriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return stores{}, err
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return stores{}, err
			}
			logger.Info("database schema applied")
		}
		return stores{
			ledger:      inventory.NewRepository(pool),
			adjustments: adjustments.NewRepository(pool),
			approvals:   shared.NewApprovalRecorder(pool, logger),
			audit:       shared.NewAuditLogger(pool),
			pinger:      pool,
			close:       pool.Close,
		}, nil
	default:
		return stores{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	return jobsCLI.Run(ctx, args, func(line string) {
		fmt.Fprintln(os.Stdout, line)
	})
}

var demoGoods = []memstore.Good{
	{ID: 1, Code: "GD-0001", Name: "Gạo ST25 5kg"},
	{ID: 2, Code: "GD-0002", Name: "Nước mắm 500ml"},
	{ID: 3, Code: "GD-0003", Name: "Dầu ăn 1L"},
}
