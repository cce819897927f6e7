package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// DefaultReconcileLockTTL bounds how long a crashed pass can block the next one.
const DefaultReconcileLockTTL = 10 * time.Minute

// StockReconciler runs one read-only reconciliation pass.
type StockReconciler interface {
	Run(ctx context.Context) (inventory.ReconcileReport, error)
}

// StockReconcileJob compares running totals with the ledger. A redis lock
// keeps two workers from reconciling at the same time.
type StockReconcileJob struct {
	Reconciler StockReconciler
	Redis      redis.UniversalClient
	LockTTL    time.Duration
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStockReconcileJob initialises the reconciliation handler.
func NewStockReconcileJob(reconciler StockReconciler, rdb redis.UniversalClient, lockTTL time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	if lockTTL <= 0 {
		lockTTL = DefaultReconcileLockTTL
	}
	return &StockReconcileJob{Reconciler: reconciler, Redis: rdb, LockTTL: lockTTL, Logger: logger, Metrics: metrics}
}

// Handle executes one pass.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if j.Redis != nil {
		lock, err := cache.TryLock(ctx, j.Redis, shared.StockReconcileLockKey, j.LockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			logger.Info("stock reconcile skipped, another pass is running")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release stock reconcile lock", slog.Any("error", err))
			}
		}()
	}

	report, err := j.Reconciler.Run(ctx)
	if err != nil {
		return err
	}
	if len(report.Discrepancies) > 0 {
		logger.Warn("stock reconcile found discrepancies",
			slog.Int("discrepancies", len(report.Discrepancies)),
			slog.Int("goods_checked", report.GoodsChecked))
	}
	return nil
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default().With(slog.String("job", TaskStockReconcile))
	}
	return j.Logger.With(slog.String("job", TaskStockReconcile))
}
