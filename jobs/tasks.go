package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile recomputes running stock totals from the ledger.
	TaskStockReconcile = "inventory:stock_reconcile"
)

// StockReconcilePayload carries scheduling metadata.
type StockReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockReconcileTask constructs an Asynq task for a reconciliation pass.
// Scheduled runs build it with a zero time.
func NewStockReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
