package shared

// StockReconcileLockKey is the redis key held while a reconciliation pass runs.
const StockReconcileLockKey = "inventory:stock:reconcile:lock"
