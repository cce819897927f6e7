package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists the ledger and running totals in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger writes to an open transaction so other modules
// can append inside their own atomic unit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// idempotencyKeyConstraint is PostgreSQL's name for the UNIQUE on
// stock_transactions.idempotency_key.
const idempotencyKeyConstraint = "stock_transactions_idempotency_key_key"

const transactionColumns = `id, good_id, tx_type, quantity, transaction_date, contract_ref, source_adjustment_id, COALESCE(idempotency_key, ''), created_by, notes, created_at`

var sortColumns = map[string]string{
	SortByID:              "id",
	SortByTransactionDate: "transaction_date",
	SortByQuantity:        "quantity",
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBalance reads the running total of a good.
func (r *Repository) GetBalance(ctx context.Context, goodID int64) (Balance, bool, error) {
	var qty decimal.Decimal
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT qty, updated_at FROM stock_balances WHERE good_id=$1`, goodID).Scan(&qty, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, db.Classify(err)
	}
	return NewBalance(goodID, qty, updatedAt), true, nil
}

// ListBalances pages through stock_balances ordered by good id.
func (r *Repository) ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, int, error) {
	var conds []string
	var args []any
	if filter.GoodID > 0 {
		args = append(args, filter.GoodID)
		conds = append(conds, fmt.Sprintf("good_id = $%d", len(args)))
	}
	if filter.OnlyNegative {
		conds = append(conds, "qty < 0")
	}
	where := whereClause(conds)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_balances`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	args = append(args, filter.Size, shared.Offset(filter.Page, filter.Size))
	query := fmt.Sprintf(`SELECT good_id, qty, updated_at FROM stock_balances%s ORDER BY good_id ASC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	balances := []Balance{}
	for rows.Next() {
		var goodID int64
		var qty decimal.Decimal
		var updatedAt time.Time
		if err := rows.Scan(&goodID, &qty, &updatedAt); err != nil {
			return nil, 0, db.Classify(err)
		}
		balances = append(balances, NewBalance(goodID, qty, updatedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return balances, total, nil
}

// ListTransactions returns one page of ledger entries and the total match count.
func (r *Repository) ListTransactions(ctx context.Context, filter LedgerFilter) ([]StockTransaction, int, error) {
	conds, args := ledgerConditions(filter, true)
	where := whereClause(conds)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "id"
	}
	dir := "ASC"
	if filter.SortDir == shared.SortDesc {
		dir = "DESC"
	}
	args = append(args, filter.Size, shared.Offset(filter.Page, filter.Size))
	query := fmt.Sprintf(`SELECT %s FROM stock_transactions%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		transactionColumns, where, column, dir, dir, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	entries := []StockTransaction{}
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return entries, total, nil
}

// CountTransactionsByType counts matching entries per type.
func (r *Repository) CountTransactionsByType(ctx context.Context, filter LedgerFilter) (TypeCounts, error) {
	conds, args := ledgerConditions(filter, false)
	rows, err := r.pool.Query(ctx, `SELECT tx_type, COUNT(*) FROM stock_transactions`+whereClause(conds)+` GROUP BY tx_type`, args...)
	if err != nil {
		return TypeCounts{}, db.Classify(err)
	}
	defer rows.Close()
	var counts TypeCounts
	for rows.Next() {
		var txType string
		var n int
		if err := rows.Scan(&txType, &n); err != nil {
			return TypeCounts{}, db.Classify(err)
		}
		counts.Add(TransactionType(txType), n)
	}
	if err := rows.Err(); err != nil {
		return TypeCounts{}, db.Classify(err)
	}
	return counts, nil
}

// ReconcileTotals folds the full ledger per good and joins the running totals
// in a single statement, so both sides come from the same snapshot.
func (r *Repository) ReconcileTotals(ctx context.Context) ([]GoodTotals, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(l.good_id, b.good_id), COALESCE(b.qty, 0), COALESCE(l.total, 0)
FROM (
	SELECT good_id,
	       SUM(CASE WHEN tx_type IN ('IMPORT','ADJUST_INCREASE') THEN quantity ELSE -quantity END) AS total
	FROM stock_transactions
	GROUP BY good_id
) l
FULL OUTER JOIN stock_balances b ON b.good_id = l.good_id
ORDER BY 1`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	totals := []GoodTotals{}
	for rows.Next() {
		var t GoodTotals
		if err := rows.Scan(&t.GoodID, &t.Counter, &t.Ledger); err != nil {
			return nil, db.Classify(err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return totals, nil
}

func (r *txRepository) GoodExists(ctx context.Context, goodID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM goods WHERE id=$1)`, goodID).Scan(&exists)
	return exists, err
}

func (r *txRepository) FindByIdempotencyKey(ctx context.Context, key string) (StockTransaction, bool, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM stock_transactions WHERE idempotency_key=$1`, key)
	entry, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockTransaction{}, false, nil
	}
	if err != nil {
		return StockTransaction{}, false, err
	}
	return entry, true, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, entry StockTransaction) (StockTransaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transactions (good_id, tx_type, quantity, transaction_date, contract_ref, source_adjustment_id, idempotency_key, created_by, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		entry.GoodID, string(entry.Type), entry.Quantity, entry.TransactionDate, entry.ContractRef,
		entry.SourceAdjustmentID, nullString(entry.IdempotencyKey), entry.CreatedBy, entry.Notes, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		switch constraint := db.UniqueConstraint(err); {
		case constraint == idempotencyKeyConstraint:
			return StockTransaction{}, fmt.Errorf("%w: %w", ErrDuplicateIdempotencyKey, err)
		case constraint != "":
			return StockTransaction{}, fmt.Errorf("%w: ledger entry already recorded: %w", shared.ErrConflict, err)
		}
		return StockTransaction{}, err
	}
	return entry, nil
}

func (r *txRepository) AddToBalance(ctx context.Context, goodID int64, delta decimal.Decimal, at time.Time) (Balance, error) {
	var qty decimal.Decimal
	var updatedAt time.Time
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_balances (good_id, qty, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (good_id) DO UPDATE SET qty = stock_balances.qty + EXCLUDED.qty, updated_at = EXCLUDED.updated_at
RETURNING qty, updated_at`, goodID, delta, at).Scan(&qty, &updatedAt)
	if err != nil {
		return Balance{}, err
	}
	return NewBalance(goodID, qty, updatedAt), nil
}

func (r *txRepository) GetBalance(ctx context.Context, goodID int64) (Balance, error) {
	var qty decimal.Decimal
	var updatedAt time.Time
	err := r.tx.QueryRow(ctx, `SELECT qty, updated_at FROM stock_balances WHERE good_id=$1`, goodID).Scan(&qty, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewBalance(goodID, decimal.Zero, time.Time{}), nil
	}
	if err != nil {
		return Balance{}, err
	}
	return NewBalance(goodID, qty, updatedAt), nil
}

func ledgerConditions(filter LedgerFilter, withType bool) ([]string, []any) {
	var conds []string
	var args []any
	if filter.GoodID > 0 {
		args = append(args, filter.GoodID)
		conds = append(conds, fmt.Sprintf("good_id = $%d", len(args)))
	}
	if withType && filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("tx_type = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("transaction_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("transaction_date <= $%d", len(args)))
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func scanTransaction(row pgx.Row) (StockTransaction, error) {
	var entry StockTransaction
	var txType string
	err := row.Scan(&entry.ID, &entry.GoodID, &txType, &entry.Quantity, &entry.TransactionDate, &entry.ContractRef,
		&entry.SourceAdjustmentID, &entry.IdempotencyKey, &entry.CreatedBy, &entry.Notes, &entry.CreatedAt)
	if err != nil {
		return StockTransaction{}, err
	}
	entry.Type = TransactionType(txType)
	return entry, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
