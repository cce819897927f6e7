package adjustments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const adjustmentColumns = `id, ref_id, code, good_id, adjust_type, quantity_before, adjusted_quantity, quantity_after,
	reason_code, reason_text, notes, requested_by, status, approved_by, rejected_by, decision_note, decided_at,
	version, created_at, updated_at`

var sortColumns = map[string]string{
	SortByID:               "id",
	SortByCode:             "code",
	SortByCreatedAt:        "created_at",
	SortByAdjustedQuantity: "adjusted_quantity",
	SortByStatus:           "status",
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx runs fn in a read-committed transaction shared with the ledger.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: inventory.NewTxRepository(tx)})
	})
}

// GetByID retrieves an adjustment by ID.
func (r *repository) GetByID(ctx context.Context, id int64) (AdjustmentRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments WHERE id = $1`, id)
	adj, err := scanAdjustment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdjustmentRequest{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return AdjustmentRequest{}, db.Classify(err)
	}
	return adj, nil
}

// List retrieves one page of adjustments and the total match count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]AdjustmentRequest, int, error) {
	conds, args := listConditions(req, true)
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_adjustments`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	column, ok := sortColumns[req.SortBy]
	if !ok {
		column = "id"
	}
	dir := "DESC"
	if req.SortDir == shared.SortAsc {
		dir = "ASC"
	}
	args = append(args, req.Size, shared.Offset(req.Page, req.Size))
	query := fmt.Sprintf(`SELECT %s FROM stock_adjustments%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		adjustmentColumns, where, column, dir, dir, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()

	items := []AdjustmentRequest{}
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		items = append(items, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return items, total, nil
}

// CountByStatus counts adjustments per status under the search and good filter.
func (r *repository) CountByStatus(ctx context.Context, req ListRequest) (StatusCounts, error) {
	conds, args := listConditions(req, false)
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM stock_adjustments`+where+` GROUP BY status`, args...)
	if err != nil {
		return StatusCounts{}, db.Classify(err)
	}
	defer rows.Close()
	var counts StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, db.Classify(err)
		}
		counts.Add(Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, db.Classify(err)
	}
	return counts, nil
}

func listConditions(req ListRequest, withStatus bool) ([]string, []any) {
	var conds []string
	var args []any
	argPos := 1
	if req.Search != "" {
		conds = append(conds, fmt.Sprintf("code ILIKE $%d ESCAPE '\\'", argPos))
		args = append(args, "%"+escapeLike(req.Search)+"%")
		argPos++
	}
	if req.GoodID > 0 {
		conds = append(conds, fmt.Sprintf("good_id = $%d", argPos))
		args = append(args, req.GoodID)
		argPos++
	}
	if withStatus && req.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(req.Status))
	}
	return conds, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanAdjustment(row pgx.Row) (AdjustmentRequest, error) {
	var adj AdjustmentRequest
	var adjustType, reasonCode, status string
	err := row.Scan(
		&adj.ID, &adj.RefID, &adj.Code, &adj.GoodID, &adjustType,
		&adj.QuantityBefore, &adj.AdjustedQuantity, &adj.QuantityAfter,
		&reasonCode, &adj.Reason.Text, &adj.Notes, &adj.RequestedBy, &status,
		&adj.ApprovedBy, &adj.RejectedBy, &adj.DecisionNote, &adj.DecidedAt,
		&adj.Version, &adj.CreatedAt, &adj.UpdatedAt,
	)
	if err != nil {
		return AdjustmentRequest{}, err
	}
	adj.AdjustType = AdjustType(adjustType)
	adj.Reason.Code = ReasonCode(reasonCode)
	adj.Status = Status(status)
	return adj, nil
}
