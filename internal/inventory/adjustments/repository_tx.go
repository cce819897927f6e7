package adjustments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockledger/internal/inventory"
)

type txRepository struct {
	tx     pgx.Tx
	ledger inventory.TxRepository
}

// Ledger returns the ledger writes bound to the same transaction.
func (t *txRepository) Ledger() inventory.TxRepository {
	return t.ledger
}

// GetByID reads an adjustment inside the transaction.
func (t *txRepository) GetByID(ctx context.Context, id int64) (AdjustmentRequest, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments WHERE id = $1`, id)
	adj, err := scanAdjustment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdjustmentRequest{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return adj, err
}

// Insert stores a new adjustment and returns it with its id.
func (t *txRepository) Insert(ctx context.Context, adj AdjustmentRequest) (AdjustmentRequest, error) {
	query := `
		INSERT INTO stock_adjustments (
			ref_id, code, good_id, adjust_type, quantity_before, adjusted_quantity, quantity_after,
			reason_code, reason_text, notes, requested_by, status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		adj.RefID, adj.Code, adj.GoodID, string(adj.AdjustType), adj.QuantityBefore, adj.AdjustedQuantity, adj.QuantityAfter,
		string(adj.Reason.Code), adj.Reason.Text, adj.Notes, adj.RequestedBy, string(adj.Status), adj.Version, adj.CreatedAt, adj.UpdatedAt,
	).Scan(&adj.ID)
	if err != nil {
		return AdjustmentRequest{}, err
	}
	return adj, nil
}

// Update rewrites the editable fields while the row is still editable and at
// expectedVersion.
func (t *txRepository) Update(ctx context.Context, adj AdjustmentRequest, expectedVersion int) (bool, error) {
	query := `
		UPDATE stock_adjustments SET
			good_id = $1, adjust_type = $2, quantity_before = $3, adjusted_quantity = $4, quantity_after = $5,
			reason_code = $6, reason_text = $7, notes = $8, status = $9,
			approved_by = $10, rejected_by = $11, decision_note = $12, decided_at = $13,
			version = $14, updated_at = $15
		WHERE id = $16 AND version = $17 AND status IN ('PENDING', 'REJECTED')
	`
	tag, err := t.tx.Exec(ctx, query,
		adj.GoodID, string(adj.AdjustType), adj.QuantityBefore, adj.AdjustedQuantity, adj.QuantityAfter,
		string(adj.Reason.Code), adj.Reason.Text, adj.Notes, string(adj.Status),
		adj.ApprovedBy, adj.RejectedBy, adj.DecisionNote, adj.DecidedAt,
		adj.Version, adj.UpdatedAt,
		adj.ID, expectedVersion,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes an editable adjustment at expectedVersion.
func (t *txRepository) Delete(ctx context.Context, id int64, expectedVersion int) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM stock_adjustments WHERE id = $1 AND version = $2 AND status IN ('PENDING', 'REJECTED')`, id, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Decide flips a PENDING adjustment. Under READ COMMITTED a concurrent
// decider blocks on the row lock and then matches zero rows.
func (t *txRepository) Decide(ctx context.Context, id int64, expectedVersion int, d Decision) (bool, error) {
	query := `
		UPDATE stock_adjustments SET
			status = $1, approved_by = $2, rejected_by = $3, decision_note = $4, decided_at = $5,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7 AND status = 'PENDING'
	`
	tag, err := t.tx.Exec(ctx, query, string(d.Status), d.ApprovedBy, d.RejectedBy, d.Note, d.DecidedAt, id, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
