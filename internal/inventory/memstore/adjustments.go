package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/adjustments"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// AdjustmentRepository implements adjustments.Repository.
type AdjustmentRepository struct {
	store *Store
}

var (
	_ adjustments.Repository   = (*AdjustmentRepository)(nil)
	_ adjustments.TxRepository = (*adjustmentTx)(nil)
)

// WithTx runs fn in a serialised transaction shared with the ledger.
func (r *AdjustmentRepository) WithTx(ctx context.Context, fn func(context.Context, adjustments.TxRepository) error) error {
	return r.store.update(func(st *state, j *journal) error {
		return fn(ctx, &adjustmentTx{st: st, j: j, ledger: &ledgerTx{store: r.store, st: st, j: j}})
	})
}

// GetByID retrieves an adjustment by ID.
func (r *AdjustmentRepository) GetByID(ctx context.Context, id int64) (adjustments.AdjustmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return adjustments.AdjustmentRequest{}, err
	}
	var (
		adj   adjustments.AdjustmentRequest
		found bool
	)
	r.store.read(func(st *state) {
		adj, found = st.adjustments[id]
	})
	if !found {
		return adjustments.AdjustmentRequest{}, fmt.Errorf("%w: id %d", adjustments.ErrNotFound, id)
	}
	return adj, nil
}

// List retrieves one page of adjustments and the total match count.
func (r *AdjustmentRepository) List(ctx context.Context, req adjustments.ListRequest) ([]adjustments.AdjustmentRequest, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var matched []adjustments.AdjustmentRequest
	r.store.read(func(st *state) {
		for _, adj := range st.adjustments {
			if matchesAdjustment(adj, req, true) {
				matched = append(matched, adj)
			}
		}
	})
	desc := req.SortDir != shared.SortAsc
	slices.SortFunc(matched, func(a, b adjustments.AdjustmentRequest) int {
		var c int
		switch req.SortBy {
		case adjustments.SortByCode:
			c = strings.Compare(a.Code, b.Code)
		case adjustments.SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case adjustments.SortByAdjustedQuantity:
			c = a.AdjustedQuantity.Cmp(b.AdjustedQuantity)
		case adjustments.SortByStatus:
			c = strings.Compare(string(a.Status), string(b.Status))
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return page(matched, req.Page, req.Size), len(matched), nil
}

// CountByStatus counts adjustments per status under the search and good filter.
func (r *AdjustmentRepository) CountByStatus(ctx context.Context, req adjustments.ListRequest) (adjustments.StatusCounts, error) {
	if err := ctx.Err(); err != nil {
		return adjustments.StatusCounts{}, err
	}
	var counts adjustments.StatusCounts
	r.store.read(func(st *state) {
		for _, adj := range st.adjustments {
			if matchesAdjustment(adj, req, false) {
				counts.Add(adj.Status, 1)
			}
		}
	})
	return counts, nil
}

type adjustmentTx struct {
	st     *state
	j      *journal
	ledger *ledgerTx
}

func (t *adjustmentTx) Ledger() inventory.TxRepository {
	return t.ledger
}

func (t *adjustmentTx) GetByID(_ context.Context, id int64) (adjustments.AdjustmentRequest, error) {
	adj, ok := t.st.adjustments[id]
	if !ok {
		return adjustments.AdjustmentRequest{}, fmt.Errorf("%w: id %d", adjustments.ErrNotFound, id)
	}
	return adj, nil
}

func (t *adjustmentTx) Insert(_ context.Context, adj adjustments.AdjustmentRequest) (adjustments.AdjustmentRequest, error) {
	_, codeTaken := t.st.adjByCode[adj.Code]
	_, refTaken := t.st.adjByRef[adj.RefID]
	if codeTaken || refTaken {
		return adjustments.AdjustmentRequest{}, fmt.Errorf("%w: adjustment code %s already exists", shared.ErrConflict, adj.Code)
	}
	saveCounter(t.j, &t.st.nextAdjID)
	t.st.nextAdjID++
	adj.ID = t.st.nextAdjID
	setKey(t.j, t.st.adjustments, adj.ID, adj)
	setKey(t.j, t.st.adjByCode, adj.Code, adj.ID)
	setKey(t.j, t.st.adjByRef, adj.RefID, adj.ID)
	return adj, nil
}

func (t *adjustmentTx) Update(_ context.Context, adj adjustments.AdjustmentRequest, expectedVersion int) (bool, error) {
	current, ok := t.st.adjustments[adj.ID]
	if !ok || current.Version != expectedVersion || !current.Status.CanEdit() {
		return false, nil
	}
	adj.RefID = current.RefID
	adj.Code = current.Code
	adj.CreatedAt = current.CreatedAt
	setKey(t.j, t.st.adjustments, adj.ID, adj)
	return true, nil
}

func (t *adjustmentTx) Delete(_ context.Context, id int64, expectedVersion int) (bool, error) {
	current, ok := t.st.adjustments[id]
	if !ok || current.Version != expectedVersion || !current.Status.CanDelete() {
		return false, nil
	}
	deleteKey(t.j, t.st.adjustments, id)
	deleteKey(t.j, t.st.adjByCode, current.Code)
	deleteKey(t.j, t.st.adjByRef, current.RefID)
	return true, nil
}

func (t *adjustmentTx) Decide(_ context.Context, id int64, expectedVersion int, d adjustments.Decision) (bool, error) {
	current, ok := t.st.adjustments[id]
	if !ok || current.Version != expectedVersion || !current.Status.CanDecide() {
		return false, nil
	}
	decidedAt := d.DecidedAt
	current.Status = d.Status
	current.ApprovedBy = d.ApprovedBy
	current.RejectedBy = d.RejectedBy
	current.DecisionNote = d.Note
	current.DecidedAt = &decidedAt
	current.UpdatedAt = decidedAt
	current.Version++
	setKey(t.j, t.st.adjustments, id, current)
	return true, nil
}

func matchesAdjustment(adj adjustments.AdjustmentRequest, req adjustments.ListRequest, withStatus bool) bool {
	if req.Search != "" && !strings.Contains(strings.ToLower(adj.Code), strings.ToLower(req.Search)) {
		return false
	}
	if req.GoodID > 0 && adj.GoodID != req.GoodID {
		return false
	}
	if withStatus && req.Status != "" && adj.Status != req.Status {
		return false
	}
	return true
}
