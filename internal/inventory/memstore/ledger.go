package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// LedgerRepository implements inventory.RepositoryPort and inventory.ReconcileStore.
type LedgerRepository struct {
	store *Store
}

var (
	_ inventory.RepositoryPort = (*LedgerRepository)(nil)
	_ inventory.ReconcileStore = (*LedgerRepository)(nil)
	_ inventory.TxRepository   = (*ledgerTx)(nil)
)

// WithTx runs fn in a serialised transaction.
func (r *LedgerRepository) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.store.update(func(st *state, j *journal) error {
		return fn(ctx, &ledgerTx{store: r.store, st: st, j: j})
	})
}

// GetBalance reads the running total of a good.
func (r *LedgerRepository) GetBalance(ctx context.Context, goodID int64) (inventory.Balance, bool, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Balance{}, false, err
	}
	var (
		bal   balance
		found bool
	)
	r.store.read(func(st *state) {
		bal, found = st.balances[goodID]
	})
	if !found {
		return inventory.Balance{}, false, nil
	}
	return inventory.NewBalance(goodID, bal.qty, bal.updatedAt), true, nil
}

// ListBalances pages through running totals ordered by good id.
func (r *LedgerRepository) ListBalances(ctx context.Context, filter inventory.BalanceFilter) ([]inventory.Balance, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var all []inventory.Balance
	r.store.read(func(st *state) {
		for goodID, bal := range st.balances {
			if filter.GoodID > 0 && goodID != filter.GoodID {
				continue
			}
			if filter.OnlyNegative && !bal.qty.IsNegative() {
				continue
			}
			all = append(all, inventory.NewBalance(goodID, bal.qty, bal.updatedAt))
		}
	})
	slices.SortFunc(all, func(a, b inventory.Balance) int { return cmp.Compare(a.GoodID, b.GoodID) })
	return page(all, filter.Page, filter.Size), len(all), nil
}

// ListTransactions returns one page of matching ledger entries.
func (r *LedgerRepository) ListTransactions(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.StockTransaction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var matched []inventory.StockTransaction
	r.store.read(func(st *state) {
		for _, e := range st.entries {
			if matchesLedger(e, filter, true) {
				matched = append(matched, e)
			}
		}
	})
	desc := filter.SortDir == shared.SortDesc
	slices.SortFunc(matched, func(a, b inventory.StockTransaction) int {
		var c int
		switch filter.SortBy {
		case inventory.SortByTransactionDate:
			c = a.TransactionDate.Compare(b.TransactionDate)
		case inventory.SortByQuantity:
			c = a.Quantity.Cmp(b.Quantity)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return page(matched, filter.Page, filter.Size), len(matched), nil
}

// CountTransactionsByType counts matching entries per type.
func (r *LedgerRepository) CountTransactionsByType(ctx context.Context, filter inventory.LedgerFilter) (inventory.TypeCounts, error) {
	if err := ctx.Err(); err != nil {
		return inventory.TypeCounts{}, err
	}
	var counts inventory.TypeCounts
	r.store.read(func(st *state) {
		for _, e := range st.entries {
			if matchesLedger(e, filter, false) {
				counts.Add(e.Type, 1)
			}
		}
	})
	return counts, nil
}

// ReconcileTotals folds the ledger and pairs it with the running totals.
// The fold runs on a snapshot outside the lock so writers are not held up.
func (r *LedgerRepository) ReconcileTotals(ctx context.Context) ([]inventory.GoodTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		entries  []inventory.StockTransaction
		counters map[int64]decimal.Decimal
	)
	r.store.read(func(st *state) {
		entries = st.entries[:len(st.entries):len(st.entries)]
		counters = make(map[int64]decimal.Decimal, len(st.balances))
		for goodID, bal := range st.balances {
			counters[goodID] = bal.qty
		}
	})
	folded := inventory.Fold(entries)
	totals := make([]inventory.GoodTotals, 0, len(counters))
	for goodID, qty := range folded {
		totals = append(totals, inventory.GoodTotals{GoodID: goodID, Counter: counters[goodID], Ledger: qty})
	}
	for goodID, counter := range counters {
		if _, ok := folded[goodID]; !ok {
			totals = append(totals, inventory.GoodTotals{GoodID: goodID, Counter: counter, Ledger: decimal.Zero})
		}
	}
	slices.SortFunc(totals, func(a, b inventory.GoodTotals) int { return cmp.Compare(a.GoodID, b.GoodID) })
	return totals, nil
}

type ledgerTx struct {
	store *Store
	st    *state
	j     *journal
}

func (t *ledgerTx) GoodExists(_ context.Context, goodID int64) (bool, error) {
	_, ok := t.st.goods[goodID]
	return ok, nil
}

func (t *ledgerTx) FindByIdempotencyKey(_ context.Context, key string) (inventory.StockTransaction, bool, error) {
	idx, ok := t.st.byKey[key]
	if !ok {
		return inventory.StockTransaction{}, false, nil
	}
	return t.st.entries[idx], true, nil
}

func (t *ledgerTx) InsertTransaction(_ context.Context, entry inventory.StockTransaction) (inventory.StockTransaction, error) {
	if err := t.store.takeFailure(); err != nil {
		return inventory.StockTransaction{}, err
	}
	if entry.IdempotencyKey != "" {
		if _, dup := t.st.byKey[entry.IdempotencyKey]; dup {
			return inventory.StockTransaction{}, fmt.Errorf("%w: %q", inventory.ErrDuplicateIdempotencyKey, entry.IdempotencyKey)
		}
	}
	if entry.SourceAdjustmentID != nil {
		if _, dup := t.st.bySource[*entry.SourceAdjustmentID]; dup {
			return inventory.StockTransaction{}, fmt.Errorf("%w: adjustment %d already posted", shared.ErrConflict, *entry.SourceAdjustmentID)
		}
	}
	saveCounter(t.j, &t.st.nextTxID)
	t.st.nextTxID++
	entry.ID = t.st.nextTxID
	if entry.SourceAdjustmentID != nil {
		source := *entry.SourceAdjustmentID
		entry.SourceAdjustmentID = &source
	}
	idx := t.st.appendEntry(t.j, entry)
	if entry.SourceAdjustmentID != nil {
		setKey(t.j, t.st.bySource, *entry.SourceAdjustmentID, idx)
	}
	if entry.IdempotencyKey != "" {
		setKey(t.j, t.st.byKey, entry.IdempotencyKey, idx)
	}
	return entry, nil
}

func (t *ledgerTx) AddToBalance(_ context.Context, goodID int64, delta decimal.Decimal, at time.Time) (inventory.Balance, error) {
	bal := t.st.balances[goodID]
	bal.qty = bal.qty.Add(delta)
	bal.updatedAt = at
	setKey(t.j, t.st.balances, goodID, bal)
	return inventory.NewBalance(goodID, bal.qty, bal.updatedAt), nil
}

func (t *ledgerTx) GetBalance(_ context.Context, goodID int64) (inventory.Balance, error) {
	bal := t.st.balances[goodID]
	return inventory.NewBalance(goodID, bal.qty, bal.updatedAt), nil
}

func matchesLedger(e inventory.StockTransaction, filter inventory.LedgerFilter, withType bool) bool {
	if filter.GoodID > 0 && e.GoodID != filter.GoodID {
		return false
	}
	if withType && filter.Type != "" && e.Type != filter.Type {
		return false
	}
	if !filter.From.IsZero() && e.TransactionDate.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && e.TransactionDate.After(filter.To) {
		return false
	}
	return true
}

func page[T any](items []T, pageNum, size int) []T {
	offset := shared.Offset(pageNum, size)
	_, size = shared.NormalizePage(pageNum, size)
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := offset + min(size, len(items)-offset)
	return slices.Clone(items[offset:end])
}
