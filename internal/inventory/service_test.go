package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/memstore"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func newLedger(t *testing.T) (*inventory.Service, *memstore.Store, *memstore.Audit) {
	t.Helper()
	store := memstore.New()
	store.AddGood(memstore.Good{ID: 1, Code: "GD-1", Name: "Rice"})
	store.AddGood(memstore.Good{ID: 2, Code: "GD-2", Name: "Fish sauce"})
	audit := memstore.NewAudit()
	return inventory.NewService(store.Ledger(), audit, nil), store, audit
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func appendEntry(t *testing.T, svc *inventory.Service, goodID int64, typ inventory.TransactionType, qty string) inventory.AppendResult {
	t.Helper()
	res, err := svc.Append(context.Background(), inventory.AppendInput{GoodID: goodID, Type: typ, Quantity: dec(t, qty)})
	require.NoError(t, err)
	return res
}

func TestFoldIsOrderIndependent(t *testing.T) {
	entries := []inventory.StockTransaction{
		{GoodID: 1, Type: inventory.TypeImport, Quantity: decimal.RequireFromString("100")},
		{GoodID: 1, Type: inventory.TypeExport, Quantity: decimal.RequireFromString("30.5")},
		{GoodID: 1, Type: inventory.TypeAdjustIncrease, Quantity: decimal.RequireFromString("4")},
		{GoodID: 1, Type: inventory.TypeAdjustDecrease, Quantity: decimal.RequireFromString("10")},
		{GoodID: 2, Type: inventory.TypeExport, Quantity: decimal.RequireFromString("7")},
		{GoodID: 2, Type: inventory.TypeImport, Quantity: decimal.RequireFromString("2")},
	}
	want := inventory.Fold(entries)
	require.True(t, want[1].Equal(decimal.RequireFromString("63.5")))
	require.True(t, want[2].Equal(decimal.RequireFromString("-5")))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]inventory.StockTransaction(nil), entries...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := inventory.Fold(shuffled)
		require.Len(t, got, len(want))
		for goodID, qty := range want {
			require.True(t, got[goodID].Equal(qty), "good %d: %s != %s", goodID, got[goodID], qty)
		}
		require.True(t, inventory.FoldGood(shuffled, 1).Equal(want[1]))
	}
	require.True(t, inventory.FoldGood(nil, 1).IsZero())
}

func TestAppendKeepsCounterInStepWithLedger(t *testing.T) {
	svc, store, audit := newLedger(t)

	res := appendEntry(t, svc, 1, inventory.TypeImport, "1000")
	require.EqualValues(t, 1, res.Entry.ID)
	require.True(t, res.Balance.Qty.Equal(dec(t, "1000")))
	require.False(t, res.Balance.Negative)

	res = appendEntry(t, svc, 1, inventory.TypeExport, "250.25")
	require.True(t, res.Balance.Qty.Equal(dec(t, "749.75")))

	bal, err := svc.StockOf(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(dec(t, "749.75")))

	report, err := inventory.NewReconciler(store.Ledger(), nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies)
	require.Len(t, audit.Entries(), 2)
}

func TestAppendValidation(t *testing.T) {
	svc, _, _ := newLedger(t)
	cases := []struct {
		name  string
		input inventory.AppendInput
	}{
		{"missing good", inventory.AppendInput{Type: inventory.TypeImport, Quantity: decimal.NewFromInt(1)}},
		{"unknown type", inventory.AppendInput{GoodID: 1, Type: "TRANSFER", Quantity: decimal.NewFromInt(1)}},
		{"zero quantity", inventory.AppendInput{GoodID: 1, Type: inventory.TypeImport, Quantity: decimal.Zero}},
		{"negative quantity", inventory.AppendInput{GoodID: 1, Type: inventory.TypeExport, Quantity: decimal.NewFromInt(-3)}},
		{"unknown good", inventory.AppendInput{GoodID: 99, Type: inventory.TypeImport, Quantity: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Append(context.Background(), tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	page, err := svc.List(context.Background(), inventory.LedgerFilter{})
	require.NoError(t, err)
	require.Zero(t, page.Pagination.Total)
}

func TestAppendUnknownGoodIsValidationError(t *testing.T) {
	svc, _, _ := newLedger(t)
	_, err := svc.Append(context.Background(), inventory.AppendInput{GoodID: 42, Type: inventory.TypeImport, Quantity: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, inventory.ErrUnknownGood)
	require.Equal(t, "validation", shared.Kind(err))
}

func TestAppendAllowsNegativeBalance(t *testing.T) {
	svc, _, _ := newLedger(t)
	appendEntry(t, svc, 2, inventory.TypeImport, "5")
	res := appendEntry(t, svc, 2, inventory.TypeExport, "8")
	require.True(t, res.Balance.Qty.Equal(dec(t, "-3")))
	require.True(t, res.Balance.Negative)

	page, err := svc.Balances(context.Background(), inventory.BalanceFilter{OnlyNegative: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.EqualValues(t, 2, page.Items[0].GoodID)
}

func TestAppendIdempotencyKey(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()
	input := inventory.AppendInput{GoodID: 1, Type: inventory.TypeImport, Quantity: decimal.NewFromInt(10), IdempotencyKey: "po-77"}

	first, err := svc.Append(ctx, input)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := svc.Append(ctx, input)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Entry.ID, second.Entry.ID)
	require.True(t, second.Balance.Qty.Equal(decimal.NewFromInt(10)))

	input.Quantity = decimal.NewFromInt(11)
	_, err = svc.Append(ctx, input)
	require.ErrorIs(t, err, inventory.ErrIdempotencyMismatch)
	require.ErrorIs(t, err, shared.ErrConflict)

	bal, err := svc.StockOf(ctx, 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(decimal.NewFromInt(10)))
}

// lateCommitLedger hides committed idempotency keys from the next staleLookups
// lookups, which is what a transaction sees when a concurrent append with the
// same key commits between its lookup and its insert.
type lateCommitLedger struct {
	*memstore.LedgerRepository
	staleLookups int
}

func (l *lateCommitLedger) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return l.LedgerRepository.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		return fn(ctx, &lateCommitTx{TxRepository: tx, ledger: l})
	})
}

type lateCommitTx struct {
	inventory.TxRepository
	ledger *lateCommitLedger
}

func (t *lateCommitTx) FindByIdempotencyKey(ctx context.Context, key string) (inventory.StockTransaction, bool, error) {
	if t.ledger.staleLookups > 0 {
		t.ledger.staleLookups--
		return inventory.StockTransaction{}, false, nil
	}
	return t.TxRepository.FindByIdempotencyKey(ctx, key)
}

func TestAppendReplaysKeyCommittedConcurrently(t *testing.T) {
	_, store, audit := newLedger(t)
	ledger := &lateCommitLedger{LedgerRepository: store.Ledger()}
	svc := inventory.NewService(ledger, audit, nil)
	ctx := context.Background()
	input := inventory.AppendInput{GoodID: 1, Type: inventory.TypeImport, Quantity: decimal.NewFromInt(10), IdempotencyKey: "so-retry"}

	first, err := svc.Append(ctx, input)
	require.NoError(t, err)

	ledger.staleLookups = 1
	retry, err := svc.Append(ctx, input)
	require.NoError(t, err)
	require.True(t, retry.Replayed)
	require.Equal(t, first.Entry.ID, retry.Entry.ID)
	require.True(t, retry.Balance.Qty.Equal(decimal.NewFromInt(10)))

	ledger.staleLookups = 1
	changed := input
	changed.Quantity = decimal.NewFromInt(12)
	_, err = svc.Append(ctx, changed)
	require.ErrorIs(t, err, inventory.ErrIdempotencyMismatch)

	ledger.staleLookups = 2
	_, err = svc.Append(ctx, input)
	require.ErrorIs(t, err, inventory.ErrDuplicateIdempotencyKey)
	require.Equal(t, "conflict", shared.Kind(err))

	page, err := svc.List(ctx, inventory.LedgerFilter{GoodID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Total)
	bal, err := svc.StockOf(ctx, 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(decimal.NewFromInt(10)))
}

func TestAppendFailureLeavesNoTrace(t *testing.T) {
	svc, store, _ := newLedger(t)
	appendEntry(t, svc, 1, inventory.TypeImport, "10")

	store.FailNextAppend(fmt.Errorf("%w: disk full", shared.ErrPersistence))
	_, err := svc.Append(context.Background(), inventory.AppendInput{GoodID: 1, Type: inventory.TypeExport, Quantity: decimal.NewFromInt(4)})
	require.ErrorIs(t, err, shared.ErrPersistence)

	bal, err := svc.StockOf(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(decimal.NewFromInt(10)))
	page, err := svc.List(context.Background(), inventory.LedgerFilter{GoodID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Total)
}

func TestStockOfGoodWithoutEntries(t *testing.T) {
	svc, _, _ := newLedger(t)
	bal, err := svc.StockOf(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, bal.Qty.IsZero())
	require.False(t, bal.Negative)

	_, err = svc.StockOf(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListCountsIgnoreTypeFilterAndPaging(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		appendEntry(t, svc, 1, inventory.TypeImport, "10")
	}
	appendEntry(t, svc, 1, inventory.TypeExport, "1")
	appendEntry(t, svc, 1, inventory.TypeExport, "2")
	appendEntry(t, svc, 2, inventory.TypeImport, "9")

	page, err := svc.List(ctx, inventory.LedgerFilter{GoodID: 1, Type: inventory.TypeExport, Size: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, inventory.TypeExport, page.Items[0].Type)
	require.Equal(t, 2, page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.TotalPages)
	require.Equal(t, 3, page.Counts.Import)
	require.Equal(t, 2, page.Counts.Export)
	require.Equal(t, 5, page.Counts.All)

	again, err := svc.List(ctx, inventory.LedgerFilter{GoodID: 1, Size: 50})
	require.NoError(t, err)
	require.Equal(t, page.Counts, again.Counts)
}

func TestListSortingAndDateRange(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, qty := range []string{"5", "50", "20"} {
		_, err := svc.Append(ctx, inventory.AppendInput{
			GoodID:          1,
			Type:            inventory.TypeImport,
			Quantity:        dec(t, qty),
			TransactionDate: base.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, inventory.LedgerFilter{SortBy: inventory.SortByQuantity, SortDir: shared.SortDesc})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.True(t, page.Items[0].Quantity.Equal(dec(t, "50")))
	require.True(t, page.Items[2].Quantity.Equal(dec(t, "5")))

	page, err = svc.List(ctx, inventory.LedgerFilter{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 2)})
	require.NoError(t, err)
	require.Equal(t, 2, page.Pagination.Total)

	_, err = svc.List(ctx, inventory.LedgerFilter{From: base.AddDate(0, 0, 2), To: base})
	require.ErrorIs(t, err, inventory.ErrInvalidDateRange)
	_, err = svc.List(ctx, inventory.LedgerFilter{SortBy: "good_name"})
	require.ErrorIs(t, err, inventory.ErrInvalidSort)
	_, err = svc.List(ctx, inventory.LedgerFilter{Type: "TRANSFER"})
	require.True(t, errors.Is(err, shared.ErrValidation))
}
