package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/memstore"
)

const benchGoods = 50

func newBenchLedger(tb testing.TB) (*inventory.Service, *memstore.Store) {
	tb.Helper()
	store := memstore.New()
	for id := int64(1); id <= benchGoods; id++ {
		store.AddGood(memstore.Good{ID: id, Code: fmt.Sprintf("GD-%04d", id), Name: fmt.Sprintf("Good %d", id)})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return inventory.NewService(store.Ledger(), memstore.NewAudit(), logger), store
}

func syntheticEntries(n int) []inventory.StockTransaction {
	types := []inventory.TransactionType{inventory.TypeImport, inventory.TypeExport, inventory.TypeAdjustIncrease, inventory.TypeAdjustDecrease}
	entries := make([]inventory.StockTransaction, n)
	for i := range entries {
		entries[i] = inventory.StockTransaction{
			GoodID:   int64(i%benchGoods) + 1,
			Type:     types[i%len(types)],
			Quantity: decimal.NewFromInt(int64(i%17) + 1),
		}
	}
	return entries
}

func BenchmarkFold(b *testing.B) {
	entries := syntheticEntries(10_000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = inventory.Fold(entries)
	}
}

func BenchmarkAppend(b *testing.B) {
	svc, _ := newBenchLedger(b)
	ctx := context.Background()
	qty := decimal.NewFromInt(3)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		typ := inventory.TypeImport
		if i%2 == 1 {
			typ = inventory.TypeExport
		}
		if _, err := svc.Append(ctx, inventory.AppendInput{GoodID: int64(i%benchGoods) + 1, Type: typ, Quantity: qty}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkListLedger(b *testing.B) {
	svc, _ := newBenchLedger(b)
	ctx := context.Background()
	for i := 0; i < 5_000; i++ {
		_, err := svc.Append(ctx, inventory.AppendInput{GoodID: int64(i%benchGoods) + 1, Type: inventory.TypeImport, Quantity: decimal.NewFromInt(1)})
		require.NoError(b, err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.List(ctx, inventory.LedgerFilter{Page: 3, Size: 50}); err != nil {
			b.Fatal(err)
		}
	}
}

// Appending through the HTTP surface of the in-memory store must stay well
// inside interactive budgets.
func TestAppendLatencyBudget(t *testing.T) {
	svc, _ := newBenchLedger(t)
	r := chi.NewRouter()
	inventory.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, 100).MountRoutes(r)

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		body := fmt.Sprintf(`{"good_id":%d,"type":"IMPORT","quantity":2}`, i%benchGoods+1)
		req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader(body))
		rec := httptest.NewRecorder()
		start := time.Now()
		r.ServeHTTP(rec, req)
		samples = append(samples, time.Since(start))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	p95 := percentile95(samples)
	require.Less(t, p95, 50*time.Millisecond, "append p95=%s", p95)
}

func TestFoldMatchesRunningTotals(t *testing.T) {
	svc, store := newBenchLedger(t)
	ctx := context.Background()
	entries := syntheticEntries(2_000)
	for _, e := range entries {
		_, err := svc.Append(ctx, inventory.AppendInput{GoodID: e.GoodID, Type: e.Type, Quantity: e.Quantity})
		require.NoError(t, err)
	}

	report, err := inventory.NewReconciler(store.Ledger(), nil, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, benchGoods, report.GoodsChecked)
	require.Empty(t, report.Discrepancies)
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
