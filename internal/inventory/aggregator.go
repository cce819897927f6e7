package inventory

import "github.com/shopspring/decimal"

// Fold computes quantity on hand per good from ledger entries. The result does
// not depend on the order of entries: the type alone fixes each sign.
func Fold(entries []StockTransaction) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal)
	for _, e := range entries {
		totals[e.GoodID] = totals[e.GoodID].Add(e.Type.Signed(e.Quantity))
	}
	return totals
}

// FoldGood computes quantity on hand of a single good.
func FoldGood(entries []StockTransaction, goodID int64) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.GoodID == goodID {
			total = total.Add(e.Type.Signed(e.Quantity))
		}
	}
	return total
}
