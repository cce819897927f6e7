package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// TransactionType enumerates the kinds of stock-affecting events.
type TransactionType string

const (
	// TypeImport is goods received, e.g. from a purchase contract.
	TypeImport TransactionType = "IMPORT"
	// TypeExport is goods shipped out, e.g. for a sales contract.
	TypeExport TransactionType = "EXPORT"
	// TypeAdjustIncrease is written by an approved INCREASE adjustment.
	TypeAdjustIncrease TransactionType = "ADJUST_INCREASE"
	// TypeAdjustDecrease is written by an approved DECREASE adjustment.
	TypeAdjustDecrease TransactionType = "ADJUST_DECREASE"
)

// TransactionTypes lists every valid type in display order.
var TransactionTypes = []TransactionType{TypeImport, TypeExport, TypeAdjustIncrease, TypeAdjustDecrease}

// IsValid reports whether t is one of the four ledger kinds.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeImport, TypeExport, TypeAdjustIncrease, TypeAdjustDecrease:
		return true
	default:
		return false
	}
}

// IsInbound reports whether t adds to stock.
func (t TransactionType) IsInbound() bool {
	return t == TypeImport || t == TypeAdjustIncrease
}

// Signed returns qty with the sign implied by t.
func (t TransactionType) Signed(qty decimal.Decimal) decimal.Decimal {
	if t.IsInbound() {
		return qty
	}
	return qty.Neg()
}

// StockTransaction is one immutable ledger entry.
type StockTransaction struct {
	ID                 int64           `json:"id"`
	GoodID             int64           `json:"good_id"`
	Type               TransactionType `json:"type"`
	Quantity           decimal.Decimal `json:"quantity"`
	TransactionDate    time.Time       `json:"transaction_date"`
	ContractRef        string          `json:"contract_ref,omitempty"`
	SourceAdjustmentID *int64          `json:"source_adjustment_id,omitempty"`
	IdempotencyKey     string          `json:"idempotency_key,omitempty"`
	CreatedBy          int64           `json:"created_by"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Balance is the aggregated quantity on hand of one good. Negative is a
// warning for callers, never a rejection.
type Balance struct {
	GoodID    int64           `json:"good_id"`
	Qty       decimal.Decimal `json:"qty"`
	Negative  bool            `json:"negative"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// NewBalance builds a Balance and derives the warning flag.
func NewBalance(goodID int64, qty decimal.Decimal, updatedAt time.Time) Balance {
	return Balance{GoodID: goodID, Qty: qty, Negative: qty.IsNegative(), UpdatedAt: updatedAt}
}

// AppendInput describes a ledger append.
type AppendInput struct {
	GoodID             int64
	Type               TransactionType
	Quantity           decimal.Decimal
	TransactionDate    time.Time
	ContractRef        string
	SourceAdjustmentID *int64
	IdempotencyKey     string
	CreatedBy          int64
	Notes              string
}

// AppendResult carries the stored entry and the balance after it.
type AppendResult struct {
	Entry    StockTransaction `json:"entry"`
	Balance  Balance          `json:"balance"`
	Replayed bool             `json:"replayed"`
}

// LedgerFilter selects ledger entries. Zero values mean "no constraint".
type LedgerFilter struct {
	GoodID  int64
	Type    TransactionType
	From    time.Time
	To      time.Time
	SortBy  string
	SortDir shared.SortDirection
	Page    int
	Size    int
}

// TypeCounts counts ledger entries per type under a filter.
type TypeCounts struct {
	Import         int `json:"IMPORT"`
	Export         int `json:"EXPORT"`
	AdjustIncrease int `json:"ADJUST_INCREASE"`
	AdjustDecrease int `json:"ADJUST_DECREASE"`
	All            int `json:"ALL"`
}

// Add increments the bucket of t and the total.
func (c *TypeCounts) Add(t TransactionType, n int) {
	switch t {
	case TypeImport:
		c.Import += n
	case TypeExport:
		c.Export += n
	case TypeAdjustIncrease:
		c.AdjustIncrease += n
	case TypeAdjustDecrease:
		c.AdjustDecrease += n
	default:
		return
	}
	c.All += n
}

// Of returns the count for t.
func (c TypeCounts) Of(t TransactionType) int {
	switch t {
	case TypeImport:
		return c.Import
	case TypeExport:
		return c.Export
	case TypeAdjustIncrease:
		return c.AdjustIncrease
	case TypeAdjustDecrease:
		return c.AdjustDecrease
	default:
		return c.All
	}
}

// LedgerPage is one page of ledger entries plus type counts.
type LedgerPage struct {
	Items      []StockTransaction `json:"items"`
	Pagination shared.Pagination  `json:"pagination"`
	Counts     TypeCounts         `json:"counts"`
}

// BalanceFilter selects aggregated balances.
type BalanceFilter struct {
	GoodID       int64
	OnlyNegative bool
	Page         int
	Size         int
}

// BalancePage is one page of the aggregated stock view.
type BalancePage struct {
	Items      []Balance         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// GoodTotals pairs the incremental counter of a good with its full ledger fold.
type GoodTotals struct {
	GoodID  int64
	Counter decimal.Decimal
	Ledger  decimal.Decimal
}

// Ledger sort keys accepted by List.
const (
	SortByID              = "id"
	SortByTransactionDate = "transaction_date"
	SortByQuantity        = "quantity"
)

var (
	// ErrGoodRequired indicates a missing good id.
	ErrGoodRequired = fmt.Errorf("%w: good id is required", shared.ErrValidation)
	// ErrUnknownGood indicates a good id that is not in the catalogue.
	ErrUnknownGood = fmt.Errorf("%w: good does not exist", shared.ErrValidation)
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
	// ErrInvalidType indicates a transaction type outside the four kinds.
	ErrInvalidType = fmt.Errorf("%w: unknown transaction type", shared.ErrValidation)
	// ErrInvalidDateRange indicates From after To.
	ErrInvalidDateRange = fmt.Errorf("%w: date range start is after its end", shared.ErrValidation)
	// ErrInvalidSort indicates an unsupported sort key.
	ErrInvalidSort = fmt.Errorf("%w: unsupported sort field", shared.ErrValidation)
	// ErrDuplicateIdempotencyKey indicates the key was committed by another
	// append after this transaction looked it up.
	ErrDuplicateIdempotencyKey = fmt.Errorf("%w: idempotency key recorded concurrently", shared.ErrConflict)
	// ErrIdempotencyMismatch indicates a replayed key carrying a different payload.
	ErrIdempotencyMismatch = fmt.Errorf("%w: idempotency key already used for a different entry", shared.ErrConflict)
)
