package adjustments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Status represents adjustment request lifecycle states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// IsValid checks if status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanEdit checks if request can be edited. APPROVED is immutable.
func (s Status) CanEdit() bool {
	return s == StatusPending || s == StatusRejected
}

// CanDelete checks if request can be deleted.
func (s Status) CanDelete() bool {
	return s == StatusPending || s == StatusRejected
}

// CanDecide checks if request can be approved or rejected.
func (s Status) CanDecide() bool {
	return s == StatusPending
}

// AdjustType is the direction of an adjustment.
type AdjustType string

const (
	AdjustIncrease AdjustType = "INCREASE"
	AdjustDecrease AdjustType = "DECREASE"
)

// IsValid checks if type is valid.
func (t AdjustType) IsValid() bool {
	return t == AdjustIncrease || t == AdjustDecrease
}

// LedgerType maps the direction onto the ledger entry written on approval.
func (t AdjustType) LedgerType() inventory.TransactionType {
	if t == AdjustIncrease {
		return inventory.TypeAdjustIncrease
	}
	return inventory.TypeAdjustDecrease
}

// Apply returns before moved by qty in the direction of t.
func (t AdjustType) Apply(before, qty decimal.Decimal) decimal.Decimal {
	return before.Add(t.LedgerType().Signed(qty))
}

// AdjustmentRequest is a proposed stock correction awaiting a decision.
type AdjustmentRequest struct {
	ID               int64           `json:"id"`
	RefID            uuid.UUID       `json:"ref_id"`
	Code             string          `json:"code"`
	GoodID           int64           `json:"good_id"`
	AdjustType       AdjustType      `json:"adjust_type"`
	QuantityBefore   decimal.Decimal `json:"quantity_before"`
	AdjustedQuantity decimal.Decimal `json:"adjusted_quantity"`
	QuantityAfter    decimal.Decimal `json:"quantity_after"`
	Reason           Reason          `json:"reason"`
	Notes            string          `json:"notes,omitempty"`
	RequestedBy      int64           `json:"requested_by"`
	Status           Status          `json:"status"`
	ApprovedBy       *int64          `json:"approved_by,omitempty"`
	RejectedBy       *int64          `json:"rejected_by,omitempty"`
	DecisionNote     string          `json:"decision_note,omitempty"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Snapshot fixes the quantities against the current stock of the good.
func (a *AdjustmentRequest) Snapshot(before decimal.Decimal) {
	a.QuantityBefore = before
	a.QuantityAfter = a.AdjustType.Apply(before, a.AdjustedQuantity)
}

// Decision is the status flip applied by approve or reject.
type Decision struct {
	Status     Status
	ApprovedBy *int64
	RejectedBy *int64
	Note       string
	DecidedAt  time.Time
}

// StatusCounts counts requests per status under a filter.
type StatusCounts struct {
	Pending  int `json:"PENDING"`
	Approved int `json:"APPROVED"`
	Rejected int `json:"REJECTED"`
	All      int `json:"ALL"`
}

// Add increments the bucket of s and the total.
func (c *StatusCounts) Add(s Status, n int) {
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
	case StatusRejected:
		c.Rejected += n
	default:
		return
	}
	c.All += n
}

// Of returns the count for s, or the total for an empty status.
func (c StatusCounts) Of(s Status) int {
	switch s {
	case StatusPending:
		return c.Pending
	case StatusApproved:
		return c.Approved
	case StatusRejected:
		return c.Rejected
	default:
		return c.All
	}
}

// Sort keys accepted by List.
const (
	SortByID               = "id"
	SortByCode             = "code"
	SortByCreatedAt        = "created_at"
	SortByAdjustedQuantity = "adjusted_quantity"
	SortByStatus           = "status"
)

// ListResult is one page of requests plus status counts.
type ListResult struct {
	Items      []AdjustmentRequest `json:"items"`
	Pagination shared.Pagination   `json:"pagination"`
	Counts     StatusCounts        `json:"counts"`
}

// ApproveResult carries the approved request and the ledger effect.
type ApproveResult struct {
	Request AdjustmentRequest          `json:"request"`
	Entry   inventory.StockTransaction `json:"entry"`
	Balance inventory.Balance          `json:"balance"`
}
