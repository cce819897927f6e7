package adjustments

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// CreateRequest represents request to create an adjustment.
type CreateRequest struct {
	GoodID           int64           `json:"good_id" validate:"required,gt=0"`
	AdjustType       AdjustType      `json:"adjust_type" validate:"required,oneof=INCREASE DECREASE"`
	AdjustedQuantity decimal.Decimal `json:"adjusted_quantity"`
	Reason           string          `json:"reason" validate:"required,max=200"`
	Notes            string          `json:"notes" validate:"max=1000"`
	RequestedBy      int64           `json:"requested_by" validate:"required,gt=0"`
}

// UpdateRequest represents request to edit a PENDING or REJECTED adjustment.
// Nil fields keep their current value.
type UpdateRequest struct {
	GoodID           *int64           `json:"good_id,omitempty" validate:"omitempty,gt=0"`
	AdjustType       *AdjustType      `json:"adjust_type,omitempty" validate:"omitempty,oneof=INCREASE DECREASE"`
	AdjustedQuantity *decimal.Decimal `json:"adjusted_quantity,omitempty"`
	Reason           *string          `json:"reason,omitempty" validate:"omitempty,max=200"`
	Notes            *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
	UpdatedBy        int64            `json:"updated_by" validate:"gte=0"`
}

// ApproveRequest represents request to approve an adjustment.
type ApproveRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required,gt=0"`
	Note       string `json:"note" validate:"max=500"`
}

// RejectRequest represents request to reject an adjustment.
type RejectRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required,gt=0"`
	Note       string `json:"note" validate:"max=500"`
}

// ListRequest represents filters for listing adjustments.
type ListRequest struct {
	Page    int
	Size    int
	Search  string
	SortBy  string
	SortDir shared.SortDirection
	Status  Status
	GoodID  int64
}
