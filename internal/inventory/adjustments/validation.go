package adjustments

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ValidateCreateRequest checks the domain rules of a create request and
// resolves its reason.
func ValidateCreateRequest(req CreateRequest) (Reason, error) {
	if req.GoodID <= 0 {
		return Reason{}, ErrGoodRequired
	}
	if !req.AdjustType.IsValid() {
		return Reason{}, fmt.Errorf("%w: %q", ErrInvalidType, req.AdjustType)
	}
	if !req.AdjustedQuantity.IsPositive() {
		return Reason{}, ErrInvalidQuantity
	}
	if req.RequestedBy <= 0 {
		return Reason{}, ErrRequesterRequired
	}
	return ParseReason(req.Reason, req.Notes)
}

// ValidateUpdateRequest applies req onto a copy of current and checks the
// result. quantity_before/after are left for the caller to re-snapshot.
func ValidateUpdateRequest(current AdjustmentRequest, req UpdateRequest) (AdjustmentRequest, error) {
	next := current
	if req.GoodID != nil {
		next.GoodID = *req.GoodID
	}
	if req.AdjustType != nil {
		next.AdjustType = *req.AdjustType
	}
	if req.AdjustedQuantity != nil {
		next.AdjustedQuantity = *req.AdjustedQuantity
	}
	if req.Notes != nil {
		next.Notes = strings.TrimSpace(*req.Notes)
	}
	if next.GoodID <= 0 {
		return AdjustmentRequest{}, ErrGoodRequired
	}
	if !next.AdjustType.IsValid() {
		return AdjustmentRequest{}, fmt.Errorf("%w: %q", ErrInvalidType, next.AdjustType)
	}
	if !next.AdjustedQuantity.IsPositive() {
		return AdjustmentRequest{}, ErrInvalidQuantity
	}
	switch {
	case req.Reason != nil:
		reason, err := ParseReason(*req.Reason, next.Notes)
		if err != nil {
			return AdjustmentRequest{}, err
		}
		next.Reason = reason
	case next.Reason.IsOther():
		// Free-text reasons live in notes; keep them in step.
		if next.Notes == "" {
			return AdjustmentRequest{}, ErrNotesRequired
		}
		next.Reason = Other(next.Notes)
	}
	return next, nil
}

// ValidateListRequest checks the filter and fills defaults.
func ValidateListRequest(req ListRequest) (ListRequest, error) {
	if req.Status != "" && !req.Status.IsValid() {
		return ListRequest{}, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	switch req.SortBy {
	case "":
		req.SortBy = SortByID
	case SortByID, SortByCode, SortByCreatedAt, SortByAdjustedQuantity, SortByStatus:
	default:
		return ListRequest{}, fmt.Errorf("%w: %q", ErrInvalidSort, req.SortBy)
	}
	if req.SortDir == "" {
		req.SortDir = shared.SortDesc
	}
	if err := shared.ValidatePage(req.Page); err != nil {
		return ListRequest{}, err
	}
	req.Search = strings.TrimSpace(req.Search)
	return req, nil
}
