package adjustments

import (
	"fmt"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Domain errors for adjustment requests. Each wraps a shared kind.
var (
	// ErrNotFound indicates the requested adjustment does not exist.
	ErrNotFound = fmt.Errorf("%w: adjustment request not found", shared.ErrNotFound)

	// Status transition errors.
	ErrCannotEdit    = fmt.Errorf("%w: cannot edit adjustment in current status", shared.ErrConflict)
	ErrCannotDelete  = fmt.Errorf("%w: cannot delete adjustment in current status", shared.ErrConflict)
	ErrCannotApprove = fmt.Errorf("%w: cannot approve adjustment in current status", shared.ErrConflict)
	ErrCannotReject  = fmt.Errorf("%w: cannot reject adjustment in current status", shared.ErrConflict)
	// ErrConcurrentUpdate indicates another caller changed the request first.
	ErrConcurrentUpdate = fmt.Errorf("%w: adjustment was modified concurrently, reload and retry", shared.ErrConflict)

	// Validation errors.
	ErrGoodRequired      = fmt.Errorf("%w: good id is required", shared.ErrValidation)
	ErrInvalidType       = fmt.Errorf("%w: adjust type must be INCREASE or DECREASE", shared.ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: adjusted quantity must be greater than zero", shared.ErrValidation)
	ErrReasonRequired    = fmt.Errorf("%w: reason is required", shared.ErrValidation)
	ErrNotesRequired     = fmt.Errorf("%w: notes must describe a reason outside the listed codes", shared.ErrValidation)
	ErrRequesterRequired = fmt.Errorf("%w: requested_by is required", shared.ErrValidation)
	ErrApproverRequired  = fmt.Errorf("%w: approver id is required", shared.ErrValidation)
	ErrInvalidStatus     = fmt.Errorf("%w: unknown status filter", shared.ErrValidation)
	ErrInvalidSort       = fmt.Errorf("%w: unsupported sort field", shared.ErrValidation)
)
