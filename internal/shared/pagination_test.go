package shared

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	require.Equal(t, 1, page)
	require.Equal(t, DefaultPageSize, size)

	page, size = NormalizePage(3, 10_000)
	require.Equal(t, 3, page)
	require.Equal(t, MaxPageSize, size)

	require.Equal(t, 20, Offset(3, 10))
	require.Equal(t, 0, Offset(-1, 10))
}

func TestHugePagesNeverOverflowOffset(t *testing.T) {
	require.NoError(t, ValidatePage(MaxPage))
	require.ErrorIs(t, ValidatePage(MaxPage+1), ErrValidation)
	require.ErrorIs(t, ValidatePage(math.MaxInt64/20+2), ErrValidation)

	require.GreaterOrEqual(t, Offset(math.MaxInt64/20+2, 20), 0)
	require.Equal(t, (MaxPage-1)*MaxPageSize, Offset(math.MaxInt, MaxPageSize))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	require.Equal(t, Pagination{Page: 2, PerPage: 10, Total: 21, TotalPages: 3}, p)
	require.Zero(t, NewPagination(1, 10, 0).TotalPages)
}

func TestParseSortDirection(t *testing.T) {
	require.Equal(t, SortDesc, ParseSortDirection(" DESC "))
	require.Equal(t, SortAsc, ParseSortDirection("sideways"))
	require.Equal(t, SortAsc, ParseSortDirection(""))
}

func TestApprovalLogValidate(t *testing.T) {
	valid := ApprovalLog{Module: "inventory.adjustment", RefID: uuid.New(), ActorID: 3, Action: ApprovalApprove}
	require.NoError(t, valid.Validate())

	missingActor := valid
	missingActor.ActorID = 0
	require.Error(t, missingActor.Validate())

	missingRef := valid
	missingRef.RefID = uuid.Nil
	require.Error(t, missingRef.Validate())

	require.Error(t, AuditLog{Action: "x", Entity: "y"}.Validate())
}
