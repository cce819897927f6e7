package adjustments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

func TestParseReasonMatchesCodesAndLabels(t *testing.T) {
	cases := []struct {
		raw  string
		want ReasonCode
	}{
		{"DAMAGED", ReasonDamaged},
		{"damaged", ReasonDamaged},
		{"  Expired ", ReasonExpired},
		{"Hàng hư hỏng", ReasonDamaged},
		{"HÀNG THẤT LẠC", ReasonLost},
		{"kiểm kê phát hiện chênh lệch", ReasonStocktakeDiscrepancy},
		{norm.NFD.String("Nhập liệu sai"), ReasonDataEntryError},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			reason, err := ParseReason(tc.raw, "")
			require.NoError(t, err)
			require.Equal(t, tc.want, reason.Code)
			require.False(t, reason.IsOther())
			require.Equal(t, tc.want.Label(), reason.String())
		})
	}
}

func TestParseReasonFreeText(t *testing.T) {
	reason, err := ParseReason("water leak in aisle 3", "roof leak soaked two pallets")
	require.NoError(t, err)
	require.True(t, reason.IsOther())
	require.Equal(t, "roof leak soaked two pallets", reason.String())

	reason, err = ParseReason("OTHER", " recount by auditor ")
	require.NoError(t, err)
	require.Equal(t, Other("recount by auditor"), reason)

	_, err = ParseReason("OTHER", "  ")
	require.ErrorIs(t, err, ErrNotesRequired)
	_, err = ParseReason(" ", "anything")
	require.ErrorIs(t, err, ErrReasonRequired)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustTypeApply(t *testing.T) {
	before := decimal.NewFromInt(1000)
	require.True(t, AdjustDecrease.Apply(before, decimal.NewFromInt(200)).Equal(decimal.NewFromInt(800)))
	require.True(t, AdjustIncrease.Apply(before, decimal.RequireFromString("0.5")).Equal(decimal.RequireFromString("1000.5")))
	require.True(t, AdjustDecrease.Apply(decimal.Zero, decimal.NewFromInt(3)).IsNegative())
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, StatusPending.CanEdit())
	require.True(t, StatusRejected.CanEdit())
	require.False(t, StatusApproved.CanEdit())
	require.False(t, StatusApproved.CanDelete())
	require.True(t, StatusPending.CanDecide())
	require.False(t, StatusRejected.CanDecide())
	require.False(t, Status("DRAFT").IsValid())
}

func TestNewCode(t *testing.T) {
	ref := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	code := NewCode(time.Date(2026, 5, 17, 23, 0, 0, 0, time.UTC), ref)
	require.Equal(t, "ADJ-20260517-3F2504E0", code)
}

func TestValidateUpdateKeepsOtherReasonInStepWithNotes(t *testing.T) {
	current := AdjustmentRequest{
		GoodID:           1,
		AdjustType:       AdjustIncrease,
		AdjustedQuantity: decimal.NewFromInt(2),
		Reason:           Other("found extra crate"),
		Notes:            "found extra crate",
	}
	notes := "found two extra crates"
	next, err := ValidateUpdateRequest(current, UpdateRequest{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, Other(notes), next.Reason)

	empty := ""
	_, err = ValidateUpdateRequest(current, UpdateRequest{Notes: &empty})
	require.ErrorIs(t, err, ErrNotesRequired)

	zero := decimal.Zero
	_, err = ValidateUpdateRequest(current, UpdateRequest{AdjustedQuantity: &zero})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestValidateListRequestDefaults(t *testing.T) {
	req, err := ValidateListRequest(ListRequest{Search: "  ADJ-2026 "})
	require.NoError(t, err)
	require.Equal(t, SortByID, req.SortBy)
	require.Equal(t, shared.SortDesc, req.SortDir)
	require.Equal(t, "ADJ-2026", req.Search)

	_, err = ValidateListRequest(ListRequest{Status: "DRAFT"})
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ValidateListRequest(ListRequest{SortBy: "reason"})
	require.ErrorIs(t, err, ErrInvalidSort)
}
