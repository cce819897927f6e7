package adjustments_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/adjustments"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type createdBody struct {
	ID     int64              `json:"id"`
	Code   string             `json:"code"`
	Status adjustments.Status `json:"status"`
}

type decisionBody struct {
	ID          int64                       `json:"id"`
	Status      adjustments.Status          `json:"status"`
	LedgerEntry *inventory.StockTransaction `json:"ledger_entry"`
	Balance     *inventory.Balance          `json:"balance"`
	DecidedBy   int64                       `json:"decided_by"`
}

func newAdjustmentRouter(t *testing.T) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	adjustments.NewHandler(f.service, nil, 0).MountRoutes(r)
	return r, f
}

func call(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func problemType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p.Type
}

func TestHandlerAdjustmentLifecycle(t *testing.T) {
	h, f := newAdjustmentRouter(t)
	f.stock(t, 1, inventory.TypeImport, 1000)

	rec := call(t, h, http.MethodPost, "/adjustments", `{"good_id":1,"adjust_type":"DECREASE","adjusted_quantity":"200","reason":"Hàng hư hỏng","requested_by":7}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created createdBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.Equal(t, adjustments.StatusPending, created.Status)
	require.NotEmpty(t, created.Code)

	rec = call(t, h, http.MethodGet, fmt.Sprintf("/adjustments/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var adj adjustments.AdjustmentRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&adj))
	require.True(t, adj.QuantityAfter.Equal(decimal.NewFromInt(800)))
	require.Equal(t, adjustments.ReasonDamaged, adj.Reason.Code)

	rec = call(t, h, http.MethodPost, fmt.Sprintf("/adjustments/%d/approve", created.ID), `{"approver_id":9,"note":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decided decisionBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decided))
	require.Equal(t, adjustments.StatusApproved, decided.Status)
	require.EqualValues(t, 9, decided.DecidedBy)
	require.NotNil(t, decided.LedgerEntry)
	require.Equal(t, inventory.TypeAdjustDecrease, decided.LedgerEntry.Type)
	require.NotNil(t, decided.Balance)
	require.True(t, decided.Balance.Qty.Equal(decimal.NewFromInt(800)))

	rec = call(t, h, http.MethodPost, fmt.Sprintf("/adjustments/%d/approve", created.ID), `{"approver_id":9}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict", problemType(t, rec))

	rec = call(t, h, http.MethodPut, fmt.Sprintf("/adjustments/%d", created.ID), `{"adjusted_quantity":"1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodDelete, fmt.Sprintf("/adjustments/%d", created.ID), "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodGet, fmt.Sprintf("/adjustments/%d/history", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Items []shared.ApprovalLog `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history.Items, 2)
}

func TestHandlerRejectThenEdit(t *testing.T) {
	h, _ := newAdjustmentRouter(t)
	rec := call(t, h, http.MethodPost, "/adjustments", `{"good_id":2,"adjust_type":"INCREASE","adjusted_quantity":3,"reason":"OTHER","notes":"supplier sent extra","requested_by":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created createdBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = call(t, h, http.MethodPost, fmt.Sprintf("/adjustments/%d/reject", created.ID), `{"approver_id":2,"note":"attach delivery note"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decided decisionBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decided))
	require.Equal(t, adjustments.StatusRejected, decided.Status)
	require.Nil(t, decided.LedgerEntry)

	rec = call(t, h, http.MethodPut, fmt.Sprintf("/adjustments/%d", created.ID), `{"notes":"supplier sent extra, delivery note DN-42","updated_by":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var adj adjustments.AdjustmentRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&adj))
	require.Equal(t, adjustments.StatusPending, adj.Status)
	require.Equal(t, "supplier sent extra, delivery note DN-42", adj.Reason.Text)
}

func TestHandlerAdjustmentErrors(t *testing.T) {
	h, _ := newAdjustmentRouter(t)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"missing requester", http.MethodPost, "/adjustments", `{"good_id":1,"adjust_type":"INCREASE","adjusted_quantity":1,"reason":"LOST"}`, http.StatusBadRequest, "validation"},
		{"bad adjust type", http.MethodPost, "/adjustments", `{"good_id":1,"adjust_type":"SET","adjusted_quantity":1,"reason":"LOST","requested_by":1}`, http.StatusBadRequest, "validation"},
		{"negative quantity", http.MethodPost, "/adjustments", `{"good_id":1,"adjust_type":"INCREASE","adjusted_quantity":-1,"reason":"LOST","requested_by":1}`, http.StatusBadRequest, "validation"},
		{"other without notes", http.MethodPost, "/adjustments", `{"good_id":1,"adjust_type":"INCREASE","adjusted_quantity":1,"reason":"OTHER","requested_by":1}`, http.StatusBadRequest, "validation"},
		{"unknown good", http.MethodPost, "/adjustments", `{"good_id":99,"adjust_type":"INCREASE","adjusted_quantity":1,"reason":"LOST","requested_by":1}`, http.StatusBadRequest, "validation"},
		{"unknown request", http.MethodGet, "/adjustments/12345", "", http.StatusNotFound, "not_found"},
		{"approve unknown", http.MethodPost, "/adjustments/12345/approve", `{"approver_id":1}`, http.StatusNotFound, "not_found"},
		{"approve without approver", http.MethodPost, "/adjustments/1/approve", `{}`, http.StatusBadRequest, "validation"},
		{"bad id", http.MethodGet, "/adjustments/abc", "", http.StatusBadRequest, "validation"},
		{"bad status filter", http.MethodGet, "/adjustments?status=DRAFT", "", http.StatusBadRequest, "validation"},
		{"bad sort", http.MethodGet, "/adjustments?sort=reason", "", http.StatusBadRequest, "validation"},
		{"page past range", http.MethodGet, "/adjustments?page=461168601842738792", "", http.StatusBadRequest, "validation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, h, tc.method, tc.target, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.kind, problemType(t, rec))
		})
	}
}

func TestHandlerListAdjustments(t *testing.T) {
	h, f := newAdjustmentRouter(t)
	for i := 1; i <= 3; i++ {
		f.create(t, 1, adjustments.AdjustIncrease, int64(i))
	}
	third := f.create(t, 2, adjustments.AdjustDecrease, 1)
	rec := call(t, h, http.MethodPost, fmt.Sprintf("/adjustments/%d/reject", third.ID), `{"approver_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodGet, "/adjustments?status=pending&size=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page adjustments.ListResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Items, 2)
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 3, page.Counts.Pending)
	require.Equal(t, 1, page.Counts.Rejected)
	require.Equal(t, 4, page.Counts.All)

	rec = call(t, h, http.MethodGet, "/adjustments?status=ALL&sort=adjusted_quantity&dir=asc&good_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Items, 3)
	require.True(t, page.Items[0].AdjustedQuantity.Equal(decimal.NewFromInt(1)))
	require.True(t, page.Items[2].AdjustedQuantity.Equal(decimal.NewFromInt(3)))
}
