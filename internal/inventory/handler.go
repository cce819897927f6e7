package inventory

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Handler wires HTTP endpoints for the ledger and the aggregated stock view.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validator.Validate
	maxPageSize int
}

// NewHandler constructs inventory handler. maxPageSize <= 0 keeps the shared cap.
func NewHandler(logger *slog.Logger, service *Service, maxPageSize int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize <= 0 || maxPageSize > shared.MaxPageSize {
		maxPageSize = shared.MaxPageSize
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), maxPageSize: maxPageSize}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ledger", h.handleAppend)
	r.Get("/ledger", h.handleListLedger)
	r.Get("/stock", h.handleListStock)
	r.Get("/stock/{goodID}", h.handleGetStock)
}

// Contract flows only write IMPORT and EXPORT here; adjustment entries are
// appended by the approval workflow.
type appendRequest struct {
	GoodID          int64           `json:"good_id" validate:"required,gt=0"`
	Type            string          `json:"type" validate:"required,oneof=IMPORT EXPORT"`
	Quantity        decimal.Decimal `json:"quantity"`
	TransactionDate *time.Time      `json:"transaction_date"`
	ContractRef     string          `json:"contract_ref" validate:"max=128"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"max=128"`
	CreatedBy       int64           `json:"created_by" validate:"gte=0"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := AppendInput{
		GoodID:         req.GoodID,
		Type:           TransactionType(req.Type),
		Quantity:       req.Quantity,
		ContractRef:    req.ContractRef,
		IdempotencyKey: strings.TrimSpace(firstNonEmpty(req.IdempotencyKey, r.Header.Get("Idempotency-Key"))),
		CreatedBy:      req.CreatedBy,
		Notes:          req.Notes,
	}
	if req.TransactionDate != nil {
		input.TransactionDate = *req.TransactionDate
	}
	result, err := h.service.Append(r.Context(), input)
	if err != nil {
		h.fail(w, "append ledger entry", err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleListLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter LedgerFilter
	var err error
	if filter.GoodID, err = httpx.QueryInt64(q, "good_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryTime(q, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryTime(q, "to", true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Page, filter.Size, err = h.pageParams(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Type = TransactionType(strings.ToUpper(strings.TrimSpace(q.Get("type"))))
	filter.SortBy = strings.TrimSpace(q.Get("sort"))
	filter.SortDir = shared.ParseSortDirection(q.Get("dir"))

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleListStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter BalanceFilter
	var err error
	if filter.GoodID, err = httpx.QueryInt64(q, "good_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.OnlyNegative, err = httpx.QueryBool(q, "only_negative"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Page, filter.Size, err = h.pageParams(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.Balances(r.Context(), filter)
	if err != nil {
		h.fail(w, "list stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	goodID, err := httpx.PathID(r, "goodID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.StockOf(r.Context(), goodID)
	if err != nil {
		h.fail(w, "get stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	page, err := httpx.QueryInt(q, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := httpx.QueryInt(q, "size")
	if err != nil {
		return 0, 0, err
	}
	if size > h.maxPageSize {
		size = h.maxPageSize
	}
	return page, size, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch shared.Kind(err) {
	case "validation", "not_found", "conflict":
		h.logger.Debug(op, slog.Any("error", err))
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
