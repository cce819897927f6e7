package adjustments

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Handler handles HTTP requests for stock adjustments.
type Handler struct {
	service     *Service
	logger      *slog.Logger
	validator   *validator.Validate
	maxPageSize int
}

// NewHandler creates a new handler.
func NewHandler(service *Service, logger *slog.Logger, maxPageSize int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize <= 0 || maxPageSize > shared.MaxPageSize {
		maxPageSize = shared.MaxPageSize
	}
	return &Handler{service: service, logger: logger, validator: validator.New(), maxPageSize: maxPageSize}
}

// MountRoutes registers adjustment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/adjustments", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Get("/{id}/history", h.handleHistory)
		r.Post("/{id}/approve", h.handleApprove)
		r.Post("/{id}/reject", h.handleReject)
	})
}

type createResponse struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Status Status `json:"status"`
}

type decisionResponse struct {
	ID        int64                       `json:"id"`
	Code      string                      `json:"code"`
	Status    Status                      `json:"status"`
	LedgerTx  *inventory.StockTransaction `json:"ledger_entry,omitempty"`
	Balance   *inventory.Balance          `json:"balance,omitempty"`
	DecidedBy int64                       `json:"decided_by"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createResponse{ID: adj.ID, Code: adj.Code, Status: adj.Status})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req ListRequest
	var err error
	if req.Page, err = httpx.QueryInt(q, "page"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Size, err = httpx.QueryInt(q, "size"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Size > h.maxPageSize {
		req.Size = h.maxPageSize
	}
	if req.GoodID, err = httpx.QueryInt64(q, "good_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Search = q.Get("search")
	req.SortBy = strings.TrimSpace(q.Get("sort"))
	if dir := q.Get("dir"); dir != "" {
		req.SortDir = shared.ParseSortDirection(dir)
	}
	status := strings.ToUpper(strings.TrimSpace(q.Get("status")))
	if status != "ALL" {
		req.Status = Status(status)
	}

	result, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list adjustments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "adjustment history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": logs})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ApproveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Approve(r.Context(), id, req)
	if err != nil {
		h.fail(w, "approve adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{
		ID:        result.Request.ID,
		Code:      result.Request.Code,
		Status:    result.Request.Status,
		LedgerTx:  &result.Entry,
		Balance:   &result.Balance,
		DecidedBy: req.ApproverID,
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.Reject(r.Context(), id, req)
	if err != nil {
		h.fail(w, "reject adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{ID: adj.ID, Code: adj.Code, Status: adj.Status, DecidedBy: req.ApproverID})
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
