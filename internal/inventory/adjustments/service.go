package adjustments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ApprovalModule tags adjustment entries in the shared approval log.
const ApprovalModule = "inventory.adjustment"

// Repository defines the interface for adjustment persistence.
type Repository interface {
	GetByID(ctx context.Context, id int64) (AdjustmentRequest, error)
	List(ctx context.Context, req ListRequest) ([]AdjustmentRequest, int, error)
	CountByStatus(ctx context.Context, req ListRequest) (StatusCounts, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. Update, Delete and Decide
// are guarded by the expected version and report false when the guard fails.
type TxRepository interface {
	Ledger() inventory.TxRepository
	GetByID(ctx context.Context, id int64) (AdjustmentRequest, error)
	Insert(ctx context.Context, req AdjustmentRequest) (AdjustmentRequest, error)
	Update(ctx context.Context, req AdjustmentRequest, expectedVersion int) (bool, error)
	Delete(ctx context.Context, id int64, expectedVersion int) (bool, error)
	Decide(ctx context.Context, id int64, expectedVersion int, d Decision) (bool, error)
}

// LedgerWriter appends ledger entries inside a caller-owned transaction.
type LedgerWriter interface {
	AppendTx(ctx context.Context, tx inventory.TxRepository, input inventory.AppendInput) (inventory.AppendResult, error)
}

// ApprovalPort records and reads approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the adjustment request state machine.
type Service struct {
	repo      Repository
	ledger    LedgerWriter
	approvals ApprovalPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new adjustment service. approvals and audit may be nil.
func NewService(repo Repository, ledger LedgerWriter, approvals ApprovalPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		approvals: approvals,
		audit:     audit,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewCode builds the human-facing request code ADJ-YYYYMMDD-XXXXXXXX.
func NewCode(at time.Time, ref uuid.UUID) string {
	hex := strings.ReplaceAll(ref.String(), "-", "")
	return fmt.Sprintf("ADJ-%s-%s", at.Format("20060102"), strings.ToUpper(hex[:8]))
}

// Create submits a new PENDING request, snapshotting current stock.
func (s *Service) Create(ctx context.Context, req CreateRequest) (AdjustmentRequest, error) {
	reason, err := ValidateCreateRequest(req)
	if err != nil {
		return AdjustmentRequest{}, err
	}
	now := s.now()
	ref := uuid.New()
	adj := AdjustmentRequest{
		RefID:            ref,
		Code:             NewCode(now, ref),
		GoodID:           req.GoodID,
		AdjustType:       req.AdjustType,
		AdjustedQuantity: req.AdjustedQuantity,
		Reason:           reason,
		Notes:            strings.TrimSpace(req.Notes),
		RequestedBy:      req.RequestedBy,
		Status:           StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := snapshot(ctx, tx.Ledger(), adj.GoodID)
		if err != nil {
			return err
		}
		adj.Snapshot(before)
		adj, err = tx.Insert(ctx, adj)
		return err
	})
	if err != nil {
		return AdjustmentRequest{}, err
	}
	s.logger.Info("adjustment submitted",
		slog.Int64("adjustment_id", adj.ID),
		slog.String("code", adj.Code),
		slog.Int64("good_id", adj.GoodID),
		slog.String("adjust_type", string(adj.AdjustType)),
		slog.String("quantity", adj.AdjustedQuantity.String()))
	s.recordApproval(ctx, adj, shared.ApprovalSubmit, adj.RequestedBy, "")
	return adj, nil
}

// Update edits a PENDING or REJECTED request and re-snapshots its
// quantities. Editing a REJECTED request resubmits it as PENDING.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (AdjustmentRequest, error) {
	var (
		updated     AdjustmentRequest
		resubmitted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanEdit() {
			return fmt.Errorf("%w: %s", ErrCannotEdit, current.Status)
		}
		next, err := ValidateUpdateRequest(current, req)
		if err != nil {
			return err
		}
		before, err := snapshot(ctx, tx.Ledger(), next.GoodID)
		if err != nil {
			return err
		}
		next.Snapshot(before)
		if current.Status == StatusRejected {
			resubmitted = true
			next.Status = StatusPending
			next.ApprovedBy = nil
			next.RejectedBy = nil
			next.DecisionNote = ""
			next.DecidedAt = nil
		}
		next.UpdatedAt = s.now()
		next.Version = current.Version + 1
		ok, err := tx.Update(ctx, next, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		updated = next
		return nil
	})
	if err != nil {
		return AdjustmentRequest{}, err
	}
	if resubmitted {
		actor := req.UpdatedBy
		if actor <= 0 {
			actor = updated.RequestedBy
		}
		s.recordApproval(ctx, updated, shared.ApprovalSubmit, actor, "resubmitted after rejection")
	}
	return updated, nil
}

// Delete removes a PENDING or REJECTED request. The ledger is never touched.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted AdjustmentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanDelete() {
			return fmt.Errorf("%w: %s", ErrCannotDelete, current.Status)
		}
		ok, err := tx.Delete(ctx, id, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, deleted, "inventory:adjustment:delete", 0)
	return nil
}

// Approve flips a PENDING request to APPROVED and appends its ledger entry
// in one transaction. Either both happen or neither does.
func (s *Service) Approve(ctx context.Context, id int64, req ApproveRequest) (ApproveResult, error) {
	if req.ApproverID <= 0 {
		return ApproveResult{}, ErrApproverRequired
	}
	var result ApproveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanDecide() {
			return fmt.Errorf("%w: %s", ErrCannotApprove, current.Status)
		}
		approver := req.ApproverID
		d := Decision{Status: StatusApproved, ApprovedBy: &approver, Note: strings.TrimSpace(req.Note), DecidedAt: s.now()}
		ok, err := tx.Decide(ctx, id, current.Version, d)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		source := current.ID
		appended, err := s.ledger.AppendTx(ctx, tx.Ledger(), inventory.AppendInput{
			GoodID:             current.GoodID,
			Type:               current.AdjustType.LedgerType(),
			Quantity:           current.AdjustedQuantity,
			TransactionDate:    d.DecidedAt,
			SourceAdjustmentID: &source,
			CreatedBy:          approver,
			Notes:              fmt.Sprintf("%s: %s", current.Code, current.Reason),
		})
		if err != nil {
			return fmt.Errorf("append adjustment entry: %w", err)
		}
		current.applyDecision(d)
		result = ApproveResult{Request: current, Entry: appended.Entry, Balance: appended.Balance}
		return nil
	})
	if err != nil {
		return ApproveResult{}, err
	}
	s.logger.Info("adjustment approved",
		slog.Int64("adjustment_id", id),
		slog.Int64("approver_id", req.ApproverID),
		slog.Int64("tx_id", result.Entry.ID))
	if result.Balance.Negative {
		s.logger.Warn("stock below zero after adjustment",
			slog.Int64("good_id", result.Balance.GoodID),
			slog.String("qty", result.Balance.Qty.String()))
	}
	s.recordApproval(ctx, result.Request, shared.ApprovalApprove, req.ApproverID, result.Request.DecisionNote)
	s.recordAudit(ctx, result.Request, "inventory:adjustment:approve", req.ApproverID)
	return result, nil
}

// Reject flips a PENDING request to REJECTED. No ledger entry is written.
func (s *Service) Reject(ctx context.Context, id int64, req RejectRequest) (AdjustmentRequest, error) {
	if req.ApproverID <= 0 {
		return AdjustmentRequest{}, ErrApproverRequired
	}
	var rejected AdjustmentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanDecide() {
			return fmt.Errorf("%w: %s", ErrCannotReject, current.Status)
		}
		approver := req.ApproverID
		d := Decision{Status: StatusRejected, RejectedBy: &approver, Note: strings.TrimSpace(req.Note), DecidedAt: s.now()}
		ok, err := tx.Decide(ctx, id, current.Version, d)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		current.applyDecision(d)
		rejected = current
		return nil
	})
	if err != nil {
		return AdjustmentRequest{}, err
	}
	s.logger.Info("adjustment rejected", slog.Int64("adjustment_id", id), slog.Int64("approver_id", req.ApproverID))
	s.recordApproval(ctx, rejected, shared.ApprovalReject, req.ApproverID, rejected.DecisionNote)
	s.recordAudit(ctx, rejected, "inventory:adjustment:reject", req.ApproverID)
	return rejected, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (AdjustmentRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// History returns the approval log of a request, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	adj, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approvals.List(ctx, ApprovalModule, adj.RefID)
	if err != nil {
		return nil, fmt.Errorf("%w: list approvals: %w", shared.ErrPersistence, err)
	}
	return logs, nil
}

// List returns one page of requests and the status counts under the same
// search and good predicate. Counts ignore the status filter and page size.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	req, err := ValidateListRequest(req)
	if err != nil {
		return ListResult{}, err
	}
	req.Page, req.Size = shared.NormalizePage(req.Page, req.Size)

	var (
		items  []AdjustmentRequest
		total  int
		counts StatusCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.repo.List(gctx, req)
		return err
	})
	g.Go(func() error {
		countReq := req
		countReq.Status = ""
		var err error
		counts, err = s.repo.CountByStatus(gctx, countReq)
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []AdjustmentRequest{}
	}
	return ListResult{Items: items, Pagination: shared.NewPagination(req.Page, req.Size, total), Counts: counts}, nil
}

func (a *AdjustmentRequest) applyDecision(d Decision) {
	decidedAt := d.DecidedAt
	a.Status = d.Status
	a.ApprovedBy = d.ApprovedBy
	a.RejectedBy = d.RejectedBy
	a.DecisionNote = d.Note
	a.DecidedAt = &decidedAt
	a.UpdatedAt = decidedAt
	a.Version++
}

func snapshot(ctx context.Context, ledger inventory.TxRepository, goodID int64) (decimal.Decimal, error) {
	exists, err := ledger.GoodExists(ctx, goodID)
	if err != nil {
		return decimal.Zero, err
	}
	if !exists {
		return decimal.Zero, fmt.Errorf("%w: %d", inventory.ErrUnknownGood, goodID)
	}
	bal, err := ledger.GetBalance(ctx, goodID)
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Qty, nil
}

func (s *Service) recordApproval(ctx context.Context, adj AdjustmentRequest, action shared.ApprovalAction, actor int64, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  ApprovalModule,
		RefID:   adj.RefID,
		ActorID: actor,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("record adjustment approval", slog.Int64("adjustment_id", adj.ID), slog.String("action", string(action)), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, adj AdjustmentRequest, action string, actor int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "stock_adjustment",
		EntityID: adj.Code,
		Meta: map[string]any{
			"id":          adj.ID,
			"good_id":     adj.GoodID,
			"adjust_type": string(adj.AdjustType),
			"quantity":    adj.AdjustedQuantity.String(),
			"status":      string(adj.Status),
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("record adjustment audit", slog.Int64("adjustment_id", adj.ID), slog.Any("error", err))
	}
}
