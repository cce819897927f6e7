package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// TxRepository exposes the writes of one ledger append. Implementations are
// bound to a single transaction.
type TxRepository interface {
	GoodExists(ctx context.Context, goodID int64) (bool, error)
	FindByIdempotencyKey(ctx context.Context, key string) (StockTransaction, bool, error)
	InsertTransaction(ctx context.Context, entry StockTransaction) (StockTransaction, error)
	AddToBalance(ctx context.Context, goodID int64, delta decimal.Decimal, at time.Time) (Balance, error)
	GetBalance(ctx context.Context, goodID int64) (Balance, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, goodID int64) (Balance, bool, error)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, int, error)
	ListTransactions(ctx context.Context, filter LedgerFilter) ([]StockTransaction, int, error)
	CountTransactionsByType(ctx context.Context, filter LedgerFilter) (TypeCounts, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the transaction ledger and the read side of the aggregator.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Append validates and stores one ledger entry, updating the running total of
// its good in the same transaction.
func (s *Service) Append(ctx context.Context, input AppendInput) (AppendResult, error) {
	if err := validateAppend(input); err != nil {
		return AppendResult{}, err
	}
	result, err := s.appendInTx(ctx, input)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// Another append committed the same key after our lookup. A fresh
		// transaction sees that entry and replays it or reports a mismatch.
		result, err = s.appendInTx(ctx, input)
	}
	if err != nil {
		return AppendResult{}, err
	}
	if result.Replayed {
		return result, nil
	}
	if result.Balance.Negative {
		s.logger.Warn("stock below zero after append",
			slog.Int64("good_id", result.Entry.GoodID),
			slog.String("qty", result.Balance.Qty.String()),
			slog.Int64("tx_id", result.Entry.ID))
	}
	s.recordAudit(ctx, result.Entry)
	return result, nil
}

func (s *Service) appendInTx(ctx context.Context, input AppendInput) (AppendResult, error) {
	var result AppendResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.AppendTx(ctx, tx, input)
		return err
	})
	return result, err
}

// AppendTx appends within a transaction owned by the caller. Any error it
// returns must abort that transaction.
func (s *Service) AppendTx(ctx context.Context, tx TxRepository, input AppendInput) (AppendResult, error) {
	if err := validateAppend(input); err != nil {
		return AppendResult{}, err
	}
	exists, err := tx.GoodExists(ctx, input.GoodID)
	if err != nil {
		return AppendResult{}, err
	}
	if !exists {
		return AppendResult{}, fmt.Errorf("%w: %d", ErrUnknownGood, input.GoodID)
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" {
		existing, found, err := tx.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return AppendResult{}, err
		}
		if found {
			if existing.GoodID != input.GoodID || existing.Type != input.Type || !existing.Quantity.Equal(input.Quantity) {
				return AppendResult{}, ErrIdempotencyMismatch
			}
			bal, err := tx.GetBalance(ctx, input.GoodID)
			if err != nil {
				return AppendResult{}, err
			}
			return AppendResult{Entry: existing, Balance: bal, Replayed: true}, nil
		}
	}

	now := s.now()
	txDate := input.TransactionDate
	if txDate.IsZero() {
		txDate = now
	}
	entry, err := tx.InsertTransaction(ctx, StockTransaction{
		GoodID:             input.GoodID,
		Type:               input.Type,
		Quantity:           input.Quantity,
		TransactionDate:    txDate.UTC(),
		ContractRef:        strings.TrimSpace(input.ContractRef),
		SourceAdjustmentID: input.SourceAdjustmentID,
		IdempotencyKey:     key,
		CreatedBy:          input.CreatedBy,
		Notes:              strings.TrimSpace(input.Notes),
		CreatedAt:          now,
	})
	if err != nil {
		return AppendResult{}, err
	}
	bal, err := tx.AddToBalance(ctx, input.GoodID, input.Type.Signed(input.Quantity), now)
	if err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Entry: entry, Balance: bal}, nil
}

// List returns one page of ledger entries and the per-type counts under the
// same good/date predicate. Counts ignore the type filter and the page size.
func (s *Service) List(ctx context.Context, filter LedgerFilter) (LedgerPage, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return LedgerPage{}, ErrInvalidType
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return LedgerPage{}, ErrInvalidDateRange
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = SortByID
	case SortByID, SortByTransactionDate, SortByQuantity:
	default:
		return LedgerPage{}, fmt.Errorf("%w: %q", ErrInvalidSort, filter.SortBy)
	}
	if filter.SortDir == "" {
		filter.SortDir = shared.SortAsc
	}
	if err := shared.ValidatePage(filter.Page); err != nil {
		return LedgerPage{}, err
	}
	filter.Page, filter.Size = shared.NormalizePage(filter.Page, filter.Size)

	var (
		items  []StockTransaction
		total  int
		counts TypeCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.repo.ListTransactions(gctx, filter)
		return err
	})
	g.Go(func() error {
		countFilter := filter
		countFilter.Type = ""
		var err error
		counts, err = s.repo.CountTransactionsByType(gctx, countFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return LedgerPage{}, err
	}
	if items == nil {
		items = []StockTransaction{}
	}
	return LedgerPage{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Size, total), Counts: counts}, nil
}

// StockOf returns the quantity on hand of goodID. Goods without ledger
// entries, known or not, report zero.
func (s *Service) StockOf(ctx context.Context, goodID int64) (Balance, error) {
	if goodID <= 0 {
		return Balance{}, ErrGoodRequired
	}
	bal, found, err := s.repo.GetBalance(ctx, goodID)
	if err != nil {
		return Balance{}, err
	}
	if !found {
		return NewBalance(goodID, decimal.Zero, time.Time{}), nil
	}
	return bal, nil
}

// Balances lists the aggregated stock view.
func (s *Service) Balances(ctx context.Context, filter BalanceFilter) (BalancePage, error) {
	if err := shared.ValidatePage(filter.Page); err != nil {
		return BalancePage{}, err
	}
	filter.Page, filter.Size = shared.NormalizePage(filter.Page, filter.Size)
	items, total, err := s.repo.ListBalances(ctx, filter)
	if err != nil {
		return BalancePage{}, err
	}
	if items == nil {
		items = []Balance{}
	}
	return BalancePage{Items: items, Pagination: shared.NewPagination(filter.Page, filter.Size, total)}, nil
}

func (s *Service) recordAudit(ctx context.Context, entry StockTransaction) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  entry.CreatedBy,
		Action:   fmt.Sprintf("inventory:%s", entry.Type),
		Entity:   "stock_transaction",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"good_id":  entry.GoodID,
			"quantity": entry.Quantity.String(),
			"contract": entry.ContractRef,
		},
	})
	if err != nil {
		s.logger.Warn("record ledger audit", slog.Int64("tx_id", entry.ID), slog.Any("error", err))
	}
}

func validateAppend(input AppendInput) error {
	if input.GoodID <= 0 {
		return ErrGoodRequired
	}
	if !input.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, input.Type)
	}
	if !input.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}
