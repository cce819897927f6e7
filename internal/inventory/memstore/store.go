// Package memstore keeps the ledger, running totals and adjustment requests
// in process memory. Transactions are serialised and write in place; a
// journal undoes the writes of a failing callback, so it leaves no trace.
package memstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/inventory/adjustments"
)

// Good is a catalogue entry.
type Good struct {
	ID   int64
	Code string
	Name string
}

type balance struct {
	qty       decimal.Decimal
	updatedAt time.Time
}

type state struct {
	goods       map[int64]Good
	entries     []inventory.StockTransaction
	byKey       map[string]int
	bySource    map[int64]int
	balances    map[int64]balance
	adjustments map[int64]adjustments.AdjustmentRequest
	adjByCode   map[string]int64
	adjByRef    map[uuid.UUID]int64
	nextTxID    int64
	nextAdjID   int64
}

func newState() *state {
	return &state{
		goods:       map[int64]Good{},
		byKey:       map[string]int{},
		bySource:    map[int64]int{},
		balances:    map[int64]balance{},
		adjustments: map[int64]adjustments.AdjustmentRequest{},
		adjByCode:   map[string]int64{},
		adjByRef:    map[uuid.UUID]int64{},
	}
}

// journal records how to undo each write of the running transaction.
type journal struct {
	undo []func()
}

func (j *journal) onRollback(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

func setKey[K comparable, V any](j *journal, m map[K]V, k K, v V) {
	saveKey(j, m, k)
	m[k] = v
}

func deleteKey[K comparable, V any](j *journal, m map[K]V, k K) {
	saveKey(j, m, k)
	delete(m, k)
}

func saveKey[K comparable, V any](j *journal, m map[K]V, k K) {
	prev, had := m[k]
	j.onRollback(func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func saveCounter(j *journal, counter *int64) {
	prev := *counter
	j.onRollback(func() { *counter = prev })
}

// appendEntry appends to the ledger. Entries below the committed length are
// never rewritten, so snapshots taken under the read lock stay valid.
func (s *state) appendEntry(j *journal, entry inventory.StockTransaction) int {
	n := len(s.entries)
	s.entries = append(s.entries, entry)
	j.onRollback(func() {
		clear(s.entries[n:])
		s.entries = s.entries[:n]
	})
	return n
}

// Store is the shared in-memory state behind the ledger and adjustment repositories.
type Store struct {
	mu          sync.RWMutex
	state       *state
	failAppends []error
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// AddGood registers a good in the catalogue.
func (s *Store) AddGood(g Good) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.goods[g.ID] = g
}

// RemoveGood drops a good from the catalogue. Existing entries are kept.
func (s *Store) RemoveGood(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.goods, id)
}

// FailNextAppend makes the next ledger insert fail with err.
func (s *Store) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppends = append(s.failAppends, err)
}

// SetCounter overwrites a running total without a ledger entry. It exists to
// exercise reconciliation.
func (s *Store) SetCounter(goodID int64, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.balances[goodID] = balance{qty: qty, updatedAt: time.Now().UTC()}
}

// Ledger returns the ledger repository view.
func (s *Store) Ledger() *LedgerRepository {
	return &LedgerRepository{store: s}
}

// Adjustments returns the adjustment repository view.
func (s *Store) Adjustments() *AdjustmentRepository {
	return &AdjustmentRepository{store: s}
}

// update runs fn under the write lock and undoes its writes unless it
// returns nil.
func (s *Store) update(fn func(*state, *journal) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var j journal
	committed := false
	defer func() {
		if !committed {
			j.rollback()
		}
	}()
	if err = fn(s.state, &j); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// takeFailure pops an injected failure. Callers hold the write lock.
func (s *Store) takeFailure() error {
	if len(s.failAppends) == 0 {
		return nil
	}
	err := s.failAppends[0]
	s.failAppends = s.failAppends[1:]
	return err
}
