package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Approvals keeps approval history in memory.
type Approvals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

// NewApprovals returns an empty approval log.
func NewApprovals() *Approvals {
	return &Approvals{}
}

// Record appends an approval entry.
func (a *Approvals) Record(_ context.Context, log shared.ApprovalLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	log.ID = int64(len(a.logs) + 1)
	a.logs = append(a.logs, log)
	return nil
}

// List returns approvals for module/ref in insertion order.
func (a *Approvals) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []shared.ApprovalLog{}
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

// Audit keeps audit records in memory.
type Audit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

// NewAudit returns an empty audit trail.
func NewAudit() *Audit {
	return &Audit{}
}

// Record appends an audit entry.
func (a *Audit) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

// Entries returns a copy of the recorded entries.
func (a *Audit) Entries() []shared.AuditLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.logs)
}
