package port

import (
	"context"
	"errors"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// ErrLedgerClosed is returned by a ledger used after Close
var ErrLedgerClosed = errors.New("ledger is closed")

// Ledger is the append-only store of accepted claim lines
type Ledger interface {
	TransactionManager

	// Lookup reports whether a record matching the fingerprint within tolerance exists
	Lookup(ctx context.Context, fp entity.LedgerFingerprint, tolerance float64) (bool, error)

	// AppendAll appends every record or none of them
	AppendAll(ctx context.Context, records []entity.LedgerRecord) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}

// TransactionManager handles the check-then-append critical section
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
