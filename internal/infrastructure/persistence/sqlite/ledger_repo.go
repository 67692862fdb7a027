package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"go.uber.org/zap"
)

// LedgerRepository implements port.Ledger on the ledger_records table
type LedgerRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// WithTransaction runs fn inside one IMMEDIATE transaction
func (r *LedgerRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTransaction(ctx, fn)
}

// Lookup narrows candidates by the normalized keys, then compares amounts within tolerance
func (r *LedgerRepository) Lookup(ctx context.Context, fp entity.LedgerFingerprint, tolerance float64) (bool, error) {
	query := `
		SELECT employee_code, invoice_number, invoice_date, amount
		FROM ledger_records
		WHERE employee_key = ? AND invoice_key = ? AND invoice_date = ?
	`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query,
		entity.NormalizeEmployeeCode(fp.EmployeeCode),
		entity.NormalizeInvoiceNumber(fp.InvoiceNumber),
		strings.TrimSpace(fp.Date),
	)
	if err != nil {
		r.logger.Error("Failed to query ledger", zap.String("invoice_number", fp.InvoiceNumber), zap.Error(err))
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record entity.LedgerRecord
		if err := rows.Scan(&record.EmployeeCode, &record.InvoiceNumber, &record.Date, &record.Amount); err != nil {
			return false, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		if fp.Matches(record, tolerance) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// AppendAll inserts every record in one transaction
func (r *LedgerRepository) AppendAll(ctx context.Context, records []entity.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO ledger_records (
				employee_code, employee_key, invoice_number, invoice_key, invoice_date,
				amount, claim_type, claim_id, source_digest, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		exec := r.db.getExecutor(txCtx)
		for i := range records {
			rec := &records[i]
			if rec.RecordedAt.IsZero() {
				rec.RecordedAt = time.Now().UTC()
			}

			_, err := exec.ExecContext(txCtx, query,
				rec.EmployeeCode,
				entity.NormalizeEmployeeCode(rec.EmployeeCode),
				rec.InvoiceNumber,
				entity.NormalizeInvoiceNumber(rec.InvoiceNumber),
				strings.TrimSpace(rec.Date),
				rec.Amount,
				rec.ClaimType,
				rec.ClaimID,
				rec.SourceDigest,
				rec.RecordedAt,
			)
			if err != nil {
				r.logger.Error("Failed to append ledger record",
					zap.String("claim_id", rec.ClaimID),
					zap.String("invoice_number", rec.InvoiceNumber),
					zap.Error(err))
				return fmt.Errorf("failed to append ledger record %d: %w", i, err)
			}
		}

		r.logger.Info("Ledger records appended", zap.Int("count", len(records)))
		return nil
	})
}

// Count returns the number of stored records
func (r *LedgerRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.getExecutor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger records: %w", err)
	}
	return count, nil
}

// ListByClaim returns the records appended for one claim in insertion order
func (r *LedgerRepository) ListByClaim(ctx context.Context, claimID string) ([]entity.LedgerRecord, error) {
	query := `
		SELECT employee_code, invoice_number, invoice_date, amount,
			claim_type, claim_id, source_digest, recorded_at
		FROM ledger_records
		WHERE claim_id = ?
		ORDER BY id
	`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger records: %w", err)
	}
	defer rows.Close()

	var records []entity.LedgerRecord
	for rows.Next() {
		var rec entity.LedgerRecord
		if err := rows.Scan(
			&rec.EmployeeCode,
			&rec.InvoiceNumber,
			&rec.Date,
			&rec.Amount,
			&rec.ClaimType,
			&rec.ClaimID,
			&rec.SourceDigest,
			&rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.Ledger = (*LedgerRepository)(nil)
