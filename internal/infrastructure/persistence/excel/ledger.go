package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/spreadsheet"
)

// DefaultSheet is the worksheet the ledger lives on
const DefaultSheet = "Claims"

// Ledger column headers
const (
	ColumnEmployee   = "Employee_Code"
	ColumnInvoice    = entity.ManifestColumnInvoice
	ColumnDate       = entity.ManifestColumnDate
	ColumnAmount     = entity.ManifestColumnAmount
	ColumnClaimType  = "Claim_Type"
	ColumnClaimID    = "Claim_ID"
	ColumnDigest     = "Source_Digest"
	ColumnRecordedAt = "Recorded_At"
)

var columns = []string{
	ColumnEmployee, ColumnInvoice, ColumnDate, ColumnAmount,
	ColumnClaimType, ColumnClaimID, ColumnDigest, ColumnRecordedAt,
}

type txKey struct{}

// tx collects the records appended inside one WithTransaction call
type tx struct {
	ledger *Ledger
	staged []entity.LedgerRecord
}

// Ledger is an append-only claim ledger kept in memory and persisted to one xlsx file.
// Every commit rewrites the workbook to a temp file and renames it over the old one.
type Ledger struct {
	path    string
	sheet   string
	mu      sync.Mutex
	records []entity.LedgerRecord
	closed  bool
	logger  *zap.Logger
}

// Open loads the ledger at path, or starts an empty one if the file does not exist
func Open(path, sheet string, logger *zap.Logger) (*Ledger, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	l := &Ledger{path: path, sheet: sheet, logger: logger}

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	l.records = records

	logger.Info("Ledger opened",
		zap.String("path", path),
		zap.String("sheet", sheet),
		zap.Int("records", len(records)))
	return l, nil
}

// WithTransaction holds the ledger lock for the whole of fn.
// Records appended inside fn are persisted only if fn returns nil.
func (l *Ledger) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t := l.txFrom(ctx); t != nil {
		return fn(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return port.ErrLedgerClosed
	}

	t := &tx{ledger: l}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if len(t.staged) == 0 {
		return nil
	}
	return l.commit(t.staged)
}

// Lookup reports whether a committed record matches the fingerprint within tolerance
func (l *Ledger) Lookup(ctx context.Context, fp entity.LedgerFingerprint, tolerance float64) (bool, error) {
	if l.txFrom(ctx) == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	if l.closed {
		return false, port.ErrLedgerClosed
	}

	for _, r := range l.records {
		if fp.Matches(r, tolerance) {
			return true, nil
		}
	}
	return false, nil
}

// AppendAll stages records inside a transaction, or commits them at once outside one
func (l *Ledger) AppendAll(ctx context.Context, records []entity.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	if t := l.txFrom(ctx); t != nil {
		t.staged = append(t.staged, records...)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return port.ErrLedgerClosed
	}
	return l.commit(records)
}

// Count returns the number of committed records
func (l *Ledger) Count(ctx context.Context) (int, error) {
	if l.txFrom(ctx) == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	if l.closed {
		return 0, port.ErrLedgerClosed
	}
	return len(l.records), nil
}

// Close rejects further use. Committed records are already on disk.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Ledger) txFrom(ctx context.Context) *tx {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.ledger == l {
		return t
	}
	return nil
}

// commit persists the current records plus the new ones; memory is updated only after the file is.
// Callers hold l.mu.
func (l *Ledger) commit(records []entity.LedgerRecord) error {
	now := time.Now().UTC()
	next := make([]entity.LedgerRecord, 0, len(l.records)+len(records))
	next = append(next, l.records...)
	for _, r := range records {
		if r.RecordedAt.IsZero() {
			r.RecordedAt = now
		}
		next = append(next, r)
	}

	if err := l.save(next); err != nil {
		l.logger.Error("Failed to persist ledger", zap.String("path", l.path), zap.Error(err))
		return fmt.Errorf("failed to persist ledger: %w", err)
	}

	l.records = next
	l.logger.Info("Ledger records appended", zap.Int("count", len(records)), zap.Int("total", len(next)))
	return nil
}

func (l *Ledger) load() ([]entity.LedgerRecord, error) {
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(l.sheet); idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(l.sheet, spreadsheet.RawRows)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger sheet %s: %w", l.sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := spreadsheet.HeaderIndex(rows[0])
	for _, col := range []string{ColumnEmployee, ColumnInvoice, ColumnDate, ColumnAmount} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("ledger %s is missing column %s", l.path, col)
		}
	}
	col := func(row []string, name string) string {
		i, ok := header[name]
		if !ok {
			return ""
		}
		return spreadsheet.Cell(row, i)
	}

	records := make([]entity.LedgerRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		amount, err := spreadsheet.CellAmount(col(row, ColumnAmount))
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i+2, err)
		}

		record := entity.LedgerRecord{
			EmployeeCode:  col(row, ColumnEmployee),
			InvoiceNumber: col(row, ColumnInvoice),
			Date:          spreadsheet.CellDate(col(row, ColumnDate)),
			Amount:        amount,
			ClaimType:     col(row, ColumnClaimType),
			ClaimID:       col(row, ColumnClaimID),
			SourceDigest:  col(row, ColumnDigest),
		}
		if ts := col(row, ColumnRecordedAt); ts != "" {
			recordedAt, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				l.logger.Warn("Ignoring unreadable ledger timestamp",
					zap.String("path", l.path),
					zap.Int("row", i+2),
					zap.String("value", ts),
					zap.Error(err))
			}
			record.RecordedAt = recordedAt
		}
		if record.EmployeeCode == "" && record.InvoiceNumber == "" && record.Date == "" && amount == 0 {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// save writes records to a temp file next to the ledger and renames it into place
func (l *Ledger) save(records []entity.LedgerRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), l.sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(l.sheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.EmployeeCode,
			r.InvoiceNumber,
			r.Date,
			r.Amount,
			r.ClaimType,
			r.ClaimID,
			r.SourceDigest,
			r.RecordedAt.Format(time.RFC3339),
		}
		if err := f.SetSheetRow(l.sheet, cell, &row); err != nil {
			return err
		}
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, l.path)
}

// Verify interface compliance
var _ port.Ledger = (*Ledger)(nil)
