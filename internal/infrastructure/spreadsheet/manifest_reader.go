package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

var (
	// ErrUnreadableManifest is returned when the payload is not a readable workbook
	ErrUnreadableManifest = errors.New("manifest is not a readable spreadsheet")

	// ErrManifestColumnMissing is returned when a required header is absent
	ErrManifestColumnMissing = errors.New("manifest column missing")
)

var requiredColumns = []string{
	entity.ManifestColumnInvoice,
	entity.ManifestColumnDate,
	entity.ManifestColumnAmount,
}

// ManifestReader reads invoice rows from the first sheet of an xlsx manifest
type ManifestReader struct {
	logger *zap.Logger
}

// NewManifestReader creates a new manifest reader
func NewManifestReader(logger *zap.Logger) *ManifestReader {
	return &ManifestReader{logger: logger}
}

// ReadRows returns one ManifestRow per non-blank data row
func (r *ManifestReader) ReadRows(ctx context.Context, payload []byte) ([]entity.ManifestRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableManifest, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableManifest)
	}

	rows, err := f.GetRows(sheets[0], RawRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableManifest, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrManifestColumnMissing, entity.ManifestColumnInvoice)
	}

	header := HeaderIndex(rows[0])
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrManifestColumnMissing, col)
		}
	}

	invoiceCol := header[entity.ManifestColumnInvoice]
	dateCol := header[entity.ManifestColumnDate]
	amountCol := header[entity.ManifestColumnAmount]

	manifest := make([]entity.ManifestRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		amount, err := CellAmount(Cell(row, amountCol))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %s %v", ErrUnreadableManifest, i+2, entity.ManifestColumnAmount, err)
		}

		manifest = append(manifest, entity.ManifestRow{
			InvoiceNumber: Cell(row, invoiceCol),
			Date:          CellDate(Cell(row, dateCol)),
			Amount:        amount,
		})
	}

	r.logger.Debug("Manifest read", zap.String("sheet", sheets[0]), zap.Int("rows", len(manifest)))
	return manifest, nil
}

// Verify interface compliance
var _ port.ManifestReader = (*ManifestReader)(nil)
