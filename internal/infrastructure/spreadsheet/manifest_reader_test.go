package spreadsheet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// buildWorkbook writes rows into the default sheet and returns the xlsx bytes
func buildWorkbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestManifestReader_ReadRows(t *testing.T) {
	payload := buildWorkbook(t,
		[]interface{}{" Invoice_No ", "Date", "Total_Amount", "Notes"},
		[]interface{}{"M-1", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), 60.5, "cab"},
		[]interface{}{"M-2", "03/05/2024", "1,200"},
		[]interface{}{},
		[]interface{}{"M-3", "2024-05-04", nil},
	)

	rows, err := NewManifestReader(zap.NewNop()).ReadRows(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, []entity.ManifestRow{
		{InvoiceNumber: "M-1", Date: "01-05-2024", Amount: 60.5},
		{InvoiceNumber: "M-2", Date: "03-05-2024", Amount: 1200},
		{InvoiceNumber: "M-3", Date: "04-05-2024", Amount: 0},
	}, rows)
}

func TestManifestReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
		message string
	}{
		{
			name:    "not a workbook",
			payload: []byte("PK\x03\x04 truncated"),
			wantErr: ErrUnreadableManifest,
		},
		{
			name: "missing amount column",
			payload: buildWorkbook(t,
				[]interface{}{"Invoice_No", "Date", "Amount"},
				[]interface{}{"M-1", "01-05-2024", 10},
			),
			wantErr: ErrManifestColumnMissing,
			message: "Total_Amount",
		},
		{
			name:    "empty sheet",
			payload: buildWorkbook(t),
			wantErr: ErrManifestColumnMissing,
		},
		{
			name: "amount is not a number",
			payload: buildWorkbook(t,
				[]interface{}{"Invoice_No", "Date", "Total_Amount"},
				[]interface{}{"M-1", "01-05-2024", "ten"},
			),
			wantErr: ErrUnreadableManifest,
			message: "row 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManifestReader(zap.NewNop()).ReadRows(context.Background(), tt.payload)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestCellDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"45413", "01-05-2024"},
		{"01/05/2024", "01-05-2024"},
		{"2024-05-01 00:00:00", "01-05-2024"},
		{"not a date", "not a date"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CellDate(tt.raw), "CellDate(%q)", tt.raw)
	}
}

func TestHeaderIndex(t *testing.T) {
	index := HeaderIndex([]string{" Invoice_No", "Date", "", "Date"})
	assert.Equal(t, map[string]int{"Invoice_No": 0, "Date": 1}, index)
	assert.Equal(t, "", Cell([]string{"a"}, 3))
}
