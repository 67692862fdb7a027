package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/extraction"
)

// maxExcelSerial is the serial number of 9999-12-31
const maxExcelSerial = 2958465

// RawRows is the read option used everywhere: date cells come back as serial numbers
var RawRows = excelize.Options{RawCellValue: true}

// HeaderIndex maps trimmed header names to their column index
func HeaderIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; name != "" && !dup {
			index[name] = i
		}
	}
	return index
}

// Cell returns the trimmed value at column i, or "" past the end of a short row
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// CellDate renders a date cell as dd-mm-yyyy. Serial numbers and loose date strings are
// converted; anything else is returned trimmed.
func CellDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(entity.CanonicalDateLayout)
		}
	}

	if t, ok := extraction.ParseLooseDate(raw); ok {
		return t.Format(entity.CanonicalDateLayout)
	}
	return raw
}

// CellAmount parses a numeric cell. Blank cells are zero; text cells go through the
// OCR amount parser so currency symbols and European separators are accepted.
func CellAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, nil
	}
	if !strings.ContainsAny(raw, "0123456789") {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return extraction.ParseAmount(raw), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
