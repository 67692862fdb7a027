package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"blank", "  ", 0},
		{"numeric", "1415.5", 1415.5},
		{"comma thousands", "1,415.00", 1415},
		{"dot thousands", "1.415,00", 1415},
		{"currency symbol", "₹250", 250},
		{"decimal comma", "60,50", 60.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CellAmount(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestCellAmount_RejectsText(t *testing.T) {
	_, err := CellAmount("ten")
	assert.Error(t, err)
}
