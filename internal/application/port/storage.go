package port

import (
	"context"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// ManifestReader reads the invoice rows of a spreadsheet manifest
type ManifestReader interface {
	ReadRows(ctx context.Context, payload []byte) ([]entity.ManifestRow, error)
}
