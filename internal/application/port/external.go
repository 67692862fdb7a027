package port

import (
	"context"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// TextExtractor turns a document payload into OCR lines ordered top to bottom
type TextExtractor interface {
	TextLines(ctx context.Context, payload []byte) ([]entity.OcrLine, error)
}

// FieldExtractor derives the invoice fields from OCR lines
type FieldExtractor interface {
	ExtractContext(ctx context.Context, lines []entity.OcrLine, knownInvoices ...string) entity.ExtractedFields
}

// Decrypter unwraps encrypted tokens. Failures yield empty values, never errors.
type Decrypter interface {
	DecryptText(token string) string
	DecryptFile(token string) []byte
}

// FieldFallback suggests values for fields the heuristics missed
type FieldFallback interface {
	Fill(ctx context.Context, text string, fields entity.ExtractedFields) (entity.ExtractedFields, error)
}
