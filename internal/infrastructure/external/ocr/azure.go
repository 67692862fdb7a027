package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// Engine recognizes printed text in one encoded image
type Engine interface {
	Recognize(ctx context.Context, image []byte) ([]entity.OcrLine, error)
}

// AzureEngine runs Azure Computer Vision printed-text OCR
type AzureEngine struct {
	client computervision.BaseClient
	logger *zap.Logger
}

// NewAzureEngine creates an engine for the given Cognitive Services endpoint
func NewAzureEngine(endpoint, apiKey string, logger *zap.Logger) *AzureEngine {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureEngine{
		client: client,
		logger: logger,
	}
}

// Recognize sends the image and returns its lines in reading order
func (e *AzureEngine) Recognize(ctx context.Context, image []byte) ([]entity.OcrLine, error) {
	result, err := e.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(image)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	lines := linesFromResult(result)
	e.logger.Debug("Azure OCR finished", zap.Int("lines", len(lines)))
	return lines, nil
}

// linesFromResult flattens regions into lines. The printed-text API reports no
// per-word confidence, so every line is fully trusted.
func linesFromResult(result computervision.OcrResult) []entity.OcrLine {
	if result.Regions == nil {
		return nil
	}

	var lines []entity.OcrLine
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}

			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil && *word.Text != "" {
					words = append(words, *word.Text)
				}
			}
			if len(words) == 0 {
				continue
			}

			ocrLine := entity.OcrLine{Text: strings.Join(words, " "), Confidence: 1}
			if line.BoundingBox != nil {
				ocrLine.Box = parseBoundingBox(*line.BoundingBox)
			}
			lines = append(lines, ocrLine)
		}
	}
	return lines
}

// parseBoundingBox reads Azure's "x,y,width,height" string
func parseBoundingBox(s string) entity.BoundingBox {
	parts := strings.Split(s, ",")
	vals := make([]int, 4)
	for i := 0; i < len(parts) && i < 4; i++ {
		vals[i], _ = strconv.Atoi(strings.TrimSpace(parts[i]))
	}
	return entity.BoundingBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
}
