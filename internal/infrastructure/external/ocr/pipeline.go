package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// ErrNoEngine is returned when an image needs OCR but no engine is configured
var ErrNoEngine = errors.New("no OCR engine configured")

// Config holds pipeline settings
type Config struct {
	MinConfidence float64
	TryRotations  bool
	PDFDPI        float64
}

// Pipeline turns PDFs and images into OCR lines.
// PDF pages with a text layer are read directly; everything else goes through the engine.
type Pipeline struct {
	engine Engine
	cfg    Config
	logger *zap.Logger
}

// NewPipeline creates a new pipeline. engine may be nil if only text-layer PDFs are expected.
func NewPipeline(engine Engine, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.PDFDPI <= 0 {
		cfg.PDFDPI = 300
	}
	return &Pipeline{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// TextLines implements port.TextExtractor
func (p *Pipeline) TextLines(ctx context.Context, payload []byte) ([]entity.OcrLine, error) {
	if len(payload) == 0 {
		return nil, entity.ErrEmptyPayload
	}

	var (
		lines []entity.OcrLine
		err   error
	)
	if bytes.HasPrefix(payload, []byte("%PDF")) {
		lines, err = p.pdfLines(ctx, payload)
	} else {
		lines, err = p.imageLines(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	kept := entity.FilterByConfidence(lines, p.cfg.MinConfidence)
	p.logger.Debug("Document text extracted",
		zap.Int("lines", len(lines)),
		zap.Int("kept", len(kept)))
	return kept, nil
}

func (p *Pipeline) pdfLines(ctx context.Context, payload []byte) ([]entity.OcrLine, error) {
	doc, err := fitz.NewFromMemory(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var lines []entity.OcrLine
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.Text(n)
		if err == nil && strings.TrimSpace(text) != "" {
			lines = append(lines, entity.LinesFromText(text)...)
			continue
		}

		img, err := doc.ImageDPI(n, p.cfg.PDFDPI)
		if err != nil {
			p.logger.Warn("Failed to render PDF page", zap.Int("page", n), zap.Error(err))
			continue
		}
		pageLines, err := p.recognize(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n+1, err)
		}
		lines = append(lines, pageLines...)
	}
	return lines, nil
}

func (p *Pipeline) imageLines(ctx context.Context, payload []byte) ([]entity.OcrLine, error) {
	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return p.recognize(ctx, img)
}

// recognize runs the engine on each orientation and keeps the one yielding the most text
func (p *Pipeline) recognize(ctx context.Context, img image.Image) ([]entity.OcrLine, error) {
	if p.engine == nil {
		return nil, ErrNoEngine
	}

	angles := []int{0}
	if p.cfg.TryRotations {
		angles = []int{0, 90, 180, 270}
	}

	var (
		best      []entity.OcrLine
		bestScore = -1
		lastErr   error
	)
	for _, angle := range angles {
		encoded, err := encodeJPEG(rotate(img, angle))
		if err != nil {
			return nil, err
		}

		lines, err := p.engine.Recognize(ctx, encoded)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.Warn("OCR attempt failed", zap.Int("angle", angle), zap.Error(err))
			lastErr = err
			continue
		}

		score := textScore(entity.FilterByConfidence(lines, p.cfg.MinConfidence))
		if score > bestScore {
			best, bestScore = lines, score
		}
	}

	if bestScore < 0 {
		return nil, lastErr
	}
	return best, nil
}

// rotate turns the image counter-clockwise by angle degrees
func rotate(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// textScore counts recognized characters
func textScore(lines []entity.OcrLine) int {
	n := 0
	for _, l := range lines {
		n += utf8.RuneCountInString(strings.TrimSpace(l.Text))
	}
	return n
}

// Verify interface compliance
var _ port.TextExtractor = (*Pipeline)(nil)
