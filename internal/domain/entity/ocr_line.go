package entity

import "strings"

// BoundingBox is the pixel rectangle an OCR line was read from
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OcrLine is one recognized line of text, in top-to-bottom reading order
type OcrLine struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bounding_box"`
}

// LinesFromText splits flat text into lines with full confidence.
// Text without line breaks yields a single line.
func LinesFromText(text string) []OcrLine {
	var lines []OcrLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lines = append(lines, OcrLine{Text: raw, Confidence: 1})
	}
	return lines
}

// FilterByConfidence drops lines at or below the minimum confidence
func FilterByConfidence(lines []OcrLine, min float64) []OcrLine {
	kept := make([]OcrLine, 0, len(lines))
	for _, l := range lines {
		if l.Confidence > min {
			kept = append(kept, l)
		}
	}
	return kept
}

// JoinLines concatenates line texts with the given separator
func JoinLines(lines []OcrLine, sep string) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, sep)
}
