package extraction

import "github.com/garyjia/claim-reconciler/internal/domain/entity"

// strategy is one tier of an extraction cascade
type strategy[T any] struct {
	name string
	run  func(lines []entity.OcrLine) (T, bool)
}

// firstMatch runs strategies in order and returns the first hit with its tier name
func firstMatch[T any](lines []entity.OcrLine, strategies []strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.run(lines); ok {
			return v, s.name, true
		}
	}
	var zero T
	return zero, "", false
}

func tail(lines []entity.OcrLine, n int) []entity.OcrLine {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func head(lines []entity.OcrLine, n int) []entity.OcrLine {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}
