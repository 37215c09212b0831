package recognition

import (
	"context"
	"image"

	"parking-anpr/internal/domain/parking"
)

// Detector locates plate regions. Implementations are loaded once and shared
// across requests; they return an empty slice when nothing is found.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]parking.DetectionCandidate, error)
}

// TextReader reads the text of one cropped plate image. A blank image yields
// an empty string, not an error.
type TextReader interface {
	ReadText(ctx context.Context, img image.Image) (string, error)
}

type DetectorFunc func(ctx context.Context, img image.Image) ([]parking.DetectionCandidate, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]parking.DetectionCandidate, error) {
	return f(ctx, img)
}

type TextReaderFunc func(ctx context.Context, img image.Image) (string, error)

func (f TextReaderFunc) ReadText(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}
