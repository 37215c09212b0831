package recognition

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"parking-anpr/internal/domain/parking"
)

const (
	PlateLabel           = "plate"
	DefaultMinConfidence = 0.8
	DefaultCropInset     = 10
)

// SelectRegion returns the highest-confidence "plate" candidate at or above
// minConfidence. Equal confidences keep the earliest candidate in detector order.
func SelectRegion(candidates []parking.DetectionCandidate, minConfidence float64) (parking.DetectionCandidate, error) {
	best := -1
	for i, c := range candidates {
		if c.Label != PlateLabel || c.Confidence < minConfidence {
			continue
		}
		if best < 0 || c.Confidence > candidates[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return parking.DetectionCandidate{}, fmt.Errorf("%w: %d candidates, none labelled %q with confidence >= %.2f",
			parking.ErrNoPlateDetected, len(candidates), PlateLabel, minConfidence)
	}
	return candidates[best], nil
}

// CropRegion cuts box out of img after shrinking it by inset pixels per side.
// The inset is dropped when it would leave nothing.
func CropRegion(img image.Image, box parking.BoundingBox, inset int) (image.Image, error) {
	bounds := img.Bounds()
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Add(bounds.Min)

	if inset > 0 {
		shrunk := image.Rect(rect.Min.X+inset, rect.Min.Y+inset, rect.Max.X-inset, rect.Max.Y-inset)
		if shrunk.Dx() > 0 && shrunk.Dy() > 0 {
			rect = shrunk
		}
	}

	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: box %v outside image %v", parking.ErrNoPlateDetected, box, bounds)
	}
	return imaging.Crop(img, rect), nil
}
