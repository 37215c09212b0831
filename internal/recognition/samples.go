package recognition

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

const (
	DefaultSampleCount = 5
	// TopStripRatio is the share of the crop height holding the jurisdiction
	// code strip, which is cut before OCR.
	TopStripRatio = 0.33
)

// SampleGenerator produces brightness/contrast jittered copies of a plate crop.
type SampleGenerator struct {
	ContrastMin, ContrastMax     float64
	BrightnessMin, BrightnessMax float64
}

func NewSampleGenerator() *SampleGenerator {
	return &SampleGenerator{
		ContrastMin:   0.9,
		ContrastMax:   1.1,
		BrightnessMin: -10,
		BrightnessMax: 10,
	}
}

// Generate returns n samples of img. All randomness comes from rng, so the same
// seed reproduces the same samples. rng is not safe for concurrent use and is
// only touched from the calling goroutine.
func (g *SampleGenerator) Generate(img image.Image, n int, rng *rand.Rand) []image.Image {
	if n <= 0 {
		n = DefaultSampleCount
	}
	base := DropTopStrip(img)

	out := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		alpha := uniform(rng, g.ContrastMin, g.ContrastMax)
		beta := uniform(rng, g.BrightnessMin, g.BrightnessMax)
		out = append(out, jitter(base, alpha, beta))
	}
	return out
}

// DropTopStrip removes the top TopStripRatio of the image height.
func DropTopStrip(img image.Image) image.Image {
	b := img.Bounds()
	cut := int(float64(b.Dy()) * TopStripRatio)
	if cut <= 0 || cut >= b.Dy() {
		return img
	}
	return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+cut, b.Max.X, b.Max.Y))
}

func jitter(img image.Image, alpha, beta float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clip(alpha*float64(c.R) + beta),
			G: clip(alpha*float64(c.G) + beta),
			B: clip(alpha*float64(c.B) + beta),
			A: c.A,
		}
	})
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clip(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
