package recognition

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestGenerateDropsTopStrip(t *testing.T) {
	img := filled(40, 30, color.Gray{Y: 128})
	samples := NewSampleGenerator().Generate(img, 3, seeded(1))

	require.Len(t, samples, 3)
	for _, s := range samples {
		assert.Equal(t, image.Rect(0, 0, 40, 21), s.Bounds())
	}
}

func TestGenerateIsReproducibleForSeed(t *testing.T) {
	img := filled(20, 12, color.Gray{Y: 128})
	g := NewSampleGenerator()

	a := g.Generate(img, DefaultSampleCount, seeded(42))
	b := g.Generate(img, DefaultSampleCount, seeded(42))
	require.Len(t, a, DefaultSampleCount)
	for i := range a {
		assert.Equal(t, imaging.Clone(a[i]).Pix, imaging.Clone(b[i]).Pix, "sample %d", i)
	}

	c := g.Generate(img, DefaultSampleCount, seeded(43))
	same := true
	for i := range a {
		if string(imaging.Clone(a[i]).Pix) != string(imaging.Clone(c[i]).Pix) {
			same = false
		}
	}
	assert.False(t, same, "different seeds produced identical samples")
}

func TestGenerateStaysWithinPerturbationRange(t *testing.T) {
	img := filled(10, 9, color.Gray{Y: 128})
	for _, s := range NewSampleGenerator().Generate(img, 20, seeded(7)) {
		px := imaging.Clone(s).Pix
		for i := 0; i < len(px); i += 4 {
			v := float64(px[i])
			assert.GreaterOrEqual(t, v, 128*0.9-10-0.5)
			assert.LessOrEqual(t, v, 128*1.1+10+0.5)
			assert.Equal(t, uint8(255), px[i+3])
		}
	}
}

func TestGenerateClipsHighlights(t *testing.T) {
	img := filled(4, 6, color.White)
	g := &SampleGenerator{ContrastMin: 1.1, ContrastMax: 1.1, BrightnessMin: 10, BrightnessMax: 10}
	s := imaging.Clone(g.Generate(img, 1, seeded(1))[0])
	assert.Equal(t, uint8(255), s.Pix[0])

	g = &SampleGenerator{ContrastMin: 0.9, ContrastMax: 0.9, BrightnessMin: -10, BrightnessMax: -10}
	s = imaging.Clone(g.Generate(filled(4, 6, color.Black), 1, seeded(1))[0])
	assert.Equal(t, uint8(0), s.Pix[0])
}

func TestDropTopStripKeepsTinyImages(t *testing.T) {
	img := filled(5, 2, color.Black)
	assert.Same(t, img, DropTopStrip(img))
}
