package recognition

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/rs/zerolog"
)

var nopLog = zerolog.New(io.Discard)

func filled(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func paint(img *image.NRGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
