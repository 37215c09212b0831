package recognition

import (
	"image"

	"github.com/disintegration/imaging"
)

// WhiteThreshold is the luminance above which a pixel counts as scanner border.
const WhiteThreshold = 245

// TrimBorder crops img to the bounding box of its largest 8-connected region of
// non-white pixels. Regions are compared by pixel count; ties keep the region
// met first in raster order. An image with no non-white pixels is returned as is.
func TrimBorder(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w == 0 || h == 0 {
		return img
	}

	ink := make([]bool, w*h)
	found := false
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			if row[x*4] <= WhiteThreshold {
				ink[y*w+x] = true
				found = true
			}
		}
	}
	if !found {
		return img
	}

	best, ok := largestRegion(ink, w, h)
	if !ok {
		return img
	}
	if best.Min.X == 0 && best.Min.Y == 0 && best.Max.X == w && best.Max.Y == h {
		return img
	}
	return imaging.Crop(img, best.Add(img.Bounds().Min))
}

func largestRegion(ink []bool, w, h int) (image.Rectangle, bool) {
	seen := make([]bool, len(ink))
	stack := make([]int, 0, 64)

	var (
		best     image.Rectangle
		bestSize int
	)
	for start := range ink {
		if !ink[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)

		size := 0
		minX, minY := w, h
		maxX, maxY := -1, -1
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			px, py := p%w, p/w
			minX, maxX = min(minX, px), max(maxX, px)
			minY, maxY = min(minY, py), max(maxY, py)

			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
						continue
					}
					q := ny*w + nx
					if ink[q] && !seen[q] {
						seen[q] = true
						stack = append(stack, q)
					}
				}
			}
		}

		if size > bestSize {
			bestSize = size
			best = image.Rect(minX, minY, maxX+1, maxY+1)
		}
	}
	return best, bestSize > 0
}
