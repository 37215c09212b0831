package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/utils"
)

// Consolidator runs the OCR adapter over every sample and merges the readings
// by per-position majority vote.
type Consolidator struct {
	reader TextReader
	log    zerolog.Logger
}

func NewConsolidator(reader TextReader, log zerolog.Logger) *Consolidator {
	return &Consolidator{
		reader: reader,
		log:    log.With().Str("component", "ocr_consolidator").Logger(),
	}
}

// Read returns the consolidated string and the cleaned per-sample readings in
// sample order. A failing adapter call counts as an empty reading.
func (c *Consolidator) Read(ctx context.Context, samples []image.Image) (string, []string, error) {
	readings := make([]string, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range samples {
		g.Go(func() error {
			text, err := c.reader.ReadText(gctx, img)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.log.Warn().Err(err).Int("sample", i).Msg("OCR sample failed")
				return nil
			}
			readings[i] = utils.StripNonAlnum(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", readings, fmt.Errorf("%w: OCR ensemble: %v", parking.ErrRecognitionTimeout, err)
		}
		return "", readings, err
	}
	if err := ctx.Err(); err != nil {
		return "", readings, fmt.Errorf("%w: OCR ensemble: %v", parking.ErrRecognitionTimeout, err)
	}

	voted := Vote(readings)
	if voted == "" {
		return "", readings, fmt.Errorf("%w: %d samples read nothing", parking.ErrEmptyOCRResult, len(readings))
	}
	return voted, readings, nil
}

// Vote picks, for every position up to the longest reading, the character seen
// most often among readings long enough to have one. Ties go to the character
// that appeared first in reading order.
func Vote(readings []string) string {
	maxLen := 0
	for _, r := range readings {
		maxLen = max(maxLen, len(r))
	}

	out := make([]byte, 0, maxLen)
	counts := make(map[byte]int, len(readings))
	order := make([]byte, 0, len(readings))
	for i := 0; i < maxLen; i++ {
		clear(counts)
		order = order[:0]
		for _, r := range readings {
			if len(r) <= i {
				continue
			}
			ch := r[i]
			if counts[ch] == 0 {
				order = append(order, ch)
			}
			counts[ch]++
		}

		winner := order[0]
		for _, ch := range order[1:] {
			if counts[ch] > counts[winner] {
				winner = ch
			}
		}
		out = append(out, winner)
	}
	return string(out)
}
