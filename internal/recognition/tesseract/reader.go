package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"parking-anpr/internal/recognition"
)

const plateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Config struct {
	Language string
	// PageSegMode defaults to a single text line, which is how a plate crop reads.
	PageSegMode gosseract.PageSegMode
}

// Reader runs tesseract on plate crops. gosseract clients are not safe for
// concurrent use, so each call gets its own.
type Reader struct {
	cfg Config
}

func New(cfg Config) *Reader {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = gosseract.PSM_SINGLE_LINE
	}
	return &Reader{cfg: cfg}
}

func (r *Reader) ReadText(ctx context.Context, img image.Image) (string, error) {
	buf, err := recognition.EncodePNG(img)
	if err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := r.read(buf)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (r *Reader) read(buf []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.cfg.Language); err != nil {
		return "", fmt.Errorf("tesseract language: %w", err)
	}
	if err := client.SetWhitelist(plateWhitelist); err != nil {
		return "", fmt.Errorf("tesseract whitelist: %w", err)
	}
	if err := client.SetPageSegMode(r.cfg.PageSegMode); err != nil {
		return "", fmt.Errorf("tesseract psm: %w", err)
	}
	if err := client.SetImageFromBytes(buf); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}

var _ recognition.TextReader = (*Reader)(nil)
