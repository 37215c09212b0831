// Command platectl runs the plate recognition pipeline over image files
// without touching any session state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/logger"
	"parking-anpr/internal/recognition"
	"parking-anpr/internal/recognition/tesseract"
	"parking-anpr/internal/recognition/yolo"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type options struct {
	model       string
	lang        string
	verbose     bool
	recognition recognition.Options
	files       []string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("platectl", flag.ContinueOnError)
	var (
		model   = fs.String("model", "", "YOLO ONNX plate model; empty reads each image as a pre-cropped plate")
		samples = fs.Int("samples", recognition.DefaultSampleCount, "augmented samples per image")
		seed    = fs.Uint64("seed", 0, "augmentation seed, 0 for random")
		minConf = fs.Float64("min-confidence", recognition.DefaultMinConfidence, "minimum detector confidence")
		inset   = fs.Int("inset", recognition.DefaultCropInset, "pixels trimmed from each side of the detected box")
		length  = fs.Int("length", recognition.DefaultPlateLength, "canonical plate length")
		timeout = fs.Duration("timeout", recognition.DefaultTimeout, "per-image recognition timeout")
		lang    = fs.String("lang", "eng", "tesseract language")
		verbose = fs.Bool("v", false, "debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: platectl [flags] image...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, errors.New("no images given")
	}

	return &options{
		model:   *model,
		lang:    *lang,
		verbose: *verbose,
		recognition: recognition.Options{
			MinConfidence: *minConf,
			CropInset:     *inset,
			Samples:       *samples,
			Timeout:       *timeout,
			PlateLength:   *length,
			Seed:          *seed,
		},
		files: fs.Args(),
	}, nil
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		return 2
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log := logger.New(level, true)

	var detector recognition.Detector
	if opts.model != "" {
		d, err := yolo.New(yolo.Config{ModelPath: opts.model, ScoreThreshold: float32(opts.recognition.MinConfidence)}, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load model:", err)
			return 1
		}
		defer d.Close()
		detector = d
	}

	recognizer := recognition.NewRecognizer(detector, tesseract.New(tesseract.Config{Language: opts.lang}), opts.recognition, log)

	failed := 0
	for _, path := range opts.files {
		if err := recognizeFile(recognizer, path, log); err != nil {
			fmt.Printf("%s\terror: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func recognizeFile(r *recognition.Recognizer, path string, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := recognition.DecodeImage(f)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := r.Recognize(context.Background(), img)
	if err != nil {
		if parking.IsRecognitionFailure(err) && len(res.Samples) > 0 {
			err = fmt.Errorf("%w (samples: %s)", err, quoted(res.Samples))
		}
		return err
	}
	log.Debug().Str("file", path).Dur("took", time.Since(start)).Msg("recognized")
	fmt.Printf("%s\t%s\tconsolidated=%s\tsamples=%s\n", path, res.Plate, res.Consolidated, quoted(res.Samples))
	return nil
}

func quoted(samples []string) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		parts[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
