package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"parking-anpr/internal/domain/parking"
)

const DefaultTimeout = 20 * time.Second

type Options struct {
	MinConfidence  float64
	CropInset      int
	Samples        int
	Timeout        time.Duration
	PlateLength    int
	MinPlateLength int
	// Seed pins the augmentation randomness. Zero draws a fresh seed per call.
	Seed uint64
}

func (o *Options) setDefaults() {
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.CropInset < 0 {
		o.CropInset = 0
	}
	if o.Samples <= 0 {
		o.Samples = DefaultSampleCount
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PlateLength <= 0 {
		o.PlateLength = DefaultPlateLength
	}
	if o.MinPlateLength <= 0 {
		o.MinPlateLength = o.PlateLength
	}
}

type Result struct {
	Plate        string
	Consolidated string
	Samples      []string
	Candidate    parking.DetectionCandidate
}

// Recognizer is the image-to-plate pipeline. It holds no mutable state and is
// safe for concurrent use; the adapters it wraps are shared read-only.
type Recognizer struct {
	detector     Detector
	generator    *SampleGenerator
	consolidator *Consolidator
	normalizer   *Normalizer
	opts         Options
	log          zerolog.Logger
}

// NewRecognizer wires the pipeline. A nil detector treats every image as an
// already cropped plate.
func NewRecognizer(detector Detector, reader TextReader, opts Options, log zerolog.Logger) *Recognizer {
	opts.setDefaults()
	return &Recognizer{
		detector:     detector,
		generator:    NewSampleGenerator(),
		consolidator: NewConsolidator(reader, log),
		normalizer:   NewNormalizer(opts.PlateLength, opts.MinPlateLength),
		opts:         opts,
		log:          log.With().Str("component", "recognizer").Logger(),
	}
}

func (r *Recognizer) Options() Options { return r.opts }

func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	res := &Result{}

	candidate, crop, err := r.locate(ctx, img)
	if err != nil {
		return res, err
	}
	res.Candidate = candidate

	crop = TrimBorder(crop)
	samples := r.generator.Generate(crop, r.opts.Samples, r.rng())

	consolidated, readings, err := r.consolidator.Read(ctx, samples)
	res.Samples = readings
	if err != nil {
		return res, err
	}
	res.Consolidated = consolidated

	plate, err := r.normalizer.Normalize(consolidated)
	if err != nil {
		return res, err
	}
	res.Plate = plate

	r.log.Debug().
		Str("plate", plate).
		Str("consolidated", consolidated).
		Strs("samples", readings).
		Float64("confidence", candidate.Confidence).
		Msg("plate recognized")
	return res, nil
}

// Normalize runs only the normalization stage, for plates typed in by an operator.
func (r *Recognizer) Normalize(s string) (string, error) {
	return r.normalizer.Normalize(s)
}

func (r *Recognizer) locate(ctx context.Context, img image.Image) (parking.DetectionCandidate, image.Image, error) {
	b := img.Bounds()
	if r.detector == nil {
		whole := parking.DetectionCandidate{
			Box:        parking.BoundingBox{X1: 0, Y1: 0, X2: b.Dx(), Y2: b.Dy()},
			Confidence: 1,
			Label:      PlateLabel,
		}
		return whole, img, nil
	}

	candidates, err := r.detector.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return parking.DetectionCandidate{}, nil, fmt.Errorf("%w: detector: %v", parking.ErrRecognitionTimeout, err)
		}
		return parking.DetectionCandidate{}, nil, fmt.Errorf("%w: detector: %v", parking.ErrNoPlateDetected, err)
	}

	candidate, err := SelectRegion(candidates, r.opts.MinConfidence)
	if err != nil {
		return candidate, nil, err
	}
	crop, err := CropRegion(img, candidate.Box, r.opts.CropInset)
	if err != nil {
		return candidate, nil, err
	}
	return candidate, crop, nil
}

func (r *Recognizer) rng() *rand.Rand {
	if r.opts.Seed != 0 {
		return rand.New(rand.NewPCG(r.opts.Seed, r.opts.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
