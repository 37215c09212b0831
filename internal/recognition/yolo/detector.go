// Package yolo detects licence plates with a YOLOv5 network exported to ONNX,
// evaluated through OpenCV's DNN module.
package yolo

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parking-anpr/internal/domain/parking"
)

type Config struct {
	ModelPath string
	// InputSize is the square network input, 640 for stock YOLOv5 exports.
	InputSize      int
	ScoreThreshold float32
	NMSThreshold   float32
	ClassNames     []string
}

// Detector wraps one loaded network. OpenCV nets are not reentrant, so
// inference is serialised; the lock is private to the detector.
type Detector struct {
	mu  sync.Mutex
	net gocv.Net
	cfg Config
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) (*Detector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.25
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}
	if len(cfg.ClassNames) == 0 {
		cfg.ClassNames = []string{"plate"}
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load detector model %q", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	log.Info().Str("model", cfg.ModelPath).Int("input_size", cfg.InputSize).Msg("plate detector loaded")
	return &Detector{net: net, cfg: cfg, log: log.With().Str("component", "yolo").Logger()}, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]parking.DetectionCandidate, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	size := d.cfg.InputSize
	// ImageToMatRGB lays pixels out as BGR; swap so the network sees RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	return d.decode(out, mat.Cols(), mat.Rows())
}

// decode reads the [1, N, 5+classes] YOLOv5 head: cx, cy, w, h, objectness,
// then one score per class, all in network input pixels.
func (d *Detector) decode(out gocv.Mat, imgW, imgH int) ([]parking.DetectionCandidate, error) {
	dims := out.Size()
	if len(dims) != 3 || dims[2] < 6 {
		return nil, fmt.Errorf("unexpected detector output shape %v", dims)
	}
	rows, stride := dims[1], dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read detector output: %w", err)
	}

	sx := float32(imgW) / float32(d.cfg.InputSize)
	sy := float32(imgH) / float32(d.cfg.InputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < rows; i++ {
		row := data[i*stride : (i+1)*stride]
		objectness := row[4]
		if objectness < d.cfg.ScoreThreshold {
			continue
		}
		classID, classScore := 0, float32(0)
		for c, s := range row[5:] {
			if s > classScore {
				classID, classScore = c, s
			}
		}
		score := objectness * classScore
		if score < d.cfg.ScoreThreshold {
			continue
		}

		cx, cy, w, h := row[0]*sx, row[1]*sy, row[2]*sx, row[3]*sy
		boxes = append(boxes, image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		))
		scores = append(scores, score)
		classes = append(classes, classID)
	}
	if len(boxes) == 0 {
		return []parking.DetectionCandidate{}, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, d.cfg.ScoreThreshold, d.cfg.NMSThreshold)
	candidates := make([]parking.DetectionCandidate, 0, len(keep))
	for _, k := range keep {
		b := boxes[k]
		candidates = append(candidates, parking.DetectionCandidate{
			Box:        parking.BoundingBox{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y},
			Confidence: float64(scores[k]),
			Label:      d.className(classes[k]),
		})
	}

	d.log.Debug().Int("raw", len(boxes)).Int("kept", len(candidates)).Msg("detector output decoded")
	return candidates, nil
}

func (d *Detector) className(id int) string {
	if id >= 0 && id < len(d.cfg.ClassNames) {
		return d.cfg.ClassNames[id]
	}
	return fmt.Sprintf("class_%d", id)
}
