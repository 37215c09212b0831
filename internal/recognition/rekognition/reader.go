// Package rekognition reads plate text with Amazon Rekognition DetectText.
package rekognition

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"parking-anpr/internal/recognition"
)

type API interface {
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type Reader struct {
	client API
}

func New(client API) *Reader {
	return &Reader{client: client}
}

// ReadText returns the most confident LINE detection, or "" when Rekognition
// found no text.
func (r *Reader) ReadText(ctx context.Context, img image.Image) (string, error) {
	buf, err := recognition.EncodePNG(img)
	if err != nil {
		return "", err
	}

	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: buf},
	})
	if err != nil {
		return "", fmt.Errorf("rekognition detect text: %w", err)
	}
	return bestLine(out.TextDetections), nil
}

func bestLine(detections []types.TextDetection) string {
	var (
		best     string
		bestConf float32 = -1
	)
	for _, d := range detections {
		if d.Type != types.TextTypesLine || d.DetectedText == nil {
			continue
		}
		conf := float32(0)
		if d.Confidence != nil {
			conf = *d.Confidence
		}
		if conf > bestConf {
			best, bestConf = *d.DetectedText, conf
		}
	}
	return strings.TrimSpace(best)
}

var _ recognition.TextReader = (*Reader)(nil)
