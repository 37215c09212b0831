// Package snapshot keeps the raw upload behind each recognized plate in S3.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"parking-anpr/internal/domain/parking"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	client S3API
	bucket string
	region string
	now    func() time.Time
}

func NewStore(client S3API, bucket, region string) *Store {
	return &Store{client: client, bucket: bucket, region: region, now: time.Now}
}

// Save writes data under <event>/<yyyy>/<mm>/<dd>/<uuid><ext> and returns the
// object URL.
func (s *Store) Save(ctx context.Context, event parking.EventType, data []byte, contentType string) (string, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	key := s.key(event, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"event": string(event),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *Store) key(event parking.EventType, contentType string) string {
	day := s.now().UTC().Format("2006/01/02")
	return path.Join(string(event), day, uuid.NewString()+extension(contentType))
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}
