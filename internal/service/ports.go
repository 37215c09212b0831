package service

import (
	"context"
	"image"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/recognition"
)

type PlateRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (*recognition.Result, error)
	Normalize(raw string) (string, error)
}

// SnapshotStore keeps the raw upload and returns where it can be fetched.
type SnapshotStore interface {
	Save(ctx context.Context, event parking.EventType, data []byte, contentType string) (string, error)
}

type Notifier interface {
	Publish(ctx context.Context, event parking.SessionEvent) error
}
