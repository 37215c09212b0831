package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/recognition"
	"parking-anpr/internal/repository"
	"parking-anpr/internal/utils"
)

type Upload struct {
	Image       []byte
	ContentType string
	// ManualPlate skips recognition when an operator typed the plate in.
	ManualPlate string
}

type UploadResult struct {
	Plate           string     `json:"plate"`
	Status          string     `json:"status"`
	Timestamp       time.Time  `json:"timestamp"`
	SessionID       int64      `json:"session_id"`
	DurationMinutes null.Int   `json:"duration_minutes"`
	Fare            null.Float `json:"fare"`
	SnapshotURL     string     `json:"snapshot_url,omitempty"`
}

type Option func(*ParkingService)

func WithSnapshots(store SnapshotStore) Option {
	return func(s *ParkingService) { s.snapshots = store }
}

func WithNotifier(n Notifier) Option {
	return func(s *ParkingService) { s.notifier = n }
}

func WithPlateReads(store repository.PlateReadStore) Option {
	return func(s *ParkingService) { s.reads = store }
}

// WithStorageRetry retries a session write once when the store reports it
// is unavailable.
func WithStorageRetry(enabled bool) Option {
	return func(s *ParkingService) { s.retryOnce = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(s *ParkingService) { s.now = now }
}

// ParkingService turns an upload into a session transition. Recognition runs
// before any session state is touched, so slow detector or OCR calls never
// hold up other plates.
type ParkingService struct {
	recognizer PlateRecognizer
	sessions   *SessionService
	store      repository.SessionStore
	reads      repository.PlateReadStore
	snapshots  SnapshotStore
	notifier   Notifier
	retryOnce  bool
	now        func() time.Time
	log        zerolog.Logger
}

func NewParkingService(recognizer PlateRecognizer, sessions *SessionService, store repository.SessionStore, log zerolog.Logger, opts ...Option) *ParkingService {
	s := &ParkingService{
		recognizer: recognizer,
		sessions:   sessions,
		store:      store,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ParkingService) Entry(ctx context.Context, upload Upload) (*UploadResult, error) {
	return s.process(ctx, parking.EventEntry, upload)
}

func (s *ParkingService) Exit(ctx context.Context, upload Upload) (*UploadResult, error) {
	return s.process(ctx, parking.EventExit, upload)
}

func (s *ParkingService) process(ctx context.Context, event parking.EventType, upload Upload) (*UploadResult, error) {
	if len(upload.Image) == 0 && upload.ManualPlate == "" {
		return nil, fmt.Errorf("%w: image is required", parking.ErrInvalidInput)
	}

	read := &parking.PlateRead{
		ID:        uuid.NewString(),
		Event:     event,
		CreatedAt: s.now(),
	}

	plate, err := s.identify(ctx, upload, read)
	if err != nil {
		s.log.Info().
			Err(err).
			Str("event", string(event)).
			Str("read_id", read.ID).
			Strs("samples", read.Samples).
			Msg("plate not recognized")
		s.audit(ctx, read, err)
		return nil, err
	}
	read.Plate = plate

	at := s.now()
	session, err := s.transition(ctx, event, plate, at)
	if err != nil {
		s.audit(ctx, read, err)
		return nil, err
	}

	// Only uploads that moved a session keep their image.
	if len(upload.Image) > 0 && s.snapshots != nil {
		url, err := s.snapshots.Save(ctx, event, upload.Image, upload.ContentType)
		if err != nil {
			s.log.Warn().Err(err).Str("plate", plate).Msg("failed to store snapshot")
		} else {
			read.SnapshotURL = url
		}
	}
	s.audit(ctx, read, nil)

	result := &UploadResult{
		Plate:       plate,
		SessionID:   session.ID,
		SnapshotURL: read.SnapshotURL,
	}
	if event == parking.EventEntry {
		result.Status = StatusEntryRecorded
		result.Timestamp = session.EntryTime
	} else {
		result.Status = StatusExitRecorded
		result.Timestamp = session.ExitTime.Time
		result.DurationMinutes = session.DurationMinutes
		result.Fare = session.Fare
	}

	s.notify(ctx, parking.SessionEvent{
		Event:     event,
		Plate:     plate,
		SessionID: session.ID,
		Timestamp: result.Timestamp,
		Fare:      result.Fare,
	})
	return result, nil
}

// identify resolves the canonical plate, from the operator's input when given
// and from the image otherwise. It fills in the audit record as it goes.
func (s *ParkingService) identify(ctx context.Context, upload Upload, read *parking.PlateRead) (string, error) {
	if upload.ManualPlate != "" {
		read.Consolidated = utils.StripNonAlnum(upload.ManualPlate)
		return s.recognizer.Normalize(upload.ManualPlate)
	}

	img, err := recognition.DecodeImage(bytes.NewReader(upload.Image))
	if err != nil {
		return "", err
	}

	res, err := s.recognizer.Recognize(ctx, img)
	if res != nil {
		read.Samples = res.Samples
		read.Consolidated = res.Consolidated
		read.Confidence = res.Candidate.Confidence
	}
	if err != nil {
		return "", err
	}
	return res.Plate, nil
}

func (s *ParkingService) transition(ctx context.Context, event parking.EventType, plate string, at time.Time) (*parking.ParkingSession, error) {
	apply := s.sessions.RecordEntry
	if event == parking.EventExit {
		apply = s.sessions.RecordExit
	}

	session, err := apply(ctx, plate, at)
	if err != nil && s.retryOnce && errors.Is(err, parking.ErrStorageUnavailable) && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("plate", plate).Str("event", string(event)).Msg("retrying session write")
		session, err = apply(ctx, plate, at)
	}
	return session, err
}

func (s *ParkingService) notify(ctx context.Context, event parking.SessionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("plate", event.Plate).Int64("session_id", event.SessionID).Msg("failed to publish session event")
	}
}

func (s *ParkingService) audit(ctx context.Context, read *parking.PlateRead, cause error) {
	if s.reads == nil {
		return
	}
	if cause != nil {
		read.Error = cause.Error()
	}
	if err := s.reads.SavePlateRead(ctx, read); err != nil {
		s.log.Warn().Err(err).Str("read_id", read.ID).Msg("failed to save plate read")
	}
}
