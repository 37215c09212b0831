package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/fare"
	"parking-anpr/internal/recognition"
	"parking-anpr/internal/repository"
	"parking-anpr/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func linearCalc(t *testing.T) *fare.Calculator {
	t.Helper()
	p, err := fare.NewPolicy(fare.Config{Policy: fare.PolicyLinear, Base: 20, RatePerMinute: 1})
	require.NoError(t, err)
	return fare.NewCalculator(p)
}

func tieredCalc(t *testing.T) *fare.Calculator {
	t.Helper()
	p, err := fare.NewPolicy(fare.Config{Policy: fare.PolicyTiered, FreeMinutes: 30, FlatFee: 1000})
	require.NoError(t, err)
	return fare.NewCalculator(p)
}

type fakeRecognizer struct {
	plate   string
	samples []string
	err     error
	calls   atomic.Int32
}

func (f *fakeRecognizer) Recognize(context.Context, image.Image) (*recognition.Result, error) {
	f.calls.Add(1)
	res := &recognition.Result{Samples: f.samples}
	if f.err != nil {
		return res, f.err
	}
	res.Consolidated = f.plate
	res.Plate = f.plate
	res.Candidate = parking.DetectionCandidate{Label: recognition.PlateLabel, Confidence: 0.93}
	return res, nil
}

func (f *fakeRecognizer) Normalize(raw string) (string, error) {
	return recognition.NewNormalizer(6, 6).Normalize(raw)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []parking.SessionEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev parking.SessionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type fakeSnapshots struct {
	saved int
	err   error
	// onSave runs before each upload, standing in for storage latency.
	onSave func()
}

func (f *fakeSnapshots) Save(_ context.Context, event parking.EventType, data []byte, _ string) (string, error) {
	if f.onSave != nil {
		f.onSave()
	}
	if f.err != nil {
		return "", f.err
	}
	f.saved++
	return fmt.Sprintf("https://snapshots.example/%s/%d.png", event, f.saved), nil
}

// flakyStore fails the first n session writes with ErrStorageUnavailable.
type flakyStore struct {
	repository.SessionStore
	failures atomic.Int32
}

func (f *flakyStore) InsertOpenSession(ctx context.Context, plate string, at time.Time) (*parking.ParkingSession, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, fmt.Errorf("%w: connection reset", parking.ErrStorageUnavailable)
	}
	return f.SessionStore.InsertOpenSession(ctx, plate, at)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(4, 4, color.Black)
	data, err := recognition.EncodePNG(img)
	require.NoError(t, err)
	return data
}

type fixture struct {
	store      *memory.Store
	recognizer *fakeRecognizer
	notifier   *recordingNotifier
	snapshots  *fakeSnapshots
	clock      *clock
	svc        *ParkingService
}

func newFixture(t *testing.T, calc *fare.Calculator, plate string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.New(),
		recognizer: &fakeRecognizer{plate: plate, samples: []string{plate, plate, plate}},
		notifier:   &recordingNotifier{},
		snapshots:  &fakeSnapshots{},
		clock:      &clock{now: t0},
	}
	log := zerolog.Nop()
	sessions := NewSessionService(f.store, calc, log)
	base := []Option{
		WithClock(f.clock.Now),
		WithNotifier(f.notifier),
		WithSnapshots(f.snapshots),
		WithPlateReads(f.store),
	}
	f.svc = NewParkingService(f.recognizer, sessions, f.store, log, append(base, opts...)...)
	return f
}
