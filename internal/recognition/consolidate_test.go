package recognition

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-anpr/internal/domain/parking"
)

func TestVote(t *testing.T) {
	cases := []struct {
		name     string
		readings []string
		want     string
	}{
		{"unanimous", []string{"ABC123", "ABC123", "ABC123"}, "ABC123"},
		{"single error outvoted", []string{"ABC123", "A8C123", "ABC123"}, "ABC123"},
		{"ragged lengths", []string{"AB", "ABC", "A"}, "ABC"},
		{"tie keeps first seen", []string{"A", "B"}, "A"},
		{"tie on later position", []string{"XY", "XZ", "QZ", "QY"}, "XY"},
		{"empty readings skipped", []string{"", "KL9", ""}, "KL9"},
		{"all empty", []string{"", ""}, ""},
		{"no readings", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Vote(tc.readings))
		})
	}
}

func TestVoteRecoversFromIndependentSingleErrors(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	rng := rand.New(rand.NewPCG(11, 12))

	for trial := 0; trial < 500; trial++ {
		truth := make([]byte, 6)
		for i := range truth {
			truth[i] = alphabet[rng.IntN(len(alphabet))]
		}

		n := 3 + rng.IntN(5)
		// at most one reading is wrong at any given position
		positions := rng.Perm(n)
		readings := make([]string, n)
		for i := range readings {
			r := []byte(string(truth))
			if pos := positions[i]; pos < len(r) {
				wrong := r[pos]
				for wrong == r[pos] {
					wrong = alphabet[rng.IntN(len(alphabet))]
				}
				r[pos] = wrong
			}
			readings[i] = string(r)
		}

		require.Equal(t, string(truth), Vote(readings), "readings %v", readings)
	}
}

type sampleReader map[image.Image]string

func (m sampleReader) ReadText(_ context.Context, img image.Image) (string, error) {
	text, ok := m[img]
	if !ok {
		return "", errors.New("unknown sample")
	}
	return text, nil
}

func makeSamples(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = filled(8, 4, color.Gray{Y: uint8(10 * i)})
	}
	return out
}

func TestConsolidatorReadMergesSamples(t *testing.T) {
	samples := makeSamples(3)
	reader := sampleReader{
		samples[0]: "KA-01 23",
		samples[1]: "kao123",
		samples[2]: "KA0123",
	}

	got, readings, err := NewConsolidator(reader, nopLog).Read(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, []string{"KA0123", "kao123", "KA0123"}, readings)
	assert.Equal(t, "KA0123", got)
}

func TestConsolidatorFailingSampleCountsAsEmpty(t *testing.T) {
	samples := makeSamples(3)
	reader := sampleReader{
		samples[0]: "XY9",
		samples[2]: "XY9",
	}

	got, readings, err := NewConsolidator(reader, nopLog).Read(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, "", readings[1])
	assert.Equal(t, "XY9", got)
}

func TestConsolidatorAllEmpty(t *testing.T) {
	samples := makeSamples(4)
	reader := TextReaderFunc(func(context.Context, image.Image) (string, error) {
		return " -- ", nil
	})

	_, _, err := NewConsolidator(reader, nopLog).Read(context.Background(), samples)
	assert.ErrorIs(t, err, parking.ErrEmptyOCRResult)
}

func TestConsolidatorTimeout(t *testing.T) {
	samples := makeSamples(5)
	reader := TextReaderFunc(func(ctx context.Context, _ image.Image) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := NewConsolidator(reader, nopLog).Read(ctx, samples)
	assert.ErrorIs(t, err, parking.ErrRecognitionTimeout)
}
