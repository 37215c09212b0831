package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parking-anpr/internal/domain/parking"
)

var sample = parking.SessionEvent{
	Event:     parking.EventExit,
	Plate:     "AB0123",
	SessionID: 7,
	Timestamp: time.Date(2026, 3, 1, 8, 45, 0, 0, time.UTC),
	Fare:      null.FloatFrom(65),
}

func TestHubBroadcastsToClients(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, sample))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got parking.SessionEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, sample.Plate, got.Plate)
	assert.Equal(t, parking.EventExit, got.Event)
	assert.Equal(t, 65.0, got.Fare.Float64)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsUnknownOrigins(t *testing.T) {
	hub := NewHub(zerolog.Nop(), []string{"https://ops.example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://ops.example.com"}})
	require.NoError(t, err)
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestHubPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	for i := 0; i < broadcastBuffer*2; i++ {
		assert.NoError(t, hub.Publish(context.Background(), sample))
	}
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSPublisher(t *testing.T) {
	client := &fakeSQS{}
	p := NewSQSPublisher(client, "https://sqs.eu-west-1.amazonaws.com/123/parking-events")

	require.NoError(t, p.Publish(context.Background(), sample))
	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123/parking-events", *client.input.QueueUrl)
	assert.Equal(t, "exit", *client.input.MessageAttributes["event"].StringValue)
	assert.Contains(t, *client.input.MessageBody, `"plate":"AB0123"`)

	client.err = errors.New("throttled")
	assert.ErrorContains(t, p.Publish(context.Background(), sample), "throttled")
}

type publisherFunc func(context.Context, parking.SessionEvent) error

func (f publisherFunc) Publish(ctx context.Context, ev parking.SessionEvent) error { return f(ctx, ev) }

func TestMultiPublishesToAll(t *testing.T) {
	var calls int
	ok := publisherFunc(func(context.Context, parking.SessionEvent) error { calls++; return nil })
	failing := publisherFunc(func(context.Context, parking.SessionEvent) error { calls++; return errors.New("down") })

	err := Multi{failing, ok}.Publish(context.Background(), sample)
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 2, calls)

	assert.NoError(t, Multi{ok}.Publish(context.Background(), sample))
	assert.NoError(t, Multi(nil).Publish(context.Background(), sample))
}
