package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

type publishedMsg struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	mu   sync.Mutex
	msgs []publishedMsg
	err  error
}

func (f *fakeJetStream) PublishAsync(subject string, payload []byte, _ ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, publishedMsg{subject: subject, data: payload})
	return nil, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newEvent(t *testing.T, eventType events.EventType, payload interface{}) *events.RoomEvent {
	t.Helper()
	e, err := events.New("ABCD", eventType, payload)
	require.NoError(t, err)
	return e
}

func TestBroadcastToRoom_MirrorsLifecycleEvents(t *testing.T) {
	js := &fakeJetStream{}
	p := New(js, DefaultConfig())

	started := newEvent(t, events.EventTypeStarted, events.StartedPayload{Countdown: 45})
	p.BroadcastToRoom("ABCD", started)
	p.BroadcastToRoom("ABCD", newEvent(t, events.EventTypeGameOver, events.GameOverPayload{}))

	require.Len(t, js.msgs, 2)
	assert.Equal(t, "rooms.events.ABCD.started", js.msgs[0].subject)
	assert.Equal(t, "rooms.events.ABCD.gameOver", js.msgs[1].subject)

	var decoded events.RoomEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &decoded))
	assert.Equal(t, started.ID, decoded.ID)
	assert.Equal(t, events.EventTypeStarted, decoded.Type)
}

func TestBroadcastToRoom_SkipsTicksAndReplies(t *testing.T) {
	js := &fakeJetStream{}
	p := New(js, DefaultConfig())

	p.BroadcastToRoom("ABCD", newEvent(t, events.EventTypeTick, 44))
	p.BroadcastToRoom("ABCD", newEvent(t, events.EventTypeError, events.ErrorPayload{Message: "x"}))
	p.BroadcastToRoom("ABCD", newEvent(t, events.EventTypeCreated, "ABCD"))

	assert.Empty(t, js.msgs)
}

func TestBroadcastToRoom_PublishErrorIsSwallowed(t *testing.T) {
	js := &fakeJetStream{err: errors.New("too many pending")}
	p := New(js, DefaultConfig())

	assert.NotPanics(t, func() {
		p.BroadcastToRoom("ABCD", newEvent(t, events.EventTypeFeedback, events.FeedbackPayload{}))
	})
	assert.NoError(t, p.Close(context.Background()))
}
