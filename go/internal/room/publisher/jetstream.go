package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

// Config holds configuration for the JetStream event mirror
type Config struct {
	URL           string
	StreamName    string
	SubjectPrefix string        // e.g., "rooms.events"
	MaxAge        time.Duration // Stream retention
	MaxPending    int           // Max in-flight async publishes
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default JetStream publisher configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "ROOM_EVENTS",
		SubjectPrefix: "rooms.events",
		MaxAge:        24 * time.Hour,
		MaxPending:    256,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// AsyncPublisher is the subset of jetstream.JetStream the mirror uses
type AsyncPublisher interface {
	PublishAsync(subject string, payload []byte, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// JetStreamPublisher mirrors room lifecycle events onto a JetStream stream. Ticks are not
// mirrored.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     AsyncPublisher
	config Config
}

// mirrored lists the event types copied to the stream
var mirrored = map[events.EventType]bool{
	events.EventTypePlayerCount:  true,
	events.EventTypeStarted:      true,
	events.EventTypeFeedback:     true,
	events.EventTypeNextQuestion: true,
	events.EventTypeGameOver:     true,
}

// Connect dials NATS, ensures the stream exists and returns a ready publisher
func Connect(ctx context.Context, config Config) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("triviaroom-publisher"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(config.MaxPending),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("async publish failed")
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Room lifecycle events",
		Subjects:    []string{config.SubjectPrefix + ".>"},
		MaxAge:      config.MaxAge,
		Storage:     jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", config.StreamName).
		Msg("JetStream publisher connected")

	p := New(js, config)
	p.nc = nc
	return p, nil
}

// New wraps an existing JetStream context
func New(js AsyncPublisher, config Config) *JetStreamPublisher {
	return &JetStreamPublisher{js: js, config: config}
}

// Subject returns the subject an event for code is published on
func (p *JetStreamPublisher) Subject(code string, eventType events.EventType) string {
	return fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, code, eventType)
}

// BroadcastToRoom implements room.Broadcaster. Publishing is asynchronous; failures are
// logged by the error handler installed in Connect.
func (p *JetStreamPublisher) BroadcastToRoom(code string, event *events.RoomEvent) {
	if !mirrored[event.Type] {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to marshal event for JetStream")
		return
	}

	subject := p.Subject(code, event.Type)
	if _, err := p.js.PublishAsync(subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		log.Warn().
			Err(err).
			Str("room_code", code).
			Str("subject", subject).
			Msg("failed to enqueue JetStream publish")
	}
}

// Close waits for outstanding publishes and drains the connection
func (p *JetStreamPublisher) Close(ctx context.Context) error {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-ctx.Done():
		log.Warn().Msg("closing JetStream publisher with publishes in flight")
	}

	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			return fmt.Errorf("drain NATS connection: %w", err)
		}
	}
	return nil
}
