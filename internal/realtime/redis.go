package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anihangout/hangout/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRedisChannel = "hangout:events"
	DefaultRelayQueue   = 1024
)

type envelope struct {
	Origin string          `json:"origin"`
	Type   string          `json:"type"`
	Topic  string          `json:"topic"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"payload"`
}

// RedisBridge relays hub events between server instances over a Redis
// pub/sub channel. Each instance tags what it sends with its origin id and
// ignores its own messages when they come back. Outgoing events go through a
// bounded queue drained by Run; when it is full they are dropped.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	log     logrus.FieldLogger
	timeout time.Duration
	queue   chan Event
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, log logrus.FieldLogger) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		log:     log.WithField("component", "redis-bridge"),
		timeout: 2 * time.Second,
		queue:   make(chan Event, DefaultRelayQueue),
	}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBridge) Origin() string {
	return b.origin
}

// Forward implements Forwarder. It never blocks the publisher.
func (b *RedisBridge) Forward(e Event) {
	select {
	case b.queue <- e:
	default:
		metrics.RecordRelayDropped()
		b.log.WithFields(logrus.Fields{"type": e.Type, "topic": e.Topic}).Warn("relay queue full, dropping event")
	}
}

func (b *RedisBridge) send(ctx context.Context, e Event) {
	raw, err := b.encode(e)
	if err != nil {
		b.log.WithError(err).WithField("type", e.Type).Warn("encode event")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.WithError(err).WithField("type", e.Type).Warn("publish event to redis")
	}
}

// drain publishes queued events until ctx is done.
func (b *RedisBridge) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.send(ctx, e)
		}
	}
}

func (b *RedisBridge) encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Origin: b.origin, Type: e.Type, Topic: e.Topic, At: e.At, Data: data})
}

// decode returns the event carried by raw and whether it came from another instance.
func (b *RedisBridge) decode(raw string) (Event, bool, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Event{}, false, err
	}
	if env.Origin == b.origin {
		return Event{}, false, nil
	}
	return Event{Type: env.Type, Topic: env.Topic, Payload: env.Data, At: env.At}, true, nil
}

// Run installs the bridge as the hub's forwarder and delivers events from
// other instances until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.drain(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	b.hub.SetForwarder(b)
	defer b.hub.SetForwarder(nil)
	b.log.WithField("channel", b.channel).Info("relaying realtime events through redis")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			e, remote, err := b.decode(msg.Payload)
			if err != nil {
				b.log.WithError(err).Warn("decode redis event")
				continue
			}
			if remote {
				b.hub.Deliver(e, "remote")
			}
		}
	}
}
