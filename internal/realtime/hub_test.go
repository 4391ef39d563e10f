package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHubDeliversByTopic(t *testing.T) {
	h := NewHub()
	chat := h.Subscribe(1, "channel:1")
	feed := h.Subscribe(2, "feed")
	defer h.Unsubscribe(chat)
	defer h.Unsubscribe(feed)

	h.Publish("channel:1", "message.created", map[string]any{"id": 7})
	h.Publish("feed", "post.created", map[string]any{"id": 9})

	e := receive(t, chat)
	assert.Equal(t, "message.created", e.Type)
	assert.False(t, e.At.IsZero())
	e = receive(t, feed)
	assert.Equal(t, "post.created", e.Type)
	assert.Empty(t, chat.Events())
}

func TestSubscriptionTopicsCanChange(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(1)
	defer h.Unsubscribe(sub)

	h.Publish("feed", "post.created", nil)
	assert.Empty(t, sub.Events())

	sub.Add("feed", "presence")
	assert.ElementsMatch(t, []string{"feed", "presence"}, sub.Topics())
	h.Publish("feed", "post.created", nil)
	assert.Equal(t, "feed", receive(t, sub).Topic)

	sub.Remove("feed")
	h.Publish("feed", "post.created", nil)
	assert.Empty(t, sub.Events())
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHub(WithBufferSize(2), WithHubLogger(logger))
	slow := h.Subscribe(5, "feed")
	fast := h.Subscribe(6, "feed")

	var wg sync.WaitGroup
	wg.Add(1)
	got := 0
	go func() {
		defer wg.Done()
		for range fast.Events() {
			got++
			if got == 3 {
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		h.Publish("feed", "post.created", i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for range slow.Events() {
	}
	assert.Equal(t, 1, h.SubscriberCount())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, uint(5), hook.LastEntry().Data["user_id"])

	h.Unsubscribe(fast)
	h.Unsubscribe(fast)
	assert.Equal(t, 0, h.SubscriberCount())
}

type captureForwarder struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureForwarder) Forward(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestPublishForwardsButDeliverDoesNot(t *testing.T) {
	h := NewHub()
	fwd := &captureForwarder{}
	h.SetForwarder(fwd)

	h.Publish("feed", "post.created", 1)
	h.Deliver(Event{Type: "post.created", Topic: "feed"}, "remote")
	assert.Len(t, fwd.events, 1)
}

func TestRedisEnvelopeSkipsOwnOrigin(t *testing.T) {
	h := NewHub()
	a := NewRedisBridge(nil, "", h, nil)
	b := NewRedisBridge(nil, "", h, nil)
	require.NotEqual(t, a.Origin(), b.Origin())

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := a.encode(Event{Type: "message.created", Topic: "channel:3", Payload: map[string]any{"id": 1}, At: at})
	require.NoError(t, err)

	_, remote, err := a.decode(string(raw))
	require.NoError(t, err)
	assert.False(t, remote)

	e, remote, err := b.decode(string(raw))
	require.NoError(t, err)
	assert.True(t, remote)
	assert.Equal(t, "channel:3", e.Topic)
	assert.True(t, at.Equal(e.At))
	assert.JSONEq(t, `{"id":1}`, string(e.Payload.(json.RawMessage)))

	_, _, err = b.decode("not json")
	assert.Error(t, err)
}

func TestAccessRevocationDropsTopicForThatUser(t *testing.T) {
	h := NewHub()
	leaving := h.Subscribe(2, "channel:5", "feed")
	other := h.Subscribe(3, "channel:5")
	defer h.Unsubscribe(leaving)
	defer h.Unsubscribe(other)

	h.Publish("user:2", domain.EventAccessRevoked, domain.AccessRevoked{UserID: 2, Topic: "channel:5"})
	assert.Equal(t, []string{"feed"}, leaving.Topics())
	assert.True(t, other.Has("channel:5"))

	h.Publish("channel:5", "message.created", nil)
	assert.Empty(t, leaving.Events())
	assert.Equal(t, "message.created", receive(t, other).Type)

	other.Add("channel:6")
	relayed := Event{Type: domain.EventAccessRevoked, Topic: "user:3", Payload: json.RawMessage(`{"user_id":3,"topic":"channel:6"}`)}
	h.Deliver(relayed, "remote")
	assert.Equal(t, []string{"channel:5"}, other.Topics())
}

func TestRedisForwardNeverBlocksPublisher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHub()
	bridge := NewRedisBridge(nil, "", h, logger)
	h.SetForwarder(bridge)

	// Nothing drains the queue, as when redis is stalled.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultRelayQueue+10; i++ {
			h.Publish("feed", "post.created", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on the relay")
	}
	assert.Len(t, bridge.queue, DefaultRelayQueue)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "relay queue full, dropping event", hook.LastEntry().Message)
}
