package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Type   string         `json:"type"`
	Topic  string         `json:"topic"`
	Topics []string       `json:"topics"`
	Error  string         `json:"error"`
	Data   map[string]any `json:"payload"`
}

func (e *testEnv) dial(t *testing.T, token, topics string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/realtime"
	if topics != "" {
		u += "?topics=" + topics
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, res, err := websocket.DefaultDialer.Dial(u, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, res, err
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, conn *websocket.Conn, wantType string) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == wantType {
			return f
		}
	}
}

// presenceOf skips presence events of other users.
func presenceOf(t *testing.T, conn *websocket.Conn, userID uint, status string) wsFrame {
	t.Helper()
	for {
		f := next(t, conn, domain.EventPresenceUpdated)
		if f.Data["user_id"] == float64(userID) && f.Data["status"] == status {
			return f
		}
	}
}

func TestRealtimeStreamsChannelEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mikaID, mika := env.user(t, "mika")

	ch, err := env.service.CreateChannel(ctx, mikaID, "general", "", domain.ChannelPublic)
	require.NoError(t, err)

	conn, _, err := env.dial(t, mika, domain.ChannelTopic(ch.ID))
	require.NoError(t, err)
	hello := next(t, conn, "subscribed")
	assert.Equal(t, []string{domain.ChannelTopic(ch.ID)}, hello.Topics)

	_, err = env.service.SendMessage(ctx, mikaID, application.SendMessageInput{ChannelID: ch.ID, Body: "live"})
	require.NoError(t, err)
	got := next(t, conn, domain.EventMessageCreated)
	assert.Equal(t, domain.ChannelTopic(ch.ID), got.Topic)
	assert.Equal(t, "live", got.Data["body"])

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Topics: []string{domain.FeedTopic, "user:999"}}))
	denied := next(t, conn, "error")
	assert.Contains(t, denied.Error, "user:999")
	ack := next(t, conn, "subscribed")
	assert.ElementsMatch(t, []string{domain.ChannelTopic(ch.ID), domain.FeedTopic}, ack.Topics)

	_, err = env.service.CreatePost(ctx, mikaID, "hello feed", domain.VisibilityPublic, nil)
	require.NoError(t, err)
	post := next(t, conn, domain.EventPostCreated)
	assert.Equal(t, domain.FeedTopic, post.Topic)
}

func TestRealtimeRejectsForeignTopics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mikaID, _ := env.user(t, "mika")
	_, sora := env.user(t, "sora")

	private, err := env.service.CreateChannel(ctx, mikaID, "secret", "", domain.ChannelPrivate)
	require.NoError(t, err)

	_, res, err := env.dial(t, sora, domain.ChannelTopic(private.ID))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, res, err = env.dial(t, sora, fmt.Sprintf("user:%d", mikaID))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, res, err = env.dial(t, "not-a-token", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRealtimeTracksPresence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mikaID, mika := env.user(t, "mika")
	_, sora := env.user(t, "sora")

	watcher, _, err := env.dial(t, sora, domain.PresenceTopic)
	require.NoError(t, err)

	first, _, err := env.dial(t, mika, "")
	require.NoError(t, err)
	presenceOf(t, watcher, mikaID, domain.StatusOnline)

	second, _, err := env.dial(t, mika, "")
	require.NoError(t, err)
	next(t, second, "subscribed")
	require.NoError(t, first.Close())

	u, err := env.service.GetUser(ctx, mikaID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnline, u.Status, "one connection is still open")

	require.NoError(t, second.Close())
	presenceOf(t, watcher, mikaID, domain.StatusOffline)
	u, err = env.service.GetUser(ctx, mikaID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOffline, u.Status)
}

func TestRealtimeStopsPrivateChannelAfterLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mikaID, _ := env.user(t, "mika")
	soraID, sora := env.user(t, "sora")

	private, err := env.service.CreateChannel(ctx, mikaID, "secret", "", domain.ChannelPrivate)
	require.NoError(t, err)
	_, err = env.service.InviteMember(ctx, mikaID, private.ID, "sora")
	require.NoError(t, err)

	conn, _, err := env.dial(t, sora, domain.ChannelTopic(private.ID)+","+domain.FeedTopic)
	require.NoError(t, err)
	next(t, conn, "subscribed")

	_, err = env.service.SendMessage(ctx, mikaID, application.SendMessageInput{ChannelID: private.ID, Body: "before"})
	require.NoError(t, err)
	assert.Equal(t, "before", next(t, conn, domain.EventMessageCreated).Data["body"])

	require.NoError(t, env.service.LeaveChannel(ctx, soraID, private.ID))
	_, err = env.service.SendMessage(ctx, mikaID, application.SendMessageInput{ChannelID: private.ID, Body: "after"})
	require.NoError(t, err)
	_, err = env.service.CreatePost(ctx, mikaID, "still on the feed", domain.VisibilityPublic, nil)
	require.NoError(t, err)

	// The feed post is published last, so everything sora could see arrives before it.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		assert.NotEqual(t, domain.ChannelTopic(private.ID), f.Topic, "got %s after leaving", f.Type)
		if f.Type == domain.EventPostCreated {
			break
		}
	}
}
