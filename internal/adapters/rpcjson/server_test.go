package rpcjson

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/adapters/db/sqlite"
	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
	id   int
}

func startServer(t *testing.T) (*application.Service, string) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "hangout_rpc_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger, _ := test.NewNullLogger()
	svc := application.NewService(sqlite.NewRepository(db), application.WithLogger(logger))
	require.NoError(t, svc.Seed(ctx))

	// unix socket paths are length limited, so keep the directory short
	dir, err := os.MkdirTemp("", "hrpc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "hangout.sock")

	srv, err := Start(path, svc, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return svc, path
}

func dial(t *testing.T, path string) *client {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

func (c *client) call(t *testing.T, method string, params any) response {
	t.Helper()
	c.id++
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, c.enc.Encode(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": c.id}))
	var resp response
	require.NoError(t, c.dec.Decode(&resp))
	return resp
}

func result[T any](t *testing.T, resp response) T {
	t.Helper()
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func login(t *testing.T, svc *application.Service, c *client, username string) string {
	t.Helper()
	email := username + "@example.test"
	_, err := svc.Register(context.Background(), email, username, "password123")
	require.NoError(t, err)
	out := result[struct {
		Token string `json:"token"`
	}](t, c.call(t, "auth.login", map[string]any{"email": email, "password": "password123"}))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestLoginAndWhoAmI(t *testing.T) {
	svc, path := startServer(t)
	c := dial(t, path)
	token := login(t, svc, c, "mika")

	me := result[domain.User](t, c.call(t, "auth.whoami", map[string]any{"token": token}))
	assert.Equal(t, "mika", me.Username)

	resp := c.call(t, "auth.login", map[string]any{"email": "mika@example.test", "password": "wrong-password"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = c.call(t, "auth.whoami", map[string]any{"token": "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestProtocolErrors(t *testing.T) {
	svc, path := startServer(t)
	c := dial(t, path)
	token := login(t, svc, c, "mika")

	resp := c.call(t, "nope.nothing", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp = c.call(t, "messages.list", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = c.call(t, "activity.all", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeForbidden, resp.Error.Code)

	resp = c.call(t, "messages.list", map[string]any{"token": token, "channel_id": 9999})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)

	raw := dial(t, path)
	_, err := raw.conn.Write([]byte("{not json\n"))
	require.NoError(t, err)
	var parseErr response
	require.NoError(t, raw.dec.Decode(&parseErr))
	require.NotNil(t, parseErr.Error)
	assert.Equal(t, codeParse, parseErr.Error.Code)
}

func TestChatOverSocket(t *testing.T) {
	svc, path := startServer(t)
	c := dial(t, path)
	mika := login(t, svc, c, "mika")
	sora := login(t, svc, c, "sora")

	ch := result[domain.Channel](t, c.call(t, "channels.create", map[string]any{"token": mika, "name": "lounge"}))
	assert.Equal(t, domain.ChannelPublic, ch.Kind)

	resp := c.call(t, "channels.create", map[string]any{"token": mika, "name": "lounge"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeApp, resp.Error.Code)

	result[domain.ChannelMember](t, c.call(t, "channels.join", map[string]any{"token": sora, "channel_id": ch.ID}))
	msg := result[domain.Message](t, c.call(t, "messages.send", map[string]any{"token": sora, "channel_id": ch.ID, "body": "hi mika"}))

	reactions := result[[]domain.ReactionSummary](t, c.call(t, "reactions.toggle", map[string]any{"token": mika, "message_id": msg.ID, "emoji": "👍"}))
	require.Len(t, reactions, 1)
	assert.Equal(t, 1, reactions[0].Count)

	msgs := result[[]domain.Message](t, c.call(t, "messages.list", map[string]any{"token": mika, "channel_id": ch.ID}))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi mika", msgs[0].Body)
}

func TestFeedFollowAndNotifications(t *testing.T) {
	svc, path := startServer(t)
	c := dial(t, path)
	mika := login(t, svc, c, "mika")
	sora := login(t, svc, c, "sora")

	result[map[string]any](t, c.call(t, "social.follow", map[string]any{"token": sora, "username": "mika"}))
	post := result[domain.Post](t, c.call(t, "posts.create", map[string]any{"token": mika, "body": "first post"}))

	feed := result[[]domain.Post](t, c.call(t, "posts.feed", map[string]any{"token": sora}))
	require.NotEmpty(t, feed)
	assert.Equal(t, post.ID, feed[0].ID)

	like := result[domain.LikeResult](t, c.call(t, "posts.like", map[string]any{"token": sora, "post_id": post.ID}))
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.LikeCount)

	notes := result[[]domain.Notification](t, c.call(t, "notifications.list", map[string]any{"token": mika, "unread_only": true}))
	assert.NotEmpty(t, notes)
	cleared := result[map[string]int64](t, c.call(t, "notifications.read_all", map[string]any{"token": mika}))
	assert.Equal(t, int64(len(notes)), cleared["updated"])

	users := result[[]domain.User](t, c.call(t, "users.search", map[string]any{"token": sora, "query": "mik"}))
	require.Len(t, users, 1)
	assert.Equal(t, "mika", users[0].Username)

	result[map[string]any](t, c.call(t, "social.unfollow", map[string]any{"token": sora, "username": "mika"}))
	resp := c.call(t, "social.follow", map[string]any{"token": sora, "username": "ghost"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}
