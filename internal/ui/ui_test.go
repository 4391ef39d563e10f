package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestMessageItemEscapesBody(t *testing.T) {
	now := time.Now()
	out := render(t, MessageItem(domain.Message{
		ID:             7,
		AuthorUsername: "mika",
		Body:           "<script>alert(1)</script>",
		EditedAt:       &now,
		Reactions:      []domain.ReactionSummary{{Emoji: "🔥", Count: 2}},
	}))
	assert.Contains(t, out, `id="msg-7"`)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "(edited)")
	assert.Contains(t, out, "🔥 2")

	deleted := render(t, MessageItem(domain.Message{ID: 8, Body: "gone", Deleted: true}))
	assert.NotContains(t, deleted, "gone")
}

func TestMessageListIsOldestFirst(t *testing.T) {
	out := render(t, MessageList([]domain.Message{{ID: 3, Body: "third"}, {ID: 1, Body: "first"}}))
	assert.Less(t, bytes.Index([]byte(out), []byte("first")), bytes.Index([]byte(out), []byte("third")))
}

func TestDesktopPageRendersOpenWindows(t *testing.T) {
	out := render(t, DesktopPage(DesktopView{
		User: domain.User{Username: "mika"},
		Modules: []domain.ModuleState{
			{ModuleKey: "chat", X: 32, Y: 32, Width: 480, Height: 360, Z: 2, Open: true},
			{ModuleKey: "feed", Open: false},
		},
		Channels:      []domain.Channel{{ID: 1, Name: "general"}},
		ActiveChannel: 1,
	}))
	assert.Contains(t, out, `id="window-chat"`)
	assert.Contains(t, out, "left:32px;top:32px;width:480px;height:360px;z-index:2")
	assert.NotContains(t, out, `id="window-feed"`)
	assert.Contains(t, out, "#general")
	assert.Contains(t, out, "/ui/chat/send")
}

func TestContextMenuAndFlash(t *testing.T) {
	out := render(t, ContextMenu(layout.Point{X: 10, Y: 20}, []MenuItem{{Label: "Open feed", Action: "@post('/ui/modules/open')"}}))
	assert.Contains(t, out, "left:10px;top:20px")
	assert.Contains(t, out, "Open feed")

	assert.Contains(t, render(t, Flash("bad", "error")), `class="flash error"`)
	assert.Contains(t, render(t, Flash("ok", "whatever")), `class="flash info"`)
	assert.Contains(t, render(t, LoginPage("invalid credentials")), "invalid credentials")
}
