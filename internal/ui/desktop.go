package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/layout"
)

// DesktopView is everything the desktop page shows on first paint.
type DesktopView struct {
	User          domain.User
	Modules       []domain.ModuleState
	Channels      []domain.Channel
	ActiveChannel uint
	Messages      []domain.Message
	Posts         []domain.Post
	Unread        int64
}

var moduleTitles = map[string]string{
	"chat":          "Chat",
	"feed":          "Feed",
	"profile":       "Profile",
	"settings":      "Settings",
	"notifications": "Notifications",
}

func moduleTitle(key string) string {
	if t, ok := moduleTitles[key]; ok {
		return t
	}
	return key
}

// DesktopScript drags windows by their title bar and reports the final rect.
const DesktopScript = `
document.addEventListener('pointerdown', function (e) {
  var bar = e.target.closest('.titlebar');
  if (!bar) return;
  var win = bar.parentElement, sx = e.clientX, sy = e.clientY, ox = win.offsetLeft, oy = win.offsetTop;
  function move(ev) { win.style.left = (ox + ev.clientX - sx) + 'px'; win.style.top = (oy + ev.clientY - sy) + 'px'; }
  function up() {
    document.removeEventListener('pointermove', move);
    document.removeEventListener('pointerup', up);
    win.dispatchEvent(new CustomEvent('window-moved', {detail: {
      key: win.dataset.key, x: win.offsetLeft, y: win.offsetTop,
      width: win.offsetWidth, height: win.offsetHeight,
      viewportW: window.innerWidth, viewportH: window.innerHeight}}));
  }
  document.addEventListener('pointermove', move);
  document.addEventListener('pointerup', up);
});
`

func DesktopPage(view DesktopView) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			`<div id="desktop" class="desktop" data-signals="{chatBody: '', channelId: `, fmt.Sprint(view.ActiveChannel), `, move: {}, menu: {}}"`,
			` data-on:contextmenu__prevent="$menu = {x: evt.clientX, y: evt.clientY, w: window.innerWidth, h: window.innerHeight}; @post('/ui/context-menu')"`,
			` data-on:click="document.getElementById('context-menu').innerHTML = ''">`,
			`<div data-init="@get('/ui/stream')"></div>`,
			`<div id="flash"></div><div id="context-menu"></div>`,
		); err != nil {
			return err
		}
		for _, m := range view.Modules {
			if !m.Open {
				continue
			}
			if err := Window(m, ModuleContent(m.ModuleKey, view)).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</div><script src="/static/desktop.js"></script>`)
	})
	return page("Ani Hangout", body)
}

// ModuleContent renders the body of the window identified by key.
func ModuleContent(key string, view DesktopView) templ.Component {
	switch key {
	case "chat":
		return ChatPanel(view.Channels, view.ActiveChannel, view.Messages)
	case "feed":
		return FeedPanel(view.Posts)
	case "profile":
		return ProfilePanel(view.User)
	case "notifications":
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			return write(w, fmt.Sprintf(`<p>%d unread</p>`, view.Unread))
		})
	default:
		return templ.NopComponent
	}
}

// Window renders one module frame positioned by its saved state.
func Window(m domain.ModuleState, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "window"
		if m.Minimized {
			class += " minimized"
		}
		if err := write(w,
			`<section id="window-`, esc(m.ModuleKey), `" class="`, class, `" data-key="`, esc(m.ModuleKey), `"`,
			fmt.Sprintf(` style="left:%dpx;top:%dpx;width:%dpx;height:%dpx;z-index:%d"`, m.X, m.Y, m.Width, m.Height, m.Z),
			` data-on:window-moved="$move = evt.detail; @post('/ui/modules/move')"`,
			` data-on:pointerdown="$move = {key: '`, esc(m.ModuleKey), `'}; @post('/ui/modules/focus')">`,
			`<header class="titlebar"><span>`, esc(moduleTitle(m.ModuleKey)), `</span>`,
			`<span><button data-on:click="$move = {key: '`, esc(m.ModuleKey), `'}; @post('/ui/modules/close')">×</button></span></header>`,
			`<div class="body">`,
		); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		return write(w, `</div></section>`)
	})
}

// WindowStyle is the patch applied after a move so the frame matches the clamped rect.
func WindowStyle(r layout.Rect, z int) string {
	return fmt.Sprintf(`left:%dpx;top:%dpx;width:%dpx;height:%dpx;z-index:%d`, r.X, r.Y, r.W, r.H, z)
}

func ChatPanel(channels []domain.Channel, active uint, messages []domain.Message) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<nav class="channels">`)
		for _, c := range channels {
			marker := ""
			if c.ID == active {
				marker = " aria-current=\"true\""
			}
			fmt.Fprintf(&b, `<a href="/?channel=%d"%s>#%s</a> `, c.ID, marker, esc(c.Name))
		}
		b.WriteString(`</nav>`)
		if err := write(w, b.String()); err != nil {
			return err
		}
		if err := MessageList(messages).Render(ctx, w); err != nil {
			return err
		}
		if active == 0 {
			return nil
		}
		return write(w,
			`<form data-on:submit__prevent="@post('/ui/chat/send')">`,
			`<input data-bind="chatBody" placeholder="Message" autocomplete="off">`,
			`<button type="submit">Send</button></form>`,
		)
	})
}

// MessageList renders messages oldest first; listings arrive newest first.
func MessageList(messages []domain.Message) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<div id="messages">`); err != nil {
			return err
		}
		for i := len(messages) - 1; i >= 0; i-- {
			if err := MessageItem(messages[i]).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</div>`)
	})
}

func MessageItem(m domain.Message) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="msg-%d" class="message">`, m.ID)
		fmt.Fprintf(&b, `<span class="author">%s</span>`, esc(m.AuthorUsername))
		if m.Deleted {
			b.WriteString(`<em>message deleted</em>`)
		} else {
			b.WriteString(esc(m.Body))
			if m.EditedAt != nil {
				b.WriteString(` <small>(edited)</small>`)
			}
		}
		for _, r := range m.Reactions {
			fmt.Fprintf(&b, ` <span class="reaction">%s %d</span>`, esc(r.Emoji), r.Count)
		}
		b.WriteString(`</div>`)
		return write(w, b.String())
	})
}

func FeedPanel(posts []domain.Post) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<div id="posts">`); err != nil {
			return err
		}
		for _, p := range posts {
			if err := PostItem(p).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</div>`)
	})
}

func PostItem(p domain.Post) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w,
			fmt.Sprintf(`<article id="post-%d" class="post">`, p.ID),
			`<div class="author">`, esc(p.AuthorUsername), `</div>`,
			`<p>`, esc(p.Body), `</p>`,
			fmt.Sprintf(`<small>♥ %d · %d comments</small></article>`, p.LikeCount, p.CommentCount),
		)
	})
}

func ProfilePanel(u domain.User) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		name := u.DisplayName
		if name == "" {
			name = u.Username
		}
		return write(w,
			`<h2>`, esc(name), `</h2><p>@`, esc(u.Username), `</p><p>`, esc(u.Bio), `</p>`,
		)
	})
}

// MenuItem is one action of the desktop context menu.
type MenuItem struct {
	Label  string
	Action string
}

// ContextMenu renders the menu at an already clamped position.
func ContextMenu(at layout.Point, items []MenuItem) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="context-menu"><div class="context-menu" style="left:%dpx;top:%dpx">`, at.X, at.Y)
		for _, item := range items {
			fmt.Fprintf(&b, `<button data-on:click="%s">%s</button>`, esc(item.Action), esc(item.Label))
		}
		b.WriteString(`</div></div>`)
		return write(w, b.String())
	})
}
