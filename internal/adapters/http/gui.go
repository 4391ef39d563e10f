package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/layout"
	"github.com/anihangout/hangout/internal/realtime"
	"github.com/anihangout/hangout/internal/ui"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	desktopMessageLimit = 50
	desktopPostLimit    = 20
	menuItemHeight      = 32
	menuWidth           = 200
)

var defaultDesktopModules = []string{"chat", "feed"}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if err := ui.LoginPage("").Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	_, token, err := h.service.LoginWithSession(r.Context(), email, password, h.sessionTTL)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = ui.LoginPage("invalid credentials").Render(r.Context(), w)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) handleDesktop(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	view, err := h.desktopView(r.Context(), identity.User, queryUint(r, "channel"))
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.User.ID).Error("load desktop")
		http.Error(w, "could not load desktop", statusFor(err))
		return
	}
	if err := ui.DesktopPage(view).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// desktopView loads the windows and their contents. A user without any saved
// window gets the chat and feed windows opened for them.
func (h *Handler) desktopView(ctx context.Context, user domain.User, channelID uint) (ui.DesktopView, error) {
	view := ui.DesktopView{User: user}
	modules, err := h.service.ListModuleStates(ctx, user.ID)
	if err != nil {
		return view, err
	}
	if len(modules) == 0 {
		for _, key := range defaultDesktopModules {
			st, err := h.service.OpenModule(ctx, user.ID, key, layout.Viewport{})
			if err != nil {
				return view, err
			}
			modules = append(modules, st)
		}
	}
	view.Modules = modules

	if view.Channels, err = h.service.ListChannels(ctx, user.ID, 0); err != nil {
		return view, err
	}
	if channelID == 0 && len(view.Channels) > 0 {
		channelID = view.Channels[0].ID
	}
	if channelID != 0 {
		if view.Messages, err = h.service.ListMessages(ctx, user.ID, channelID, 0, desktopMessageLimit); err != nil {
			return view, err
		}
		view.ActiveChannel = channelID
	}
	if view.Posts, err = h.service.Feed(ctx, user.ID, 0, desktopPostLimit); err != nil {
		return view, err
	}
	if view.Unread, err = h.service.UnreadNotificationCount(ctx, user.ID); err != nil {
		return view, err
	}
	return view, nil
}

type chatSignals struct {
	ChatBody  string `json:"chatBody"`
	ChannelID uint   `json:"channelId"`
}

// handleChatSend posts the composed message. The message itself reaches the
// page through the event stream.
func (h *Handler) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var sig chatSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	_, err := h.service.SendMessage(r.Context(), currentUserID(r.Context()), application.SendMessageInput{
		ChannelID: sig.ChannelID,
		Body:      sig.ChatBody,
	})
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.MarshalAndPatchSignals(map[string]any{"chatBody": ""})
}

type moveSignals struct {
	Move struct {
		Key       string `json:"key"`
		X         int    `json:"x"`
		Y         int    `json:"y"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		ViewportW int    `json:"viewportW"`
		ViewportH int    `json:"viewportH"`
	} `json:"move"`
}

func (h *Handler) readMove(w http.ResponseWriter, r *http.Request) (moveSignals, bool) {
	var sig moveSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return sig, false
	}
	return sig, true
}

// handleModuleMove persists a dragged window and snaps the frame to the
// clamped position.
func (h *Handler) handleModuleMove(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.readMove(w, r)
	if !ok {
		return
	}
	m := sig.Move
	rect := layout.Rect{X: m.X, Y: m.Y, W: m.Width, H: m.Height}
	vp := layout.Viewport{W: m.ViewportW, H: m.ViewportH}
	st, err := h.service.SaveModuleState(r.Context(), currentUserID(r.Context()), m.Key, rect, vp, application.ModuleFlags{})
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.ExecuteScript(styleScript(st))
}

func (h *Handler) handleModuleFocus(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.readMove(w, r)
	if !ok {
		return
	}
	states, err := h.service.FocusModule(r.Context(), currentUserID(r.Context()), sig.Move.Key)
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	var script strings.Builder
	for _, st := range states {
		if st.Open {
			script.WriteString(styleScript(st))
		}
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.ExecuteScript(script.String())
}

func (h *Handler) handleModuleOpen(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.readMove(w, r)
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	vp := layout.Viewport{W: sig.Move.ViewportW, H: sig.Move.ViewportH}
	st, err := h.service.OpenModule(r.Context(), identity.User.ID, sig.Move.Key, vp)
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	view, err := h.desktopView(r.Context(), identity.User, 0)
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.ExecuteScript(removeScript(st.ModuleKey))
	_ = sse.PatchElementTempl(ui.Window(st, ui.ModuleContent(st.ModuleKey, view)),
		datastar.WithSelectorID("desktop"), datastar.WithModeAppend())
}

func (h *Handler) handleModuleClose(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.readMove(w, r)
	if !ok {
		return
	}
	st, err := h.service.CloseModule(r.Context(), currentUserID(r.Context()), sig.Move.Key)
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.ExecuteScript(removeScript(st.ModuleKey))
}

// Module keys are validated by the service before they reach these scripts.
func styleScript(st domain.ModuleState) string {
	rect := layout.Rect{X: st.X, Y: st.Y, W: st.Width, H: st.Height}
	return fmt.Sprintf("document.getElementById('window-%s')?.setAttribute('style', '%s');", st.ModuleKey, ui.WindowStyle(rect, st.Z))
}

func removeScript(key string) string {
	return fmt.Sprintf("document.getElementById('window-%s')?.remove();", key)
}

type menuSignals struct {
	Menu struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"menu"`
}

func desktopMenu() []ui.MenuItem {
	keys := []string{"chat", "feed", "profile", "notifications", "settings"}
	items := make([]ui.MenuItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, ui.MenuItem{
			Label:  "Open " + key,
			Action: fmt.Sprintf("$move = {key: '%s', viewportW: window.innerWidth, viewportH: window.innerHeight}; @post('/ui/modules/open')", key),
		})
	}
	return items
}

// handleContextMenu places the desktop menu so it stays inside the viewport.
func (h *Handler) handleContextMenu(w http.ResponseWriter, r *http.Request) {
	var sig menuSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	items := desktopMenu()
	at := h.service.PlaceContextMenu(
		layout.Point{X: sig.Menu.X, Y: sig.Menu.Y},
		layout.Size{W: menuWidth, H: menuItemHeight * len(items)},
		layout.Viewport{W: sig.Menu.W, H: sig.Menu.H},
	)
	renderHTMLFragments(r.Context(), w, http.StatusOK, ui.ContextMenu(at, items))
}

type streamSignals struct {
	ChannelID uint `json:"channelId"`
}

// handleStream keeps an SSE connection open and patches chat, feed and
// notification events into the desktop.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	var sig streamSignals
	_ = datastar.ReadSignals(r, &sig)
	userID := currentUserID(r.Context())

	topics := []string{domain.UserTopic(userID), domain.FeedTopic}
	if sig.ChannelID != 0 && h.service.CanSubscribeChannel(r.Context(), userID, sig.ChannelID) {
		topics = append(topics, domain.ChannelTopic(sig.ChannelID))
	}
	sub := h.hub.Subscribe(userID, topics...)
	defer h.hub.Unsubscribe(sub)

	ctx := context.WithoutCancel(r.Context())
	h.connected(ctx, userID)
	defer h.disconnected(ctx, userID)

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if !sub.Has(e.Topic) {
				continue
			}
			if err := patchEvent(sse, e); err != nil {
				h.log.WithError(err).WithField("user_id", userID).Debug("stream write failed")
				return
			}
		}
	}
}

func patchEvent(sse *datastar.ServerSentEventGenerator, e realtime.Event) error {
	switch e.Type {
	case domain.EventMessageCreated:
		if m, ok := payloadAs[domain.Message](e.Payload); ok {
			return sse.PatchElementTempl(ui.MessageItem(m), datastar.WithSelectorID("messages"), datastar.WithModeAppend())
		}
	case domain.EventMessageUpdated, domain.EventMessageDeleted:
		if m, ok := payloadAs[domain.Message](e.Payload); ok {
			return sse.PatchElementTempl(ui.MessageItem(m))
		}
	case domain.EventPostCreated:
		if p, ok := payloadAs[domain.Post](e.Payload); ok {
			return sse.PatchElementTempl(ui.PostItem(p), datastar.WithSelectorID("posts"), datastar.WithModePrepend())
		}
	case domain.EventNotificationCreated:
		if n, ok := payloadAs[domain.Notification](e.Payload); ok {
			return sse.PatchElementTempl(ui.Flash(n.Message, "info"))
		}
	}
	return nil
}

// payloadAs accepts both in-process payloads and raw JSON relayed from
// another instance.
func payloadAs[T any](payload any) (T, bool) {
	var out T
	switch v := payload.(type) {
	case T:
		return v, true
	case json.RawMessage:
		return out, json.Unmarshal(v, &out) == nil
	case []byte:
		return out, json.Unmarshal(v, &out) == nil
	default:
		return out, false
	}
}
