package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// clientMessage is what a websocket client may send.
type clientMessage struct {
	Action    string   `json:"action"`
	Topics    []string `json:"topics,omitempty"`
	ChannelID uint     `json:"channel_id,omitempty"`
}

type serverNotice struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// handleRealtime upgrades to a websocket that streams hub events for the
// requested topics. Without topics the user's own topic, the feed and
// presence are streamed.
func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r.Context())
	requested := splitTopics(r.URL.Query().Get("topics"))
	if len(requested) == 0 {
		requested = []string{domain.UserTopic(userID), domain.FeedTopic, domain.PresenceTopic}
	}
	for _, t := range requested {
		if err := h.authorizeTopic(r.Context(), userID, t); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	// subscribe before the handshake so the client misses nothing after it
	sub := h.hub.Subscribe(userID, requested...)
	defer h.hub.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"user_id": userID, "remote": r.RemoteAddr})

	ctx := context.WithoutCancel(r.Context())
	h.connected(ctx, userID)
	defer h.disconnected(ctx, userID)

	notices := make(chan serverNotice, 8)
	notices <- serverNotice{Type: "subscribed", Topics: sub.Topics()}
	done := make(chan struct{})
	go h.readClient(ctx, conn, sub, notices, done, log)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case e, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(wsWriteWait))
				return
			}
			// buffered before the topic was revoked or unsubscribed
			if !sub.Has(e.Topic) {
				continue
			}
			if err := writeWS(conn, e); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case n := <-notices:
			if err := writeWS(conn, n); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// readClient handles subscribe, unsubscribe and typing messages until the
// connection closes. Replies go through notices so only one goroutine writes.
func (h *Handler) readClient(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription, notices chan<- serverNotice, done chan<- struct{}, log logrus.FieldLogger) {
	defer close(done)
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	reply := func(n serverNotice) {
		select {
		case notices <- n:
		default:
		}
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		switch msg.Action {
		case "subscribe":
			var allowed []string
			for _, t := range msg.Topics {
				if err := h.authorizeTopic(ctx, sub.UserID, t); err != nil {
					reply(serverNotice{Type: "error", Error: fmt.Sprintf("%s: %v", t, err)})
					continue
				}
				allowed = append(allowed, t)
			}
			sub.Add(allowed...)
			reply(serverNotice{Type: "subscribed", Topics: sub.Topics()})
		case "unsubscribe":
			sub.Remove(msg.Topics...)
			reply(serverNotice{Type: "subscribed", Topics: sub.Topics()})
		case "typing":
			if _, err := h.service.SetTyping(ctx, sub.UserID, msg.ChannelID); err != nil {
				reply(serverNotice{Type: "error", Error: err.Error()})
			}
		default:
			reply(serverNotice{Type: "error", Error: "unknown action " + strconv.Quote(msg.Action)})
		}
	}
}

// authorizeTopic allows channel topics to members, the user topic to its
// owner, and the shared feed and presence topics to everyone.
func (h *Handler) authorizeTopic(ctx context.Context, userID uint, topic string) error {
	switch {
	case topic == domain.FeedTopic || topic == domain.PresenceTopic:
		return nil
	case strings.HasPrefix(topic, "user:"):
		if topic != domain.UserTopic(userID) {
			return fmt.Errorf("%w: not your topic", domain.ErrForbidden)
		}
		return nil
	case strings.HasPrefix(topic, "channel:"):
		id, err := strconv.ParseUint(strings.TrimPrefix(topic, "channel:"), 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("%w: bad channel topic", domain.ErrInvalid)
		}
		if !h.service.CanSubscribeChannel(ctx, userID, uint(id)) {
			return fmt.Errorf("%w: not a channel member", domain.ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown topic %q", domain.ErrInvalid, topic)
	}
}

func splitTopics(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// connected marks the user online on their first live connection.
func (h *Handler) connected(ctx context.Context, userID uint) {
	h.presenceMu.Lock()
	h.online[userID]++
	first := h.online[userID] == 1
	h.presenceMu.Unlock()
	if first {
		if err := h.service.SetPresence(ctx, userID, domain.StatusOnline); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("set presence failed")
		}
	}
}

// disconnected marks the user offline when their last connection closes.
func (h *Handler) disconnected(ctx context.Context, userID uint) {
	h.presenceMu.Lock()
	h.online[userID]--
	last := h.online[userID] <= 0
	if last {
		delete(h.online, userID)
	}
	h.presenceMu.Unlock()
	if last {
		if err := h.service.SetPresence(ctx, userID, domain.StatusOffline); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("set presence failed")
		}
	}
}
