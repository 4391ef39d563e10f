package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// op describes one CLI operation on both transports. The RPC params carry
// the same fields as the HTTP body or query.
type op struct {
	rpcMethod  string
	params     map[string]any
	httpMethod string
	path       string
	query      url.Values
	body       any
}

func (cfg cliConfig) do(ctx context.Context, o op, out any) error {
	if cfg.useSocket() {
		if o.rpcMethod == "" {
			return fmt.Errorf("%s %s needs --transport http", o.httpMethod, o.path)
		}
		return newRPCClient(cfg.Socket, cfg.Token).call(ctx, o.rpcMethod, o.params, out)
	}
	return newAPIClient(cfg.Server, cfg.Token).request(ctx, o.httpMethod, o.path, o.query, o.body, out)
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "auth.login",
		params:     map[string]any{"email": email, "password": password, "token_name": tokenName},
		httpMethod: http.MethodPost,
		path:       "/api/auth/login",
		body:       map[string]any{"email": email, "password": password, "mode": "token", "token_name": tokenName},
	}, out)
}

// doRegister always goes over HTTP since registration has no socket method.
func doRegister(ctx context.Context, cfg cliConfig, email, username, password string, out any) error {
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/register", nil,
		map[string]any{"email": email, "username": username, "password": password}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	return cfg.do(ctx, op{rpcMethod: "auth.whoami", httpMethod: http.MethodGet, path: "/api/auth/whoami"}, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.useSocket() {
		return nil
	}
	return cfg.do(ctx, op{httpMethod: http.MethodPost, path: "/api/auth/logout"}, nil)
}

func doChannelsList(ctx context.Context, cfg cliConfig, limit int, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "channels.list",
		params:     map[string]any{"limit": limit},
		httpMethod: http.MethodGet,
		path:       "/api/channels",
		query:      limitQuery(limit),
	}, out)
}

func doChannelsCreate(ctx context.Context, cfg cliConfig, name, description, kind string, out any) error {
	in := map[string]any{"name": name, "description": description, "kind": kind}
	return cfg.do(ctx, op{rpcMethod: "channels.create", params: in, httpMethod: http.MethodPost, path: "/api/channels", body: in}, out)
}

func doChannelsJoin(ctx context.Context, cfg cliConfig, channelID uint, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "channels.join",
		params:     map[string]any{"channel_id": channelID},
		httpMethod: http.MethodPost,
		path:       fmt.Sprintf("/api/channels/%d/join", channelID),
	}, out)
}

func doMessagesList(ctx context.Context, cfg cliConfig, channelID, beforeID uint, limit int, out any) error {
	q := limitQuery(limit)
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatUint(uint64(beforeID), 10))
	}
	return cfg.do(ctx, op{
		rpcMethod:  "messages.list",
		params:     map[string]any{"channel_id": channelID, "before_id": beforeID, "limit": limit},
		httpMethod: http.MethodGet,
		path:       fmt.Sprintf("/api/channels/%d/messages", channelID),
		query:      q,
	}, out)
}

func doMessagesSend(ctx context.Context, cfg cliConfig, channelID uint, body string, parentID *uint, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "messages.send",
		params:     map[string]any{"channel_id": channelID, "body": body, "parent_id": parentID},
		httpMethod: http.MethodPost,
		path:       fmt.Sprintf("/api/channels/%d/messages", channelID),
		body:       map[string]any{"body": body, "parent_id": parentID},
	}, out)
}

func doMessagesReact(ctx context.Context, cfg cliConfig, messageID uint, emoji string, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "reactions.toggle",
		params:     map[string]any{"message_id": messageID, "emoji": emoji},
		httpMethod: http.MethodPost,
		path:       fmt.Sprintf("/api/messages/%d/reactions", messageID),
		body:       map[string]any{"emoji": emoji},
	}, out)
}

func doPostsFeed(ctx context.Context, cfg cliConfig, beforeID uint, limit int, out any) error {
	q := limitQuery(limit)
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatUint(uint64(beforeID), 10))
	}
	return cfg.do(ctx, op{
		rpcMethod:  "posts.feed",
		params:     map[string]any{"before_id": beforeID, "limit": limit},
		httpMethod: http.MethodGet,
		path:       "/api/feed",
		query:      q,
	}, out)
}

func doPostsCreate(ctx context.Context, cfg cliConfig, body, visibility string, out any) error {
	in := map[string]any{"body": body, "visibility": visibility}
	return cfg.do(ctx, op{rpcMethod: "posts.create", params: in, httpMethod: http.MethodPost, path: "/api/posts", body: in}, out)
}

func doPostsLike(ctx context.Context, cfg cliConfig, postID uint, out any) error {
	return cfg.do(ctx, op{
		rpcMethod:  "posts.like",
		params:     map[string]any{"post_id": postID},
		httpMethod: http.MethodPost,
		path:       fmt.Sprintf("/api/posts/%d/like", postID),
	}, out)
}

func doUsersSearch(ctx context.Context, cfg cliConfig, query string, limit int, out any) error {
	q := limitQuery(limit)
	q.Set("q", query)
	return cfg.do(ctx, op{
		rpcMethod:  "users.search",
		params:     map[string]any{"query": query, "limit": limit},
		httpMethod: http.MethodGet,
		path:       "/api/users/search",
		query:      q,
	}, out)
}

func doFollow(ctx context.Context, cfg cliConfig, username string, follow bool, out any) error {
	o := op{
		rpcMethod:  "social.follow",
		params:     map[string]any{"username": username},
		httpMethod: http.MethodPost,
		path:       "/api/users/" + url.PathEscape(username) + "/follow",
	}
	if !follow {
		o.rpcMethod = "social.unfollow"
		o.httpMethod = http.MethodDelete
	}
	return cfg.do(ctx, o, out)
}

func doNotificationsList(ctx context.Context, cfg cliConfig, unreadOnly bool, limit int, out any) error {
	q := limitQuery(limit)
	if unreadOnly {
		q.Set("unread", "true")
	}
	return cfg.do(ctx, op{
		rpcMethod:  "notifications.list",
		params:     map[string]any{"unread_only": unreadOnly, "limit": limit},
		httpMethod: http.MethodGet,
		path:       "/api/notifications",
		query:      q,
	}, out)
}

func doNotificationsReadAll(ctx context.Context, cfg cliConfig, out any) error {
	return cfg.do(ctx, op{rpcMethod: "notifications.read_all", httpMethod: http.MethodPost, path: "/api/notifications/read-all"}, out)
}

func doActivityList(ctx context.Context, cfg cliConfig, all bool, limit int, out any) error {
	o := op{
		rpcMethod:  "activity.list",
		params:     map[string]any{"limit": limit},
		httpMethod: http.MethodGet,
		path:       "/api/activity",
		query:      limitQuery(limit),
	}
	if all {
		o.rpcMethod = "activity.all"
		o.path = "/api/activity/all"
	}
	return cfg.do(ctx, o, out)
}
