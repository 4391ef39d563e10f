package rpcjson

import (
	"context"
	"encoding/json"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
)

type channelParams struct {
	ChannelID uint `json:"channel_id"`
}

type pageParams struct {
	BeforeID uint `json:"before_id"`
	Limit    int  `json:"limit"`
}

func (s *Server) routes() map[string]method {
	read := func(call func(context.Context, domain.Identity, json.RawMessage) (any, error)) method {
		return method{permission: application.PermRead, call: call}
	}
	write := func(call func(context.Context, domain.Identity, json.RawMessage) (any, error)) method {
		return method{permission: application.PermWrite, call: call}
	}

	return map[string]method{
		"auth.whoami": read(func(ctx context.Context, id domain.Identity, _ json.RawMessage) (any, error) {
			return id.User, nil
		}),

		"channels.list": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[pageParams](raw)
			if err != nil {
				return nil, err
			}
			return s.service.ListChannels(ctx, id.User.ID, p.Limit)
		}),
		"channels.create": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Kind        string `json:"kind"`
			}](raw)
			if err != nil {
				return nil, err
			}
			if p.Kind == "" {
				p.Kind = domain.ChannelPublic
			}
			return s.service.CreateChannel(ctx, id.User.ID, p.Name, p.Description, p.Kind)
		}),
		"channels.join": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[channelParams](raw)
			if err != nil || p.ChannelID == 0 {
				return nil, errInvalidParams
			}
			return s.service.JoinChannel(ctx, id.User.ID, p.ChannelID)
		}),

		"messages.list": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				channelParams
				pageParams
			}](raw)
			if err != nil || p.ChannelID == 0 {
				return nil, errInvalidParams
			}
			return s.service.ListMessages(ctx, id.User.ID, p.ChannelID, p.BeforeID, p.Limit)
		}),
		"messages.send": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				channelParams
				Body     string `json:"body"`
				ParentID *uint  `json:"parent_id"`
			}](raw)
			if err != nil || p.ChannelID == 0 {
				return nil, errInvalidParams
			}
			return s.service.SendMessage(ctx, id.User.ID, application.SendMessageInput{
				ChannelID: p.ChannelID,
				Body:      p.Body,
				ParentID:  p.ParentID,
			})
		}),
		"reactions.toggle": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				MessageID uint   `json:"message_id"`
				Emoji     string `json:"emoji"`
			}](raw)
			if err != nil || p.MessageID == 0 {
				return nil, errInvalidParams
			}
			return s.service.ToggleReaction(ctx, id.User.ID, p.MessageID, p.Emoji)
		}),

		"posts.feed": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[pageParams](raw)
			if err != nil {
				return nil, err
			}
			return s.service.Feed(ctx, id.User.ID, p.BeforeID, p.Limit)
		}),
		"posts.create": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				Body       string `json:"body"`
				Visibility string `json:"visibility"`
			}](raw)
			if err != nil {
				return nil, err
			}
			if p.Visibility == "" {
				p.Visibility = domain.VisibilityPublic
			}
			return s.service.CreatePost(ctx, id.User.ID, p.Body, p.Visibility, nil)
		}),
		"posts.like": write(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				PostID uint `json:"post_id"`
			}](raw)
			if err != nil || p.PostID == 0 {
				return nil, errInvalidParams
			}
			return s.service.TogglePostLike(ctx, id.User.ID, p.PostID)
		}),

		"social.follow":   write(s.follow(true)),
		"social.unfollow": write(s.follow(false)),
		"users.search": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}](raw)
			if err != nil {
				return nil, err
			}
			return s.service.SearchUsers(ctx, p.Query, p.Limit)
		}),

		"notifications.list": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[struct {
				UnreadOnly bool `json:"unread_only"`
				Limit      int  `json:"limit"`
			}](raw)
			if err != nil {
				return nil, err
			}
			return s.service.ListNotifications(ctx, id.User.ID, p.UnreadOnly, p.Limit)
		}),
		"notifications.read_all": write(func(ctx context.Context, id domain.Identity, _ json.RawMessage) (any, error) {
			n, err := s.service.MarkAllNotificationsRead(ctx, id.User.ID)
			if err != nil {
				return nil, err
			}
			return map[string]int64{"updated": n}, nil
		}),

		"activity.list": read(func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[pageParams](raw)
			if err != nil {
				return nil, err
			}
			return s.service.ListActivity(ctx, id.User.ID, p.Limit)
		}),
		"activity.all": {permission: application.PermAdmin, call: func(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
			p, err := params[pageParams](raw)
			if err != nil {
				return nil, err
			}
			return s.service.ListAllActivity(ctx, p.Limit)
		}},
	}
}

func (s *Server) follow(follow bool) func(context.Context, domain.Identity, json.RawMessage) (any, error) {
	return func(ctx context.Context, id domain.Identity, raw json.RawMessage) (any, error) {
		p, err := params[struct {
			Username string `json:"username"`
		}](raw)
		if err != nil || p.Username == "" {
			return nil, errInvalidParams
		}
		if err := s.service.FollowByUsername(ctx, id.User.ID, p.Username, follow); err != nil {
			return nil, err
		}
		return map[string]any{"username": p.Username, "following": follow}, nil
	}
}
