package main

import (
	"context"
	"fmt"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

// action loads the CLI config, runs fetch and prints its result as a table
// or, with --json, as JSON.
func action[T any](fetch func(ctx context.Context, c *cli.Command, cfg cliConfig, out *T) error, show func(T)) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var out T
		if err := fetch(ctx, c, cfg, &out); err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(out)
		}
		show(out)
		return nil
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token    string `json:"token"`
						Username string `json:"username"`
					}
					if err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out); err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(stdout, "logged in as %s\n", out.Username)
					return nil
				},
			},
			{
				Name:  "register",
				Usage: "Create an account on the server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if c.IsSet("server") {
						cfg.Server = c.String("server")
					}
					var out domain.User
					if err := doRegister(ctx, cfg, c.String("email"), c.String("username"), c.String("password"), &out); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(stdout, "registered %s (id %d)\n", out.Username, out.ID)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{jsonFlag()},
				Action: action(func(ctx context.Context, _ *cli.Command, cfg cliConfig, out *domain.User) error {
					return doWhoAmI(ctx, cfg, out)
				}, func(u domain.User) {
					printKV([][2]string{{"id", uintToString(u.ID)}, {"username", u.Username}, {"email", u.Email}})
				}),
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					_, _ = fmt.Fprintln(stdout, "logged out")
					return nil
				},
			},
		},
	}
}

func channelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "Chat channel commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List channels you can see",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.Channel) error {
					return doChannelsList(ctx, cfg, c.Int("limit"), out)
				}, printChannels),
			},
			{
				Name:  "create",
				Usage: "Create a channel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "kind", Value: domain.ChannelPublic, Usage: "public or private"},
					jsonFlag(),
				},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.Channel) error {
					return doChannelsCreate(ctx, cfg, c.String("name"), c.String("description"), c.String("kind"), out)
				}, func(ch domain.Channel) { printChannels([]domain.Channel{ch}) }),
			},
			{
				Name:  "join",
				Usage: "Join a public channel",
				Flags: []cli.Flag{&cli.UintFlag{Name: "channel-id", Required: true}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.ChannelMember) error {
					return doChannelsJoin(ctx, cfg, c.Uint("channel-id"), out)
				}, func(m domain.ChannelMember) {
					printKV([][2]string{{"channel_id", uintToString(m.ChannelID)}, {"role", m.Role}})
				}),
			},
		},
	}
}

func messagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "messages",
		Usage: "Chat message commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List channel messages, newest first",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "channel-id", Required: true},
					&cli.UintFlag{Name: "before-id"},
					&cli.IntFlag{Name: "limit"},
					jsonFlag(),
				},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.Message) error {
					return doMessagesList(ctx, cfg, c.Uint("channel-id"), c.Uint("before-id"), c.Int("limit"), out)
				}, printMessages),
			},
			{
				Name:  "send",
				Usage: "Send a message",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "channel-id", Required: true},
					&cli.StringFlag{Name: "body", Required: true},
					&cli.UintFlag{Name: "reply-to", Usage: "parent message id"},
					jsonFlag(),
				},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.Message) error {
					var parentID *uint
					if c.IsSet("reply-to") {
						v := c.Uint("reply-to")
						parentID = &v
					}
					return doMessagesSend(ctx, cfg, c.Uint("channel-id"), c.String("body"), parentID, out)
				}, func(m domain.Message) { printMessages([]domain.Message{m}) }),
			},
			{
				Name:  "react",
				Usage: "Toggle an emoji reaction",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "message-id", Required: true},
					&cli.StringFlag{Name: "emoji", Required: true},
					jsonFlag(),
				},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.ReactionSummary) error {
					return doMessagesReact(ctx, cfg, c.Uint("message-id"), c.String("emoji"), out)
				}, func(items []domain.ReactionSummary) {
					_, _ = fmt.Fprintln(stdout, formatReactions(items))
				}),
			},
		},
	}
}

func postsCommand() *cli.Command {
	return &cli.Command{
		Name:  "posts",
		Usage: "Feed commands",
		Commands: []*cli.Command{
			{
				Name:  "feed",
				Usage: "Show your home feed",
				Flags: []cli.Flag{&cli.UintFlag{Name: "before-id"}, &cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.Post) error {
					return doPostsFeed(ctx, cfg, c.Uint("before-id"), c.Int("limit"), out)
				}, printPosts),
			},
			{
				Name:  "create",
				Usage: "Publish a post",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "body", Required: true},
					&cli.StringFlag{Name: "visibility", Value: domain.VisibilityPublic},
					jsonFlag(),
				},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.Post) error {
					return doPostsCreate(ctx, cfg, c.String("body"), c.String("visibility"), out)
				}, func(p domain.Post) { printPosts([]domain.Post{p}) }),
			},
			{
				Name:  "like",
				Usage: "Toggle your like on a post",
				Flags: []cli.Flag{&cli.UintFlag{Name: "post-id", Required: true}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.LikeResult) error {
					return doPostsLike(ctx, cfg, c.Uint("post-id"), out)
				}, func(r domain.LikeResult) {
					printKV([][2]string{{"liked", fmt.Sprint(r.Liked)}, {"likes", fmt.Sprint(r.LikeCount)}})
				}),
			},
		},
	}
}

func usersCommand() *cli.Command {
	followCmd := func(name, usage string, follow bool) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Flags: []cli.Flag{&cli.StringFlag{Name: "username", Required: true}},
			Action: func(ctx context.Context, c *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := doFollow(ctx, cfg, c.String("username"), follow, nil); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "%s %s\n", name+"ed", c.String("username"))
				return nil
			},
		}
	}
	return &cli.Command{
		Name:  "users",
		Usage: "People commands",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search users by username or display name",
				Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.User) error {
					return doUsersSearch(ctx, cfg, c.String("q"), c.Int("limit"), out)
				}, printUsers),
			},
			followCmd("follow", "Follow a user", true),
			followCmd("unfollow", "Stop following a user", false),
		},
	}
}

func notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "Notification commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notifications",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "unread"}, &cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.Notification) error {
					return doNotificationsList(ctx, cfg, c.Bool("unread"), c.Int("limit"), out)
				}, printNotifications),
			},
			{
				Name:  "read-all",
				Usage: "Mark every notification read",
				Flags: []cli.Flag{jsonFlag()},
				Action: action(func(ctx context.Context, _ *cli.Command, cfg cliConfig, out *map[string]int64) error {
					return doNotificationsReadAll(ctx, cfg, out)
				}, func(m map[string]int64) {
					_, _ = fmt.Fprintf(stdout, "marked %d read\n", m["updated"])
				}),
			},
		},
	}
}

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Activity log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your activity, or everyone's with --all",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "all", Usage: "admin only"}, &cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: action(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.ActivityRecord) error {
					return doActivityList(ctx, cfg, c.Bool("all"), c.Int("limit"), out)
				}, printActivity),
			},
		},
	}
}
