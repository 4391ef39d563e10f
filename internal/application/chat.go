package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anihangout/hangout/internal/domain"
)

const (
	maxMessageLength = 4000
	maxEmojiRunes    = 8
	maxEmojiBytes    = 32
)

var (
	channelNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)
	mentionPattern     = regexp.MustCompile(`(?:^|[^a-zA-Z0-9_])@([a-zA-Z0-9_]{3,32})`)
)

// DirectChannelName is the stable name of the direct channel between two users.
func DirectChannelName(a, b uint) string {
	lo, hi := min(a, b), max(a, b)
	return fmt.Sprintf("dm:%d:%d", lo, hi)
}

func (s *Service) CreateChannel(ctx context.Context, creatorID uint, name, description, kind string) (domain.Channel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	kind = defaultString(kind, domain.ChannelPublic)
	if !channelNamePattern.MatchString(name) {
		return domain.Channel{}, invalidf("channel name must be 2-64 characters of a-z, 0-9, _ or -")
	}
	if kind != domain.ChannelPublic && kind != domain.ChannelPrivate {
		return domain.Channel{}, invalidf("channel kind must be public or private")
	}
	ch, err := s.repo.CreateChannel(ctx, domain.Channel{
		Name:        name,
		Description: strings.TrimSpace(description),
		Kind:        kind,
		CreatedBy:   creatorID,
	})
	if err != nil {
		return domain.Channel{}, err
	}
	if _, err := s.repo.AddMember(ctx, domain.ChannelMember{ChannelID: ch.ID, UserID: creatorID, Role: domain.MemberOwner}); err != nil {
		return domain.Channel{}, err
	}
	s.record(ctx, creatorID, "chat.channel.create", "channel", ch.ID, name)
	return ch, nil
}

func (s *Service) ListChannels(ctx context.Context, userID uint, limit int) ([]domain.Channel, error) {
	return s.repo.ListChannelsForUser(ctx, userID, clampLimit(limit, 100, 500))
}

func (s *Service) GetChannel(ctx context.Context, userID, channelID uint) (domain.Channel, error) {
	ch, _, err := s.channelForReader(ctx, userID, channelID)
	return ch, err
}

// JoinChannel adds the user to a public channel. Private and direct channels
// can only be entered through an invitation.
func (s *Service) JoinChannel(ctx context.Context, userID, channelID uint) (domain.ChannelMember, error) {
	ch, err := s.repo.GetChannelByID(ctx, channelID)
	if err != nil {
		return domain.ChannelMember{}, err
	}
	if existing, err := s.repo.GetMember(ctx, ch.ID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.ChannelMember{}, err
	}
	if ch.Kind != domain.ChannelPublic {
		return domain.ChannelMember{}, forbiddenf("channel %s requires an invitation", ch.Name)
	}
	return s.addMember(ctx, userID, ch, userID, domain.MemberRole)
}

// LeaveChannel removes the membership. Leaving a private or direct channel
// also cuts any open stream the user has on it.
func (s *Service) LeaveChannel(ctx context.Context, userID, channelID uint) error {
	ch, err := s.repo.GetChannelByID(ctx, channelID)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetMember(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, channelID, userID); err != nil {
		return err
	}
	_ = s.repo.DeleteTyping(ctx, channelID, userID)
	s.record(ctx, userID, "chat.channel.leave", "channel", channelID, "")
	if ch.Kind != domain.ChannelPublic {
		s.publish(domain.UserTopic(userID), domain.EventAccessRevoked, domain.AccessRevoked{
			UserID: userID,
			Topic:  domain.ChannelTopic(channelID),
		})
	}
	s.publish(domain.ChannelTopic(channelID), domain.EventMemberLeft, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
	})
	return nil
}

// InviteMember lets the channel owner add another user.
func (s *Service) InviteMember(ctx context.Context, actorID, channelID uint, username string) (domain.ChannelMember, error) {
	ch, err := s.repo.GetChannelByID(ctx, channelID)
	if err != nil {
		return domain.ChannelMember{}, err
	}
	if ch.Kind == domain.ChannelDirect {
		return domain.ChannelMember{}, invalidf("direct channels cannot take more members")
	}
	actor, err := s.repo.GetMember(ctx, ch.ID, actorID)
	if err != nil || actor.Role != domain.MemberOwner {
		return domain.ChannelMember{}, forbiddenf("only the channel owner can invite")
	}
	invitee, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.ChannelMember{}, err
	}
	return s.addMember(ctx, actorID, ch, invitee.ID, domain.MemberRole)
}

func (s *Service) ListMembers(ctx context.Context, userID, channelID uint) ([]domain.ChannelMember, error) {
	if _, _, err := s.channelForReader(ctx, userID, channelID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, channelID)
}

// OpenDirectChannel returns the direct channel between the two users, creating it on first use.
func (s *Service) OpenDirectChannel(ctx context.Context, userID, otherID uint) (domain.Channel, error) {
	if userID == otherID {
		return domain.Channel{}, invalidf("cannot open a direct channel with yourself")
	}
	if _, err := s.repo.GetUserByID(ctx, otherID); err != nil {
		return domain.Channel{}, err
	}
	name := DirectChannelName(userID, otherID)
	ch, err := s.repo.GetChannelByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		ch, err = s.repo.CreateChannel(ctx, domain.Channel{Name: name, Kind: domain.ChannelDirect, CreatedBy: userID})
		if errors.Is(err, domain.ErrConflict) {
			ch, err = s.repo.GetChannelByName(ctx, name)
		}
	}
	if err != nil {
		return domain.Channel{}, err
	}
	for _, id := range []uint{userID, otherID} {
		if _, err := s.repo.AddMember(ctx, domain.ChannelMember{ChannelID: ch.ID, UserID: id, Role: domain.MemberRole}); err != nil {
			return domain.Channel{}, err
		}
	}
	return ch, nil
}

func (s *Service) addMember(ctx context.Context, actorID uint, ch domain.Channel, userID uint, role string) (domain.ChannelMember, error) {
	member, err := s.repo.AddMember(ctx, domain.ChannelMember{ChannelID: ch.ID, UserID: userID, Role: role})
	if err != nil {
		return domain.ChannelMember{}, err
	}
	s.record(ctx, actorID, "chat.channel.join", "channel", ch.ID, fmt.Sprintf("user=%d", userID))
	s.publish(domain.ChannelTopic(ch.ID), domain.EventMemberJoined, member)
	return member, nil
}

// channelForReader loads the channel and checks the user may read it. Public
// channels are readable by everyone; the membership is returned when present.
func (s *Service) channelForReader(ctx context.Context, userID, channelID uint) (domain.Channel, *domain.ChannelMember, error) {
	ch, err := s.repo.GetChannelByID(ctx, channelID)
	if err != nil {
		return domain.Channel{}, nil, err
	}
	member, err := s.repo.GetMember(ctx, channelID, userID)
	if err == nil {
		return ch, &member, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Channel{}, nil, err
	}
	if ch.Kind != domain.ChannelPublic {
		return domain.Channel{}, nil, forbiddenf("not a member of this channel")
	}
	return ch, nil, nil
}

func (s *Service) requireMember(ctx context.Context, userID, channelID uint) (domain.Channel, domain.ChannelMember, error) {
	ch, member, err := s.channelForReader(ctx, userID, channelID)
	if err != nil {
		return domain.Channel{}, domain.ChannelMember{}, err
	}
	if member == nil {
		return domain.Channel{}, domain.ChannelMember{}, forbiddenf("join the channel first")
	}
	return ch, *member, nil
}

// CanSubscribeChannel reports whether the user may receive events of the channel.
func (s *Service) CanSubscribeChannel(ctx context.Context, userID, channelID uint) bool {
	_, _, err := s.channelForReader(ctx, userID, channelID)
	return err == nil
}

type SendMessageInput struct {
	ChannelID uint
	Body      string
	ParentID  *uint
	FileID    *uint
}

func (s *Service) SendMessage(ctx context.Context, authorID uint, in SendMessageInput) (domain.Message, error) {
	ch, _, err := s.requireMember(ctx, authorID, in.ChannelID)
	if err != nil {
		return domain.Message{}, err
	}
	body, err := validateBody(in.Body, maxMessageLength, in.FileID != nil)
	if err != nil {
		return domain.Message{}, err
	}
	if in.ParentID != nil {
		parent, err := s.repo.GetMessageByID(ctx, *in.ParentID)
		if err != nil || parent.ChannelID != ch.ID {
			return domain.Message{}, invalidf("reply target is not in this channel")
		}
	}
	if in.FileID != nil {
		if err := s.requireOwnedFile(ctx, authorID, *in.FileID); err != nil {
			return domain.Message{}, err
		}
	}

	msg, err := s.repo.CreateMessage(ctx, domain.Message{
		ChannelID: ch.ID,
		AuthorID:  authorID,
		Body:      body,
		ParentID:  in.ParentID,
		FileID:    in.FileID,
	})
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.repo.UpdateLastRead(ctx, ch.ID, authorID, msg.ID); err != nil {
		s.log.WithError(err).WithField("channel_id", ch.ID).Warn("advance read marker")
	}
	msg.Reactions = []domain.ReactionSummary{}

	s.record(ctx, authorID, "chat.message.send", "message", msg.ID, "")
	s.publish(domain.ChannelTopic(ch.ID), domain.EventMessageCreated, msg)
	s.stopTyping(ctx, ch.ID, authorID)
	s.notifyMessage(ctx, ch, msg)
	return msg, nil
}

// notifyMessage sends mention notifications, and a message notification to
// the other side of a direct channel.
func (s *Service) notifyMessage(ctx context.Context, ch domain.Channel, msg domain.Message) {
	author, err := s.repo.GetUserByID(ctx, msg.AuthorID)
	if err != nil {
		return
	}
	notified := map[uint]struct{}{author.ID: {}}

	for _, username := range ParseMentions(msg.Body) {
		u, err := s.repo.GetUserByUsername(ctx, username)
		if err != nil {
			continue
		}
		if _, done := notified[u.ID]; done {
			continue
		}
		if !s.CanSubscribeChannel(ctx, u.ID, ch.ID) {
			continue
		}
		notified[u.ID] = struct{}{}
		s.notify(ctx, notice{
			recipientID: u.ID,
			actor:       author,
			kind:        domain.NotifyMention,
			targetType:  "message",
			targetID:    msg.ID,
			message:     author.Username + " mentioned you in " + channelLabel(ch),
		})
	}

	if ch.Kind != domain.ChannelDirect {
		return
	}
	members, err := s.repo.ListMembers(ctx, ch.ID)
	if err != nil {
		return
	}
	for _, m := range members {
		if _, done := notified[m.UserID]; done {
			continue
		}
		s.notify(ctx, notice{
			recipientID: m.UserID,
			actor:       author,
			kind:        domain.NotifyMessage,
			targetType:  "message",
			targetID:    msg.ID,
			message:     author.Username + " sent you a message",
		})
	}
}

// ParseMentions returns the distinct lower-cased usernames mentioned with @ in body.
func ParseMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}

func channelLabel(ch domain.Channel) string {
	if ch.Kind == domain.ChannelDirect {
		return "a direct message"
	}
	return "#" + ch.Name
}

func (s *Service) EditMessage(ctx context.Context, userID, messageID uint, body string) (domain.Message, error) {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.AuthorID != userID {
		return domain.Message{}, forbiddenf("only the author can edit a message")
	}
	if msg.Deleted {
		return domain.Message{}, invalidf("message was deleted")
	}
	body, err = validateBody(body, maxMessageLength, msg.FileID != nil)
	if err != nil {
		return domain.Message{}, err
	}
	updated, err := s.repo.UpdateMessageBody(ctx, messageID, body, s.now())
	if err != nil {
		return domain.Message{}, err
	}
	if updated.Reactions, err = s.reactionSummaries(ctx, messageID, userID); err != nil {
		return domain.Message{}, err
	}
	s.record(ctx, userID, "chat.message.edit", "message", messageID, "")
	s.publish(domain.ChannelTopic(updated.ChannelID), domain.EventMessageUpdated, updated)
	return updated, nil
}

// DeleteMessage soft-deletes a message. Allowed for the author and the channel owner.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID uint) (domain.Message, error) {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.AuthorID != userID {
		member, err := s.repo.GetMember(ctx, msg.ChannelID, userID)
		if err != nil || member.Role != domain.MemberOwner {
			return domain.Message{}, forbiddenf("only the author or channel owner can delete a message")
		}
	}
	if msg.Deleted {
		return msg, nil
	}
	deleted, err := s.repo.SoftDeleteMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	deleted.Reactions = []domain.ReactionSummary{}
	s.record(ctx, userID, "chat.message.delete", "message", messageID, "")
	s.publish(domain.ChannelTopic(deleted.ChannelID), domain.EventMessageDeleted, deleted)
	return deleted, nil
}

// ListMessages returns one newest-first page with reactions aggregated for the viewer.
func (s *Service) ListMessages(ctx context.Context, userID, channelID, beforeID uint, limit int) ([]domain.Message, error) {
	if _, _, err := s.channelForReader(ctx, userID, channelID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, channelID, domain.Page{BeforeID: beforeID, Limit: clampLimit(limit, 50, 200)})
	if err != nil {
		return nil, err
	}
	return s.attachReactions(ctx, messages, userID)
}

func (s *Service) SearchMessages(ctx context.Context, userID, channelID uint, query string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidf("query is required")
	}
	if _, _, err := s.channelForReader(ctx, userID, channelID); err != nil {
		return nil, err
	}
	messages, err := s.repo.SearchMessages(ctx, channelID, query, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, err
	}
	return s.attachReactions(ctx, messages, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, channelID, messageID uint) error {
	if _, _, err := s.requireMember(ctx, userID, channelID); err != nil {
		return err
	}
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ChannelID != channelID {
		return invalidf("message is not in this channel")
	}
	return s.repo.UpdateLastRead(ctx, channelID, userID, messageID)
}

func (s *Service) UnreadCounts(ctx context.Context, userID uint) ([]domain.UnreadCount, error) {
	return s.repo.UnreadCounts(ctx, userID)
}

// ToggleReaction adds the emoji when the user has not reacted with it yet and
// removes it otherwise. It returns the message's aggregated reactions.
func (s *Service) ToggleReaction(ctx context.Context, userID, messageID uint, emoji string) ([]domain.ReactionSummary, error) {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return nil, err
	}
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, invalidf("message was deleted")
	}
	if _, _, err := s.channelForReader(ctx, userID, msg.ChannelID); err != nil {
		return nil, err
	}
	added, err := s.repo.ToggleReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}
	summaries, err := s.reactionSummaries(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	action := "chat.reaction.remove"
	if added {
		action = "chat.reaction.add"
	}
	s.record(ctx, userID, action, "message", messageID, emoji)
	s.publish(domain.ChannelTopic(msg.ChannelID), domain.EventReactionUpdated, map[string]any{
		"message_id": messageID,
		"user_id":    userID,
		"emoji":      emoji,
		"added":      added,
		"reactions":  countsOnly(summaries),
	})
	if added {
		if actor, err := s.repo.GetUserByID(ctx, userID); err == nil {
			s.notify(ctx, notice{
				recipientID: msg.AuthorID,
				actor:       actor,
				kind:        domain.NotifyReaction,
				targetType:  "message",
				targetID:    messageID,
				message:     actor.Username + " reacted " + emoji + " to your message",
			})
		}
	}
	return summaries, nil
}

func (s *Service) reactionSummaries(ctx context.Context, messageID, viewerID uint) ([]domain.ReactionSummary, error) {
	reactions, err := s.repo.ListReactions(ctx, []uint{messageID})
	if err != nil {
		return nil, err
	}
	return SummarizeReactions(reactions, viewerID)[messageID], nil
}

func (s *Service) attachReactions(ctx context.Context, messages []domain.Message, viewerID uint) ([]domain.Message, error) {
	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	reactions, err := s.repo.ListReactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	byMessage := SummarizeReactions(reactions, viewerID)
	for i := range messages {
		messages[i].Reactions = byMessage[messages[i].ID]
		if messages[i].Reactions == nil {
			messages[i].Reactions = []domain.ReactionSummary{}
		}
	}
	return messages, nil
}

// SummarizeReactions groups reactions per message and emoji, keeping emojis
// in the order they were first used.
func SummarizeReactions(reactions []domain.MessageReaction, viewerID uint) map[uint][]domain.ReactionSummary {
	result := make(map[uint][]domain.ReactionSummary)
	index := make(map[uint]map[string]int)
	for _, r := range reactions {
		if index[r.MessageID] == nil {
			index[r.MessageID] = make(map[string]int)
			result[r.MessageID] = []domain.ReactionSummary{}
		}
		i, ok := index[r.MessageID][r.Emoji]
		if !ok {
			i = len(result[r.MessageID])
			index[r.MessageID][r.Emoji] = i
			result[r.MessageID] = append(result[r.MessageID], domain.ReactionSummary{Emoji: r.Emoji})
		}
		result[r.MessageID][i].Count++
		if r.UserID == viewerID {
			result[r.MessageID][i].ReactedByMe = true
		}
	}
	return result
}

func countsOnly(in []domain.ReactionSummary) []domain.ReactionSummary {
	out := make([]domain.ReactionSummary, len(in))
	for i, r := range in {
		out[i] = domain.ReactionSummary{Emoji: r.Emoji, Count: r.Count}
	}
	return out
}

func validateBody(body string, maxRunes int, hasAttachment bool) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" && !hasAttachment {
		return "", invalidf("body is required")
	}
	if utf8.RuneCountInString(body) > maxRunes {
		return "", invalidf("body is longer than %d characters", maxRunes)
	}
	return body, nil
}

// validateEmoji accepts a short token without whitespace or control
// characters; both unicode emoji and :shortcodes: pass.
func validateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", invalidf("emoji is required")
	}
	if len(emoji) > maxEmojiBytes || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return "", invalidf("emoji is too long")
	}
	for _, r := range emoji {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", invalidf("emoji must not contain whitespace")
		}
	}
	return emoji, nil
}
