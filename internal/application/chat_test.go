package application

import (
	"context"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelMembershipRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner")
	guest := f.user(t, "guest")

	_, err := f.svc.CreateChannel(ctx, owner.ID, "Bad Name!", "", "")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	public, err := f.svc.CreateChannel(ctx, owner.ID, "general", "everyone", "")
	require.NoError(t, err)
	private, err := f.svc.CreateChannel(ctx, owner.ID, "secret", "", domain.ChannelPrivate)
	require.NoError(t, err)

	_, err = f.svc.JoinChannel(ctx, guest.ID, public.ID)
	require.NoError(t, err)
	_, err = f.svc.JoinChannel(ctx, guest.ID, private.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.ListMessages(ctx, guest.ID, private.ID, 0, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.InviteMember(ctx, guest.ID, private.ID, "guest")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.InviteMember(ctx, owner.ID, private.ID, "guest")
	require.NoError(t, err)

	channels, err := f.svc.ListChannels(ctx, guest.ID, 0)
	require.NoError(t, err)
	assert.Len(t, channels, 2)

	require.NoError(t, f.svc.LeaveChannel(ctx, guest.ID, private.ID))
	channels, err = f.svc.ListChannels(ctx, guest.ID, 0)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestOpenDirectChannelIsStable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	first, err := f.svc.OpenDirectChannel(ctx, b.ID, a.ID)
	require.NoError(t, err)
	second, err := f.svc.OpenDirectChannel(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, DirectChannelName(a.ID, b.ID), first.Name)
	assert.Equal(t, domain.ChannelDirect, first.Kind)

	_, err = f.svc.SendMessage(ctx, a.ID, SendMessageInput{ChannelID: first.ID, Body: "hey"})
	require.NoError(t, err)
	notes, err := f.svc.ListNotifications(ctx, b.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyMessage, notes[0].Type)

	_, err = f.svc.OpenDirectChannel(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestSendMessageValidationAndMentions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	outsider := f.user(t, "carol")
	ch, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, b.ID, SendMessageInput{ChannelID: ch.ID, Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrForbidden, "non-members cannot post")

	_, err = f.svc.SendMessage(ctx, a.ID, SendMessageInput{ChannelID: ch.ID, Body: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = f.svc.JoinChannel(ctx, b.ID, ch.ID)
	require.NoError(t, err)
	msg, err := f.svc.SendMessage(ctx, a.ID, SendMessageInput{ChannelID: ch.ID, Body: "  hi @Bob and @carol and @alice and @bob  "})
	require.NoError(t, err)
	assert.Equal(t, "hi @Bob and @carol and @alice and @bob", msg.Body)
	assert.Equal(t, "alice", msg.AuthorUsername)

	bobNotes, err := f.svc.ListNotifications(ctx, b.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, domain.NotifyMention, bobNotes[0].Type)

	// public channel: carol can read it, so she is notified too
	carolNotes, err := f.svc.ListNotifications(ctx, outsider.ID, false, 0)
	require.NoError(t, err)
	assert.Len(t, carolNotes, 1)

	selfNotes, err := f.svc.ListNotifications(ctx, a.ID, false, 0)
	require.NoError(t, err)
	assert.Empty(t, selfNotes)

	created := f.events.ofType(domain.EventMessageCreated)
	require.Len(t, created, 1)
	assert.Equal(t, domain.ChannelTopic(ch.ID), created[0].Topic)

	reply, err := f.svc.SendMessage(ctx, b.ID, SendMessageInput{ChannelID: ch.ID, Body: "yo", ParentID: &msg.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)

	unread, err := f.svc.UnreadCounts(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, int64(1), unread[0].Unread)
	require.NoError(t, f.svc.MarkRead(ctx, a.ID, ch.ID, reply.ID))
	unread, err = f.svc.UnreadCounts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread[0].Unread)
}

func TestParseMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol"}, ParseMentions("@Bob hi @carol, @bob again mail@example.com"))
	assert.Empty(t, ParseMentions("no mentions @x"))
}

func TestEditAndDeleteMessagePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	ch, err := f.svc.CreateChannel(ctx, owner.ID, "general", "", "")
	require.NoError(t, err)
	_, err = f.svc.JoinChannel(ctx, member.ID, ch.ID)
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, member.ID, SendMessageInput{ChannelID: ch.ID, Body: "first"})
	require.NoError(t, err)

	_, err = f.svc.EditMessage(ctx, owner.ID, msg.ID, "hijack")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	edited, err := f.svc.EditMessage(ctx, member.ID, msg.ID, "first!")
	require.NoError(t, err)
	assert.Equal(t, "first!", edited.Body)
	assert.NotNil(t, edited.EditedAt)

	ownerMsg, err := f.svc.SendMessage(ctx, owner.ID, SendMessageInput{ChannelID: ch.ID, Body: "rules"})
	require.NoError(t, err)
	_, err = f.svc.DeleteMessage(ctx, member.ID, ownerMsg.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	deleted, err := f.svc.DeleteMessage(ctx, owner.ID, msg.ID)
	require.NoError(t, err, "channel owner may delete any message")
	assert.True(t, deleted.Deleted)
	assert.Empty(t, deleted.Body)

	_, err = f.svc.EditMessage(ctx, member.ID, msg.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestToggleReactionTwiceRestoresAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	ch, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)
	msg, err := f.svc.SendMessage(ctx, a.ID, SendMessageInput{ChannelID: ch.ID, Body: "hi"})
	require.NoError(t, err)

	before, err := f.svc.ToggleReaction(ctx, a.ID, msg.ID, "🌸")
	require.NoError(t, err)
	assert.Equal(t, []domain.ReactionSummary{{Emoji: "🌸", Count: 1, ReactedByMe: true}}, before)

	added, err := f.svc.ToggleReaction(ctx, b.ID, msg.ID, "🌸")
	require.NoError(t, err)
	assert.Equal(t, []domain.ReactionSummary{{Emoji: "🌸", Count: 2, ReactedByMe: true}}, added)

	removed, err := f.svc.ToggleReaction(ctx, b.ID, msg.ID, "🌸")
	require.NoError(t, err)
	assert.Equal(t, []domain.ReactionSummary{{Emoji: "🌸", Count: 1, ReactedByMe: false}}, removed)

	listed, err := f.svc.ListMessages(ctx, a.ID, ch.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, before, listed[0].Reactions)

	notes, err := f.svc.ListNotifications(ctx, a.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1, "own reaction does not notify, bob's does once")
	assert.Equal(t, domain.NotifyReaction, notes[0].Type)

	_, err = f.svc.ToggleReaction(ctx, a.ID, msg.ID, "two words")
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = f.svc.ToggleReaction(ctx, a.ID, msg.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestSummarizeReactionsKeepsFirstUseOrder(t *testing.T) {
	reactions := []domain.MessageReaction{
		{MessageID: 1, UserID: 1, Emoji: "👍"},
		{MessageID: 1, UserID: 2, Emoji: "🔥"},
		{MessageID: 1, UserID: 3, Emoji: "👍"},
		{MessageID: 2, UserID: 3, Emoji: "🔥"},
	}
	out := SummarizeReactions(reactions, 3)
	assert.Equal(t, []domain.ReactionSummary{
		{Emoji: "👍", Count: 2, ReactedByMe: true},
		{Emoji: "🔥", Count: 1},
	}, out[1])
	assert.Equal(t, []domain.ReactionSummary{{Emoji: "🔥", Count: 1, ReactedByMe: true}}, out[2])
}

func TestSetTypingThrottlesWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithTypingTTL(4*time.Second))
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	ch, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)
	_, err = f.svc.JoinChannel(ctx, b.ID, ch.ID)
	require.NoError(t, err)

	sent, err := f.svc.SetTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	f.clock.Advance(time.Second)
	sent, err = f.svc.SetTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	assert.False(t, sent, "more than half the ttl left")

	f.clock.Advance(1500 * time.Millisecond)
	sent, err = f.svc.SetTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, f.events.ofType(domain.EventTypingUpdated), 2)

	typing, err := f.svc.ListTyping(ctx, b.ID, ch.ID)
	require.NoError(t, err)
	require.Len(t, typing, 1)
	assert.Equal(t, "alice", typing[0].Username)
	own, err := f.svc.ListTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, own)

	f.clock.Advance(5 * time.Second)
	typing, err = f.svc.ListTyping(ctx, b.ID, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, typing)

	result, err := f.svc.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Typing)
}

func TestSendMessageClearsTyping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	ch, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)

	_, err = f.svc.SetTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, a.ID, SendMessageInput{ChannelID: ch.ID, Body: "done"})
	require.NoError(t, err)

	events := f.events.ofType(domain.EventTypingUpdated)
	require.Len(t, events, 2)
	payload, ok := events[1].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, payload["typing"])
}

func TestTypingPreferenceDisablesBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	ch, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)

	_, err = f.svc.SetPreference(ctx, a.ID, PrefTypingIndicator, "0")
	require.NoError(t, err)
	sent, err := f.svc.SetTyping(ctx, a.ID, ch.ID)
	require.NoError(t, err)
	assert.False(t, sent)
}
