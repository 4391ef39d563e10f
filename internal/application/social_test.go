package application

import (
	"context"
	"testing"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRejectsSelfAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	assert.ErrorIs(t, f.svc.Follow(ctx, a.ID, a.ID), domain.ErrInvalid)

	require.NoError(t, f.svc.Follow(ctx, a.ID, b.ID))
	require.NoError(t, f.svc.Follow(ctx, a.ID, b.ID))

	profile, err := f.svc.GetProfile(ctx, a.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.FollowerCount)
	assert.True(t, profile.FollowedByMe)

	notes, err := f.svc.ListNotifications(ctx, b.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1, "repeat follow must not notify twice")
	assert.Equal(t, domain.NotifyFollow, notes[0].Type)
	assert.Equal(t, "alice", notes[0].ActorUsername)
	assert.Len(t, f.events.ofType(domain.EventNotificationCreated), 1)

	following, err := f.svc.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, following)
	profile, err = f.svc.GetProfile(ctx, a.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.FollowerCount)
}

func TestFollowRespectsNotificationPreference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	_, err := f.svc.SetPreference(ctx, b.ID, PrefNotificationsEnabled, "false")
	require.NoError(t, err)
	require.NoError(t, f.svc.Follow(ctx, a.ID, b.ID))

	count, err := f.svc.UnreadNotificationCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSuggestUsersFallsBackToNewest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.user(t, "me")
	friend := f.user(t, "friend")
	fof := f.user(t, "fof")
	newcomer := f.user(t, "newcomer")

	require.NoError(t, f.svc.Follow(ctx, me.ID, friend.ID))
	require.NoError(t, f.svc.Follow(ctx, friend.ID, fof.ID))

	suggestions, err := f.svc.SuggestUsers(ctx, me.ID, 5)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, fof.ID, suggestions[0].User.ID)
	assert.Equal(t, 1, suggestions[0].Mutuals)
	assert.Equal(t, newcomer.ID, suggestions[1].User.ID)
	assert.Equal(t, 0, suggestions[1].Mutuals)
}

func TestUpdateProfileValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.svc.UpdateProfile(ctx, u.ID, "Alice", "", "javascript:alert(1)")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	updated, err := f.svc.UpdateProfile(ctx, u.ID, "Alice ✿", "hi", "https://img.example.test/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Alice ✿", updated.DisplayName)
	assert.Equal(t, "alice@example.test", updated.Email)
}

func TestSetPresencePublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	assert.ErrorIs(t, f.svc.SetPresence(ctx, u.ID, "busy"), domain.ErrInvalid)
	require.NoError(t, f.svc.SetPresence(ctx, u.ID, domain.StatusOnline))

	got, err := f.svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnline, got.Status)
	events := f.events.ofType(domain.EventPresenceUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, domain.PresenceTopic, events[0].Topic)
}
