package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hangout_test.db"))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(context.Background(), db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func mustUser(t *testing.T, repo *Repository, username string) domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), domain.User{Email: username + "@example.test", Username: username})
	require.NoError(t, err)
	return u
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	mustUser(t, repo, "sakura")

	_, err := repo.CreateUser(context.Background(), domain.User{Email: "other@example.test", Username: "Sakura"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repo.GetUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSuggestUsersHonorsDepthAndAvoidsCycles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	me := mustUser(t, repo, "me")
	a := mustUser(t, repo, "alice")
	b := mustUser(t, repo, "bob")
	c := mustUser(t, repo, "carol")
	d := mustUser(t, repo, "dave")
	far := mustUser(t, repo, "faraway")

	follow := func(from, to domain.User) {
		_, _, err := repo.CreateFollow(ctx, from.ID, to.ID)
		require.NoError(t, err)
	}
	follow(me, a)
	follow(me, b)
	follow(a, c)
	follow(b, c)
	follow(a, d)
	follow(d, far)
	// cycles back to the start and to an already followed user
	follow(c, me)
	follow(c, a)

	suggestions, err := repo.SuggestUsers(ctx, me.ID, 2, 10)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, c.ID, suggestions[0].User.ID)
	assert.Equal(t, 2, suggestions[0].Mutuals)
	assert.Equal(t, d.ID, suggestions[1].User.ID)
	assert.Equal(t, 1, suggestions[1].Mutuals)

	deeper, err := repo.SuggestUsers(ctx, me.ID, 3, 10)
	require.NoError(t, err)
	ids := make([]uint, 0, len(deeper))
	for _, s := range deeper {
		ids = append(ids, s.User.ID)
		assert.NotEqual(t, me.ID, s.User.ID)
		assert.NotEqual(t, a.ID, s.User.ID)
	}
	assert.Contains(t, ids, far.ID)
}

func TestCreateFollowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a := mustUser(t, repo, "alice")
	b := mustUser(t, repo, "bob")

	_, created, err := repo.CreateFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = repo.CreateFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	count, err := repo.CountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	removed, err := repo.DeleteFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.DeleteFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTogglePostLikeTwiceRestoresCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	author := mustUser(t, repo, "author")
	fan := mustUser(t, repo, "fan")

	post, err := repo.CreatePost(ctx, domain.Post{AuthorID: author.ID, Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "author", post.AuthorUsername)

	liked, err := repo.TogglePostLike(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeResult{Liked: true, LikeCount: 1}, liked)

	unliked, err := repo.TogglePostLike(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeResult{Liked: false, LikeCount: 0}, unliked)

	_, err = repo.TogglePostLike(ctx, 9999, fan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPostsVisibility(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	author := mustUser(t, repo, "author")
	follower := mustUser(t, repo, "follower")
	stranger := mustUser(t, repo, "stranger")
	_, _, err := repo.CreateFollow(ctx, follower.ID, author.ID)
	require.NoError(t, err)

	public, err := repo.CreatePost(ctx, domain.Post{AuthorID: author.ID, Body: "public", Visibility: domain.VisibilityPublic})
	require.NoError(t, err)
	private, err := repo.CreatePost(ctx, domain.Post{AuthorID: author.ID, Body: "friends", Visibility: domain.VisibilityFollowers})
	require.NoError(t, err)

	seen := func(viewer domain.User) []uint {
		posts, err := repo.ListPosts(ctx, domain.PostQuery{ViewerID: viewer.ID, Page: domain.Page{Limit: 10}})
		require.NoError(t, err)
		ids := make([]uint, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		return ids
	}
	assert.Equal(t, []uint{private.ID, public.ID}, seen(author))
	assert.Equal(t, []uint{private.ID, public.ID}, seen(follower))
	assert.Equal(t, []uint{public.ID}, seen(stranger))

	page, err := repo.ListPosts(ctx, domain.PostQuery{ViewerID: author.ID, Page: domain.Page{BeforeID: private.ID, Limit: 10}})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, public.ID, page[0].ID)
}

func TestCommentCountsFollowCommentLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	author := mustUser(t, repo, "author")
	post, err := repo.CreatePost(ctx, domain.Post{AuthorID: author.ID, Body: "hello"})
	require.NoError(t, err)

	comment, err := repo.CreateComment(ctx, domain.Comment{PostID: post.ID, AuthorID: author.ID, Body: "first"})
	require.NoError(t, err)
	got, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)

	require.NoError(t, repo.DeleteComment(ctx, comment.ID))
	got, err = repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CommentCount)
}

func TestReactionsAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := mustUser(t, repo, "alice")
	ch, err := repo.CreateChannel(ctx, domain.Channel{Name: "general", CreatedBy: u.ID})
	require.NoError(t, err)
	msg, err := repo.CreateMessage(ctx, domain.Message{ChannelID: ch.ID, AuthorID: u.ID, Body: "hi"})
	require.NoError(t, err)

	added, err := repo.ToggleReaction(ctx, msg.ID, u.ID, "🌸")
	require.NoError(t, err)
	assert.True(t, added)
	reactions, err := repo.ListReactions(ctx, []uint{msg.ID})
	require.NoError(t, err)
	assert.Len(t, reactions, 1)

	deleted, err := repo.SoftDeleteMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Empty(t, deleted.Body)
	reactions, err = repo.ListReactions(ctx, []uint{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, reactions)
}

func TestListMessagesPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := mustUser(t, repo, "alice")
	ch, err := repo.CreateChannel(ctx, domain.Channel{Name: "general", CreatedBy: u.ID})
	require.NoError(t, err)

	ids := make([]uint, 0, 5)
	for _, body := range []string{"one", "two", "three", "four", "five"} {
		m, err := repo.CreateMessage(ctx, domain.Message{ChannelID: ch.ID, AuthorID: u.ID, Body: body})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	first, err := repo.ListMessages(ctx, ch.ID, domain.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "five", first[0].Body)
	assert.Equal(t, "alice", first[0].AuthorUsername)

	second, err := repo.ListMessages(ctx, ch.ID, domain.Page{BeforeID: first[1].ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, ids[2], second[0].ID)
}

func TestUnreadCountsSkipOwnMessages(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a := mustUser(t, repo, "alice")
	b := mustUser(t, repo, "bob")
	ch, err := repo.CreateChannel(ctx, domain.Channel{Name: "general", CreatedBy: a.ID})
	require.NoError(t, err)
	_, err = repo.AddMember(ctx, domain.ChannelMember{ChannelID: ch.ID, UserID: a.ID, Role: domain.MemberOwner})
	require.NoError(t, err)
	_, err = repo.AddMember(ctx, domain.ChannelMember{ChannelID: ch.ID, UserID: b.ID})
	require.NoError(t, err)

	_, err = repo.CreateMessage(ctx, domain.Message{ChannelID: ch.ID, AuthorID: a.ID, Body: "one"})
	require.NoError(t, err)
	last, err := repo.CreateMessage(ctx, domain.Message{ChannelID: ch.ID, AuthorID: a.ID, Body: "two"})
	require.NoError(t, err)

	counts, err := repo.UnreadCounts(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, int64(2), counts[0].Unread)

	own, err := repo.UnreadCounts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), own[0].Unread)

	require.NoError(t, repo.UpdateLastRead(ctx, ch.ID, b.ID, last.ID))
	counts, err = repo.UnreadCounts(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[0].Unread)
}

func TestTypingExpiry(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := mustUser(t, repo, "alice")
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertTyping(ctx, domain.TypingIndicator{ChannelID: 1, UserID: u.ID, ExpiresAt: now.Add(5 * time.Second)}))
	require.NoError(t, repo.UpsertTyping(ctx, domain.TypingIndicator{ChannelID: 1, UserID: u.ID, ExpiresAt: now.Add(6 * time.Second)}))

	active, err := repo.ListTyping(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].Username)

	removed, err := repo.DeleteExpiredTyping(ctx, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestModuleStateUpsertKeepsExplicitFalse(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := mustUser(t, repo, "alice")

	_, err := repo.UpsertModuleState(ctx, domain.ModuleState{UserID: u.ID, ModuleKey: "chat", X: 10, Y: 20, Width: 400, Height: 300, Z: 1, Open: true})
	require.NoError(t, err)
	closed, err := repo.UpsertModuleState(ctx, domain.ModuleState{UserID: u.ID, ModuleKey: "chat", X: 10, Y: 20, Width: 400, Height: 300, Z: 1, Open: false})
	require.NoError(t, err)
	assert.False(t, closed.Open)

	states, err := repo.ListModuleStates(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.False(t, states[0].Open)
}

func TestActivityLogFilterByActor(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a := mustUser(t, repo, "alice")
	b := mustUser(t, repo, "bob")

	require.NoError(t, repo.CreateActivityLog(ctx, domain.ActivityLog{ActorUserID: &a.ID, Action: "social.follow", TargetType: "user", TargetID: &b.ID}))
	require.NoError(t, repo.CreateActivityLog(ctx, domain.ActivityLog{ActorUserID: &b.ID, Action: "feed.post.create", TargetType: "post"}))

	all, err := repo.ListActivityLogs(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := repo.ListActivityLogs(ctx, &a.ID, 10)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "alice", own[0].ActorUsername)
}
