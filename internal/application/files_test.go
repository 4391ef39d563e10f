package application

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadFileStoresAndEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithMaxUploadBytes(8))
	owner := f.user(t, "alice")
	other := f.user(t, "bob")

	file, err := f.svc.UploadFile(ctx, owner.ID, "../../etc/notes.txt", "", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(5), file.Size)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/plain"))

	meta, rc, err := f.svc.OpenFile(ctx, file.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, file.StorageKey, meta.StorageKey)

	_, err = f.svc.UploadFile(ctx, owner.ID, "big.bin", "", strings.NewReader("123456789"))
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Len(t, f.blobs.data, 1)

	_, err = f.svc.CreatePost(ctx, other.ID, "", "", &file.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden, "cannot attach someone else's file")
	post, err := f.svc.CreatePost(ctx, owner.ID, "", "", &file.ID)
	require.NoError(t, err, "an attachment makes the body optional")
	require.NotNil(t, post.FileID)

	assert.ErrorIs(t, f.svc.DeleteFile(ctx, other.ID, file.ID), domain.ErrForbidden)
}

func TestDeleteFileRemovesBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "alice")

	file, err := f.svc.UploadFile(ctx, owner.ID, "cat.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)

	require.NoError(t, f.svc.DeleteFile(ctx, owner.ID, file.ID))
	assert.Empty(t, f.blobs.data)
	_, _, err = f.svc.OpenFile(ctx, file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadWithoutBlobStore(t *testing.T) {
	f := newFixture(t, WithBlobStore(nil))
	owner := f.user(t, "alice")
	_, err := f.svc.UploadFile(context.Background(), owner.ID, "a.txt", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, errNoBlobStore)
}

func TestPreferencesMergeDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	prefs, err := f.svc.GetPreferences(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs[PrefTheme])
	assert.Equal(t, "true", prefs[PrefSoundEnabled])

	prefs, err = f.svc.SetPreference(ctx, u.ID, PrefTheme, " light ")
	require.NoError(t, err)
	assert.Equal(t, "light", prefs[PrefTheme])

	prefs, err = f.svc.SetPreference(ctx, u.ID, PrefSoundEnabled, "0")
	require.NoError(t, err)
	assert.Equal(t, "false", prefs[PrefSoundEnabled])

	_, err = f.svc.SetPreference(ctx, u.ID, PrefSoundEnabled, "maybe")
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = f.svc.SetPreference(ctx, u.ID, "nope", "x")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = f.svc.UpsertPreferenceDef(ctx, "font_size", KindInt, "14", "Chat font size")
	require.NoError(t, err)
	prefs, err = f.svc.GetPreferences(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "14", prefs["font_size"])
	assert.Len(t, prefs, len(DefaultPreferenceDefs)+1)

	other := f.user(t, "bob")
	prefs, err = f.svc.GetPreferences(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs[PrefTheme])
}

func TestActivityIsRecordedPerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	_, err := f.svc.CreateChannel(ctx, a.ID, "general", "", "")
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, b.ID, "hi", "", nil)
	require.NoError(t, err)

	mine, err := f.svc.ListActivity(ctx, a.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, mine)
	assert.Equal(t, "chat.channel.create", mine[0].Action)
	for _, rec := range mine {
		require.NotNil(t, rec.ActorUserID)
		assert.Equal(t, a.ID, *rec.ActorUserID)
	}

	all, err := f.svc.ListAllActivity(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "feed.post.create", all[0].Action)
	assert.Equal(t, "bob", all[0].ActorUsername)
}
