package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndRoundTrip(t *testing.T) {
	t.Setenv("HANGOUT_CLI_CONFIG", filepath.Join(t.TempDir(), "cli", "config.json"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, cliConfig{Transport: "uds", Server: defaultServer, Socket: defaultSocket}, cfg)
	assert.True(t, cfg.useSocket())

	cfg.Transport = "http"
	cfg.Token = "secret"
	require.NoError(t, saveConfig(cfg))

	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.False(t, got.useSocket())
}

func TestHTTPOpsSendPathsAndQueries(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotBody = nil
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := cliConfig{Transport: "http", Server: srv.URL + "/", Token: "tok"}
	ctx := context.Background()

	var msgs []domain.Message
	require.NoError(t, doMessagesList(ctx, cfg, 7, 40, 10, &msgs))
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/api/channels/7/messages", gotPath)
	assert.Equal(t, "before_id=40&limit=10", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)

	require.NoError(t, doMessagesReact(ctx, cfg, 3, "🎉", nil))
	assert.Equal(t, "/api/messages/3/reactions", gotPath)
	assert.Equal(t, "🎉", gotBody["emoji"])

	require.NoError(t, doFollow(ctx, cfg, "mika", false, nil))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/users/mika/follow", gotPath)

	require.NoError(t, doActivityList(ctx, cfg, true, 0, nil))
	assert.Equal(t, "/api/activity/all", gotPath)
	assert.Empty(t, gotQuery)
}

func TestHTTPErrorsCarryServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"channel name taken"}`))
	}))
	defer srv.Close()

	err := doChannelsCreate(context.Background(), cliConfig{Transport: "http", Server: srv.URL}, "lounge", "", "public", nil)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "channel name taken", apiErr.Message)
}

func TestSocketOnlyOpsNeedHTTP(t *testing.T) {
	err := cliConfig{Transport: "uds"}.do(context.Background(), op{httpMethod: http.MethodPost, path: "/api/auth/logout"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--transport http")
}

func TestPrintMessagesMarksEditsAndDeletes(t *testing.T) {
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	edited := domain.Message{ID: 2, AuthorUsername: "sora", Body: "fixed typo"}
	edited.EditedAt = &edited.CreatedAt
	printMessages([]domain.Message{
		{ID: 1, AuthorUsername: "mika", Body: "hello\nthere", Reactions: []domain.ReactionSummary{{Emoji: "👍", Count: 2}}},
		edited,
		{ID: 3, AuthorUsername: "mika", Body: "gone", Deleted: true},
	})

	out := buf.String()
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "👍2")
	assert.Contains(t, out, "fixed typo (edited)")
	assert.Contains(t, out, "(deleted)")
	assert.NotContains(t, out, "gone")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcd…", clip("abcdefgh", 5))
	assert.Equal(t, "a b", clip("  a \n b ", 10))
}
