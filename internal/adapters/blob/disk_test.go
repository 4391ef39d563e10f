package blob

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	n, err := s.Put(ctx, "abc", strings.NewReader("sakura"), 16)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	rc, err := s.Open(ctx, "abc")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "sakura", string(data))

	require.NoError(t, s.Delete(ctx, "abc"))
	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Open(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDiskStoreRejectsOversizeAndBadKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	_, err = s.Put(ctx, "big", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, domain.ErrInvalid)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial upload is left behind")

	_, err = s.Put(ctx, "../escape", strings.NewReader("x"), 4)
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = s.Open(ctx, ".hidden")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}
