package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hangout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  session_ttl: 12h
database:
  path: /var/lib/hangout/db.sqlite
typing:
  ttl: 3s
identity:
  jwt_secret: from-file
  issuer: https://id.example.test
log:
  format: json
`), 0o600))

	t.Setenv("HANGOUT_IDENTITY_JWT_SECRET", "from-env")
	t.Setenv("HANGOUT_FILES_MAX_BYTES", "1024")
	t.Setenv("HANGOUT_JOBS_NOTIFICATION_RETENTION", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "/var/lib/hangout/db.sqlite", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Typing.TTL)
	assert.Equal(t, "from-env", cfg.Identity.JWTSecret)
	assert.True(t, cfg.Identity.Enabled())
	assert.Equal(t, int64(1024), cfg.Files.MaxBytes)
	assert.Equal(t, 48*time.Hour, cfg.Jobs.NotificationRetention)
	assert.Equal(t, "/tmp/hangout.sock", cfg.Server.RPCSocket, "unset keys keep defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HANGOUT_TYPING_TTL", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "HANGOUT_TYPING_TTL")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}
