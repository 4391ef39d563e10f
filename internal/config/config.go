// Package config loads server settings from a YAML file with HANGOUT_*
// environment overrides. Command-line flags are applied on top by cmd/app.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvPrefix = "HANGOUT_"

type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Identity  Identity  `yaml:"identity"`
	Realtime  Realtime  `yaml:"realtime"`
	Typing    Typing    `yaml:"typing"`
	Files     Files     `yaml:"files"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
	Jobs      Jobs      `yaml:"jobs"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	RPCSocket    string        `yaml:"rpc_socket"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

type Database struct {
	Path string `yaml:"path"`
}

// Identity configures verification of identity-provider tokens. Either a
// shared HS256 secret or an RS256 public key file enables it.
type Identity struct {
	JWTSecret        string `yaml:"jwt_secret"`
	JWTPublicKeyFile string `yaml:"jwt_public_key_file"`
	Issuer           string `yaml:"issuer"`
	Audience         string `yaml:"audience"`
}

func (i Identity) Enabled() bool {
	return i.JWTSecret != "" || i.JWTPublicKeyFile != ""
}

type Realtime struct {
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
	BufferSize   int    `yaml:"buffer_size"`
}

type Typing struct {
	TTL time.Duration `yaml:"ttl"`
}

type Files struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Bootstrap struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type Jobs struct {
	CleanupSchedule       string        `yaml:"cleanup_schedule"`
	NotificationRetention time.Duration `yaml:"notification_retention"`
}

// Default returns settings for a working local server.
func Default() Config {
	return Config{
		Server: Server{
			Addr:       ":8080",
			RPCSocket:  "/tmp/hangout.sock",
			SessionTTL: 7 * 24 * time.Hour,
		},
		Database: Database{Path: "hangout.db"},
		Realtime: Realtime{RedisChannel: "hangout:events", BufferSize: 64},
		Typing:   Typing{TTL: 5 * time.Second},
		Files:    Files{Dir: "data/files", MaxBytes: 10 << 20},
		RateLimit: RateLimit{
			RPS:   20,
			Burst: 40,
		},
		Log: Log{Level: "info", Format: "text"},
		Bootstrap: Bootstrap{
			AdminEmail:    "admin@hangout.local",
			AdminPassword: "admin-password",
		},
		Jobs: Jobs{
			CleanupSchedule:       "@every 1m",
			NotificationRetention: 30 * 24 * time.Hour,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Server.SessionTTL <= 0 {
		return errors.New("server.session_ttl must be positive")
	}
	if c.Files.MaxBytes <= 0 {
		return errors.New("files.max_bytes must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":              &cfg.Server.Addr,
		"SERVER_RPC_SOCKET":        &cfg.Server.RPCSocket,
		"DATABASE_PATH":            &cfg.Database.Path,
		"IDENTITY_JWT_SECRET":      &cfg.Identity.JWTSecret,
		"IDENTITY_JWT_PUBLIC_KEY":  &cfg.Identity.JWTPublicKeyFile,
		"IDENTITY_ISSUER":          &cfg.Identity.Issuer,
		"IDENTITY_AUDIENCE":        &cfg.Identity.Audience,
		"REALTIME_REDIS_URL":       &cfg.Realtime.RedisURL,
		"REALTIME_REDIS_CHANNEL":   &cfg.Realtime.RedisChannel,
		"FILES_DIR":                &cfg.Files.Dir,
		"LOG_LEVEL":                &cfg.Log.Level,
		"LOG_FORMAT":               &cfg.Log.Format,
		"BOOTSTRAP_ADMIN_EMAIL":    &cfg.Bootstrap.AdminEmail,
		"BOOTSTRAP_ADMIN_PASSWORD": &cfg.Bootstrap.AdminPassword,
		"JOBS_CLEANUP_SCHEDULE":    &cfg.Jobs.CleanupSchedule,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SERVER_SESSION_TTL":          &cfg.Server.SessionTTL,
		"TYPING_TTL":                  &cfg.Typing.TTL,
		"JOBS_NOTIFICATION_RETENTION": &cfg.Jobs.NotificationRetention,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "SERVER_COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_COOKIE_SECURE: %w", EnvPrefix, err)
		}
		cfg.Server.CookieSecure = b
	}
	if v, ok := lookup(EnvPrefix + "FILES_MAX_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sFILES_MAX_BYTES: %w", EnvPrefix, err)
		}
		cfg.Files.MaxBytes = n
	}
	if v, ok := lookup(EnvPrefix + "REALTIME_BUFFER_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREALTIME_BUFFER_SIZE: %w", EnvPrefix, err)
		}
		cfg.Realtime.BufferSize = n
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_RPS: %w", EnvPrefix, err)
		}
		cfg.RateLimit.RPS = f
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_BURST: %w", EnvPrefix, err)
		}
		cfg.RateLimit.Burst = n
	}
	return nil
}
