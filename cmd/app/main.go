package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anihangout/hangout/internal/adapters/blob"
	sqliteadapter "github.com/anihangout/hangout/internal/adapters/db/sqlite"
	httpadapter "github.com/anihangout/hangout/internal/adapters/http"
	"github.com/anihangout/hangout/internal/adapters/identity"
	rpcadapter "github.com/anihangout/hangout/internal/adapters/rpcjson"
	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/config"
	"github.com/anihangout/hangout/internal/jobs"
	"github.com/anihangout/hangout/internal/logging"
	"github.com/anihangout/hangout/internal/middleware"
	"github.com/anihangout/hangout/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const (
	defaultServer = "http://127.0.0.1:8080"
	defaultSocket = "/tmp/hangout.sock"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "hangout",
		Usage: "Ani Hangout server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			channelsCommand(),
			messagesCommand(),
			postsCommand(),
			usersCommand(),
			notificationsCommand(),
			activityCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP server and the JSON-RPC socket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", Sources: cli.EnvVars("HANGOUT_CONFIG")},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "files-dir", Usage: "directory for uploaded files"},
			&cli.StringFlag{Name: "redis-url", Usage: "relay realtime events through this redis"},
			&cli.StringFlag{Name: "log-level"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			overrides := []struct {
				flag   string
				target *string
			}{
				{"addr", &cfg.Server.Addr},
				{"rpc-socket", &cfg.Server.RPCSocket},
				{"db-path", &cfg.Database.Path},
				{"files-dir", &cfg.Files.Dir},
				{"redis-url", &cfg.Realtime.RedisURL},
				{"log-level", &cfg.Log.Level},
				{"bootstrap-admin-email", &cfg.Bootstrap.AdminEmail},
				{"bootstrap-admin-password", &cfg.Bootstrap.AdminPassword},
			}
			for _, o := range overrides {
				if c.IsSet(o.flag) {
					*o.target = c.String(o.flag)
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	db, err := sqliteadapter.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(realtime.WithBufferSize(cfg.Realtime.BufferSize), realtime.WithHubLogger(logger))
	if cfg.Realtime.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.Realtime.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		bridge := realtime.NewRedisBridge(client, cfg.Realtime.RedisChannel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.WithError(err).Error("redis bridge stopped")
			}
		}()
	}

	blobs, err := blob.NewDiskStore(cfg.Files.Dir)
	if err != nil {
		return err
	}

	opts := []application.Option{
		application.WithEvents(hub),
		application.WithBlobStore(blobs),
		application.WithLogger(logger),
		application.WithTypingTTL(cfg.Typing.TTL),
		application.WithMaxUploadBytes(cfg.Files.MaxBytes),
	}
	if cfg.Identity.Enabled() {
		verifier, err := newVerifier(cfg.Identity, logger)
		if err != nil {
			return err
		}
		opts = append(opts, application.WithTokenVerifier(verifier))
	}

	service := application.NewService(sqliteadapter.NewRepository(db), opts...)
	if err := service.Seed(ctx); err != nil {
		return err
	}
	if err := service.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	router := httpadapter.NewRouter(service, hub, httpadapter.Options{
		SessionTTL:   cfg.Server.SessionTTL,
		CookieSecure: cfg.Server.CookieSecure,
		Limiter:      limiter,
		Logger:       logger,
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	rpcSrv, err := rpcadapter.Start(cfg.Server.RPCSocket, service, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSrv.Close()
	}()
	logger.WithField("socket", cfg.Server.RPCSocket).Info("json-rpc listening")

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.AddCleanup(cfg.Jobs.CleanupSchedule, service, cfg.Jobs.NotificationRetention); err != nil {
		return err
	}
	if err := scheduler.AddPrune("@every 5m", limiter, 10*time.Minute); err != nil {
		return err
	}
	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

func newVerifier(cfg config.Identity, log logrus.FieldLogger) (*identity.JWTVerifier, error) {
	opts := identity.Options{Issuer: cfg.Issuer, Audience: cfg.Audience, Leeway: 30 * time.Second}
	if cfg.JWTPublicKeyFile != "" {
		return identity.LoadRSAVerifier(cfg.JWTPublicKeyFile, opts)
	}
	log.Warn("verifying identity tokens with a shared secret")
	return identity.NewHMACVerifier([]byte(cfg.JWTSecret), opts)
}
