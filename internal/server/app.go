// Package server wires the journal service together: configuration, storage,
// crypto, events, throttling, and the HTTP and gRPC health listeners.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"github.com/dmitrijs2005/gophjournal/internal/cryptox"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/server/auth"
	"github.com/dmitrijs2005/gophjournal/internal/server/config"
	"github.com/dmitrijs2005/gophjournal/internal/server/events"
	"github.com/dmitrijs2005/gophjournal/internal/server/httpapi"
	"github.com/dmitrijs2005/gophjournal/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zapcore"

	gs "github.com/dmitrijs2005/gophjournal/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	events      events.Publisher
	limiter     ratelimit.Limiter
	closers     []io.Closer
	security    *services.SecurityService
	journal     *services.JournalService
	tokens      *auth.TokenIssuer
}

func newLogger(c *config.Config, w io.Writer) (logging.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch c.LogFormat {
	case "text":
		return logging.NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))), nil
	case "zap":
		return logging.NewZapProduction(false, zapLevel(level))
	case "zap-dev":
		return logging.NewZapProduction(true, zapLevel(level))
	default:
		return logging.NewJSONLogger(w, level), nil
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func newKeyRing(c *config.Config) (*cryptox.KeyRing, error) {
	keys, err := cryptox.ParseKeys(c.EncryptionKeys)
	if err != nil {
		return nil, err
	}
	return cryptox.NewKeyRing(keys, c.ActiveKeyID)
}

// newPublisher prefers RabbitMQ and falls back to the log when the broker is
// not configured or cannot be reached.
func newPublisher(c *config.Config, logger logging.Logger) events.Publisher {
	if c.RabbitMQURL == "" {
		return events.NewLogPublisher(logger)
	}
	p, err := events.NewAMQPPublisher(c.RabbitMQURL, c.EventsExchange, logger)
	if err != nil {
		logger.Warn(context.Background(), "rabbitmq unavailable, security events go to the log", "error", err)
		return events.NewLogPublisher(logger)
	}
	return p
}

// newLimiter returns the limiter and, for redis, the client to close.
func newLimiter(c *config.Config, clk clock.Clock) (ratelimit.Limiter, io.Closer, error) {
	if c.UnlockRateLimit == 0 {
		return ratelimit.Unlimited{}, nil, nil
	}
	if c.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(c.UnlockRateLimit, c.UnlockRateWindow, clk), nil, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return ratelimit.NewRedisLimiter(client, "gophjournal:unlock", c.UnlockRateLimit, c.UnlockRateWindow), client, nil
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(c, os.Stdout)
	if err != nil {
		return nil, err
	}

	ring, err := newKeyRing(c)
	if err != nil {
		return nil, fmt.Errorf("encryption keys: %w", err)
	}

	clk := clock.Real{}
	tokens, err := auth.NewTokenIssuer([]byte(c.TokenSecret), c.AccessTokenTTL, clk)
	if err != nil {
		return nil, err
	}

	limiter, limiterCloser, err := newLimiter(c, clk)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: repomanager.NewPostgresRepositoryManager(),
		events:      newPublisher(c, logger),
		limiter:     limiter,
		tokens:      tokens,
	}
	if limiterCloser != nil {
		app.closers = append(app.closers, limiterCloser)
	}

	app.security = services.NewSecurityService(db, app.repomanager, services.SecurityDeps{
		Hasher: cryptox.NewPINHasher(cryptox.DefaultArgon2Params),
		Tokens: tokens,
		Policy: c.LockoutPolicy(),
		Clock:  clk,
		Events: app.events,
		Logger: logger,
	})
	app.journal = services.NewJournalService(db, app.repomanager, ring, clk, app.events, logger)

	logger.Info(context.Background(), "journal service configured",
		"active_key_id", ring.ActiveKeyID(), "key_ids", ring.KeyIDs(),
		"lockout_threshold", c.LockoutThreshold, "lockout_duration", c.LockoutDuration)
	return app, nil
}

func (app *App) router() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Security: app.security,
		Journal:  app.journal,
		Tokens:   app.tokens,
		Limiter:  app.limiter,
		DB:       app.db,
		Logger:   app.logger,
	}, httpapi.Options{
		UserHeader:          app.config.UserHeader,
		CORSOrigins:         app.config.CORSOrigins,
		UniformUnlockErrors: app.config.UniformUnlockErrors,
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{Addr: app.config.HTTPAddr, Handler: app.router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		app.logger.Info(ctx, "Stopping HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.db, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc health server", "error", err)
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	if err := app.events.Close(); err != nil {
		app.logger.Error(ctx, "close event publisher", "error", err)
	}
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close database", "error", err)
	}
	// syncing stdout returns EINVAL on terminals; ignored
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// Run migrates the schema and serves until SIGINT/SIGTERM or a listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancelFunc()
	defer app.close(context.Background())

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
