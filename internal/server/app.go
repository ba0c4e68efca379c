// Package server wires the account server together: configuration, storage,
// the session manager and the gRPC transport. It also handles graceful
// shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/config"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/media"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/passwords"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/ratelimit"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/sessions"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/tubeaccounts/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       redis.UniversalClient
	userService *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := media.NewS3Store(ctx, media.Config{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		PublicURL:    c.S3PublicURL,
		MaxBytes:     c.MaxImageBytes,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media store: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var limiter services.LoginLimiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = ratelimit.NewLoginLimiter(app.redis, ratelimit.Config{
			MaxAttempts: c.MaxLoginAttempts,
			Cooldown:    c.LoginCooldown,
		})
	} else {
		logger.Warn(ctx, "redis address not set, login throttling disabled")
	}

	hasher := passwords.NewHasher(c.BcryptCost)
	codec := auth.NewCodec(c.AccessTokenSecret, c.RefreshTokenSecret, c.TokenIssuer)
	users := rm.Users(db)

	sm := sessions.NewManager(users, codec, hasher, sessions.Config{
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	}, logger)

	app.userService = services.NewUserService(db, rm, sm, hasher, store, limiter, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.config.MaxImageBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
