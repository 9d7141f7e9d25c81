package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-auth-service/app/db"
	"github.com/FACorreiaa/go-auth-service/config"
	"github.com/FACorreiaa/go-auth-service/internal/api/auth"
	"github.com/FACorreiaa/go-auth-service/internal/mailer"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Store       auth.CredentialStore
	Tokens      *auth.TokenService
	Mailer      mailer.Dispatcher
	AuthService *auth.AuthServiceImpl
	AuthHandler *auth.HandlerImpl
}

// Option overrides a collaborator NewContainer would otherwise build from config.
type Option func(*Container)

// WithMailer replaces the configured mail driver.
func WithMailer(d mailer.Dispatcher) Option {
	return func(c *Container) { c.Mailer = d }
}

// WithStore replaces the configured credential store.
func WithStore(s auth.CredentialStore) Option {
	return func(c *Container) { c.Store = s }
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(c)
	}

	if c.Store == nil {
		store, err := c.newStore(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Store = store
	}
	store := auth.WithTimeout(c.Store, cfg.Store.Timeout)

	if c.Mailer == nil {
		switch cfg.Mail.Driver {
		case "smtp":
			smtp, err := mailer.NewSMTPDispatcher(cfg.Mail, logger)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("mail dispatcher: %w", err)
			}
			c.Mailer = smtp
		default:
			c.Mailer = mailer.NewLogDispatcher(logger)
		}
	}

	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}
	c.Tokens = tokens

	hasher := auth.NewBcryptHasher(auth.DefaultBcryptCost)
	c.AuthService = auth.NewAuthService(auth.ServiceDeps{
		Store:       store,
		Hasher:      hasher,
		Tokens:      tokens,
		Codes:       auth.NewCodeIssuer(store, cfg.Verification.CodeTTL),
		Resets:      auth.NewResetIssuer(store, hasher, cfg.Reset.TokenTTL),
		Throttle:    auth.NewRegistrationThrottle(c.newCounterStore(), cfg.Throttle.Window, cfg.Throttle.Quota, logger),
		Mailer:      c.Mailer,
		MailTimeout: cfg.Mail.Timeout,
		ResetURL:    cfg.Reset.ResetURL,
	}, logger)
	c.AuthHandler = auth.NewHandlerImpl(c.AuthService, tokens.AccessTTL(), logger)
	c.Store = store

	return c, nil
}

func (c *Container) newStore(ctx context.Context) (auth.CredentialStore, error) {
	if c.Config.Store.Backend != "postgres" {
		c.Logger.Warn("Using in-memory credential store; accounts are lost on restart")
		return auth.NewMemoryAuthRepo(), nil
	}

	dbConfig, err := database.NewDatabaseConfig(c.Config, c.Logger)
	if err != nil {
		c.Logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, c.Logger)
	if err != nil {
		c.Logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}
	c.Pool = pool
	return auth.NewPostgresAuthRepo(pool, c.Logger), nil
}

func (c *Container) newCounterStore() auth.CounterStore {
	if c.Config.Throttle.Backend != "redis" {
		return auth.NewCacheCounterStore(c.Config.Throttle.Window)
	}
	rc := c.Config.Repositories.Redis
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	return auth.NewRedisCounterStore(c.Redis)
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Error closing redis client", slog.Any("error", err))
		}
	}
}

// WaitForDB waits for the database to be ready. Without a pool there is nothing to wait for.
func (c *Container) WaitForDB(ctx context.Context) bool {
	if c.Pool == nil {
		return true
	}
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
