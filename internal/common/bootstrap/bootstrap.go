package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/config"
	"github.com/AlibekovAA/fincore/internal/common/db"
	commonhttp "github.com/AlibekovAA/fincore/internal/common/http"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/common/resilience"
)

type AuthApp struct {
	Log    *logger.Logger
	Config config.AuthConfig
	Clock  clock.Clock
	Repo   accountrepo.Repository
	// Pool and Redis are nil when the service runs on its in-memory fallbacks.
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func NewAuthApp(ctx context.Context) (*AuthApp, error) {
	log, err := initializeLogger("auth")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return nil, err
	}

	if cfg.Tokens.UsingFallbackSecrets {
		log.Warn("SECRET_KEY or REFRESH_SECRET_KEY not set: using development fallback secrets")
	}

	app := &AuthApp{
		Log:    log,
		Config: cfg,
		Clock:  clock.NewRealClock(),
	}

	if err := app.initializeRepository(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initializeRedis(ctx); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *AuthApp) initializeRepository(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		a.Log.Warn("DATABASE_URL not set: accounts are kept in memory and lost on restart")
		a.Repo = accountrepo.NewMemoryRepository(a.Clock)
		return nil
	}

	pool, err := db.NewPool(ctx, a.Log, a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database pool: %w", err)
	}
	a.Pool = pool

	repo := accountrepo.NewPgRepository(pool, a.Log)
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	a.Repo = repo
	return nil
}

func (a *AuthApp) initializeRedis(ctx context.Context) error {
	if !a.Config.Redis.Enabled() {
		a.Log.Info("REDIS_ADDR not set: refresh results are coalesced per instance only")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = client
	a.Log.Infof("redis refresh cache connected: %s", a.Config.Redis.Addr)
	return nil
}

// NewDBBreaker guards the account store. Expected repository outcomes do not
// count as failures.
func (a *AuthApp) NewDBBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  a.Config.CircuitBreakerThreshold,
		Timeout:    a.Config.CircuitBreakerTimeout,
		ResetAfter: a.Config.CircuitBreakerReset,
		Name:       "account_store",
		IsFailure:  isStoreFailure,
		Clock:      a.Clock,
		Logger:     a.Log,
	})
}

func (a *AuthApp) HealthChecks() map[string]commonhttp.Pinger {
	checks := map[string]commonhttp.Pinger{}
	if a.Pool != nil {
		checks["database"] = func(ctx context.Context) error {
			return a.Pool.Ping(ctx)
		}
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *AuthApp) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warnf("failed to close redis client: %v", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	_ = a.Log.Close()
}

func isStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, accountrepo.ErrAccountNotFound),
		errors.Is(err, accountrepo.ErrVersionConflict),
		errors.Is(err, accountrepo.ErrEmailExists),
		errors.Is(err, accountrepo.ErrTelephoneExists),
		errors.Is(err, accountrepo.ErrReferralCodeExists),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
