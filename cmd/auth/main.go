package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcleanup "github.com/AlibekovAA/fincore/internal/auth/cleanup"
	"github.com/AlibekovAA/fincore/internal/auth/guard"
	authhttp "github.com/AlibekovAA/fincore/internal/auth/http"
	"github.com/AlibekovAA/fincore/internal/auth/service"
	"github.com/AlibekovAA/fincore/internal/auth/token"
	"github.com/AlibekovAA/fincore/internal/common/bootstrap"
	"github.com/AlibekovAA/fincore/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/fincore/internal/common/http"
	srv "github.com/AlibekovAA/fincore/internal/common/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAuthApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start auth service: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	log := app.Log
	cfg := app.Config

	idGenerator := commoncrypto.NewUUIDGenerator()
	hasher, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{
		MemoryKB:    cfg.Argon2.MemoryKB,
		Time:        cfg.Argon2.Time,
		Parallelism: cfg.Argon2.Parallelism,
	})
	if err != nil {
		log.Fatalf("failed to configure hasher: %v", err)
	}

	codec, err := token.NewCodec(cfg.Tokens, idGenerator, app.Clock)
	if err != nil {
		log.Fatalf("failed to configure token codec: %v", err)
	}

	var cache service.RefreshResultCache
	if app.Redis != nil {
		cache = service.NewRedisRefreshCache(app.Redis)
	} else {
		memoryCache := service.NewMemoryRefreshCache(ctx, app.Clock, log)
		defer memoryCache.Close()
		cache = memoryCache
	}

	dbBreaker := app.NewDBBreaker()

	tokens := service.NewTokenService(app.Repo, codec, hasher, cache, dbBreaker, app.Clock, log)
	identity := service.NewIdentityStrategy(app.Repo, codec, dbBreaker, log)
	accounts := service.NewAccountService(
		app.Repo,
		tokens,
		hasher,
		idGenerator,
		service.NewLogOTPSender(log),
		dbBreaker,
		cfg.OTPTTL,
		app.Clock,
		log,
	)

	cookies := guard.CookieConfig{Secure: cfg.CookieSecure}
	accessGuard := guard.New(codec, identity, tokens, cookies, log)

	rateLimiter := commonhttp.NewEndpointRateLimiter()
	rateLimiter.StartCleanup(ctx)

	sweeper := authcleanup.NewSweeper(app.Repo, cfg.Tokens.RefreshGrace, app.Clock, log)
	go sweeper.Start(ctx, constants.SessionCleanupInterval)

	handler := authhttp.NewHandler(accounts, accessGuard, rateLimiter, authhttp.Options{
		Cookies:        cookies,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   app.HealthChecks(),
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), commonhttp.BuildBaseHandler(log, mux), log)

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("auth service: stopping background workers")
			stop()
			return nil
		},
	}

	if err := srv.Run(ctx, server, log, "auth", shutdownHooks...); err != nil {
		log.Errorf("auth service stopped with error: %v", err)
		app.Close()
		os.Exit(1)
	}
}
