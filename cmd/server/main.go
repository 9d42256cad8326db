package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	authapi "github.com/nocturne-dev/nocturne-auth/api/echo"
	"github.com/nocturne-dev/nocturne-auth/cache"
	redisstore "github.com/nocturne-dev/nocturne-auth/cache/redis"
	"github.com/nocturne-dev/nocturne-auth/config"
	applog "github.com/nocturne-dev/nocturne-auth/log"
	"github.com/nocturne-dev/nocturne-auth/mongodb"
	"github.com/nocturne-dev/nocturne-auth/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applog.Setup(cfg.LogLevel, cfg.LogPretty)
	zlog.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("issuer", cfg.Issuer).
		Str("log_level", cfg.LogLevel).
		Msg("Starting nocturne-auth server")

	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.MongoDBName)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to ensure MongoDB indexes")
	}

	// Revocation marks live in Redis when an address is configured, so
	// restarts and replicas share them. The in-memory store is for
	// single-node setups.
	var revocations cache.RevocationStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Fatal().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		revocations = redisstore.NewRevocationStore(redisClient, "nocturne-auth")
		zlog.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis revocation store")
	} else {
		memStore := cache.NewMemoryRevocationStore()
		defer memStore.Close()
		revocations = memStore
		zlog.Info().Msg("Using in-memory revocation store")
	}

	clientRepo := mongodb.NewClientRepository(db)
	grantRepo := mongodb.NewGrantRepository(db)
	authCodeRepo := mongodb.NewAuthCodeRepository(db)
	refreshTokenRepo := mongodb.NewRefreshTokenRepository(db)
	deviceCodeRepo := mongodb.NewDeviceCodeRepository(db)
	subjectRepo := mongodb.NewSubjectRepository(db)
	tx := mongodb.NewTransactor(mongoClient)

	signer := services.NewTokenSigner()
	signer.AddKeySigner(cfg.JWTSecretKey)

	clientService := services.NewClientService(clientRepo, cfg.KnownClients())
	grantService := services.NewGrantService(grantRepo, refreshTokenRepo, tx)
	deviceCodeService := services.NewDeviceCodeService(deviceCodeRepo, clientService, grantService, tx, cfg.Issuer+"/oauth2/device")
	tokenService := services.NewTokenService(
		authCodeRepo,
		refreshTokenRepo,
		deviceCodeRepo,
		grantService,
		clientService,
		subjectRepo,
		revocations,
		signer,
		tx,
		cfg.Issuer,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHour)*time.Hour,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	api := authapi.NewAuthAPI(tokenService, deviceCodeService, grantService, subjectRepo)
	api.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	go func() {
		zlog.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zlog.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("MongoDB disconnect error")
	}

	zlog.Info().Msg("Server stopped")
}
