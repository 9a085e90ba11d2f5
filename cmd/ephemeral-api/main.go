package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ephemeral-project/backend/internal/blob"
	"github.com/ephemeral-project/backend/internal/controllers"
	"github.com/ephemeral-project/backend/internal/hubs"
	"github.com/ephemeral-project/backend/internal/room"
	"github.com/ephemeral-project/backend/internal/router"
	"github.com/ephemeral-project/backend/internal/store"
)

func main() {
	ctx := context.Background()
	ctx, _ = signal.NotifyContext(ctx, os.Interrupt)

	app := &cli.App{
		Name: "ephemeral-api",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Value: false,
				EnvVars: []string{
					"EPHEMERAL_API_DEBUG",
				},
			},
			&cli.StringFlag{
				Name:  "http-listen-address",
				Value: "0.0.0.0:3000",
				EnvVars: []string{
					"EPHEMERAL_API_HTTP_LISTEN_ADDRESS",
				},
			},
			&cli.StringFlag{
				Name:  "public-base-url",
				Value: "http://127.0.0.1:3000",
				EnvVars: []string{
					"EPHEMERAL_API_PUBLIC_BASE_URL",
				},
			},
			&cli.StringFlag{
				Name:  "redis-uri",
				Value: "redis://127.0.0.1:6379/0",
				EnvVars: []string{
					"EPHEMERAL_API_REDIS_URI",
				},
			},
			&cli.StringFlag{
				Name:  "s3-endpoint",
				Value: "localhost:9000",
				EnvVars: []string{
					"EPHEMERAL_API_S3_ENDPOINT",
				},
			},
			&cli.StringFlag{
				Name:  "s3-access-key-id",
				Value: "minioadmin",
				EnvVars: []string{
					"EPHEMERAL_API_S3_ACCESS_KEY_ID",
				},
			},
			&cli.StringFlag{
				Name:  "s3-secret-access-key",
				Value: "minioadmin",
				EnvVars: []string{
					"EPHEMERAL_API_S3_SECRET_ACCESS_KEY",
				},
			},
			&cli.BoolFlag{
				Name:  "s3-use-ssl",
				Value: false,
				EnvVars: []string{
					"EPHEMERAL_API_S3_USE_SSL",
				},
			},
			&cli.StringFlag{
				Name:  "s3-bucket",
				Value: "ephemeral",
				EnvVars: []string{
					"EPHEMERAL_API_S3_BUCKET",
				},
			},
		},
		Before: func(cctx *cli.Context) (err error) {
			err = setupLogging(cctx.Bool("debug"))
			return
		},
		Action: entrypoint,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		zap.L().Fatal("unhandled error", zap.Error(err))
	}
}

func setupLogging(debugMode bool) error {
	var cfg zap.Config

	if debugMode {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zapcore.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level.SetLevel(zapcore.InfoLevel)
	}

	cfg.OutputPaths = []string{
		"stdout",
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)

	return nil
}

func entrypoint(cctx *cli.Context) (err error) {
	ctx := cctx.Context
	defer func() { _ = zap.L().Sync() }()

	var redisOpts *redis.Options
	if redisOpts, err = redis.ParseURL(cctx.String("redis-uri")); err != nil {
		err = fmt.Errorf("unable to parse redis uri: %w", err)
		return
	}

	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	if err = redisClient.Ping(ctx).Err(); err != nil {
		err = fmt.Errorf("failed to reach record store: %w", err)
		return
	}

	var s3Client *minio.Client
	s3Client, err = minio.New(cctx.String("s3-endpoint"), &minio.Options{
		Creds: credentials.NewStaticV4(
			cctx.String("s3-access-key-id"),
			cctx.String("s3-secret-access-key"),
			"",
		),
		Secure: cctx.Bool("s3-use-ssl"),
	})
	if err != nil {
		err = fmt.Errorf("unable to build object store client: %w", err)
		return
	}

	objects := blob.NewMinioStore(s3Client, cctx.String("s3-bucket"))
	if err = objects.EnsureBucket(ctx); err != nil {
		// The server can still run; uploads fail until the bucket exists.
		zap.L().Error("failed to ensure bucket",
			zap.String("bucket", cctx.String("s3-bucket")),
			zap.Error(err),
		)
		err = nil
	}

	records := store.NewRecordStore(redisClient, store.DefaultKeyPrefix)
	relay := blob.NewRelay(objects)
	broadcaster := room.NewBroadcaster()
	hubService := hubs.NewService(records, relay)

	muxRouter := mux.NewRouter()
	srv := &http.Server{
		Addr:        cctx.String("http-listen-address"),
		Handler:     corsMiddleware()(muxRouter),
		ReadTimeout: 15 * time.Second,
	}

	muxRouter.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})

	if cctx.Bool("debug") {
		(&controllers.GoDebugController{}).Register(muxRouter)
	}
	router.RegisterAll(muxRouter,
		&controllers.HealthController{Redis: redisClient},
		&controllers.HubController{
			Hubs:    hubService,
			BaseURL: strings.TrimRight(cctx.String("public-base-url"), "/"),
		},
		&controllers.SyncController{
			Broadcaster: broadcaster,
			Records:     records,
		},
	)

	serverDone := make(chan interface{})
	go func() {
		zap.L().Info("serving requests", zap.String("addr", "http://"+srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("failed to listen for http requests", zap.Error(err))
		}
		close(serverDone)
	}()

	select {
	case <-serverDone:
	case <-cctx.Context.Done():
	}

	return
}

// corsMiddleware mirrors the permissive policy the share-by-link UI needs.
func corsMiddleware() mux.MiddlewareFunc {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
}
