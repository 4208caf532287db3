package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"modemode/internal/config"
	"modemode/internal/generation"
	apphttp "modemode/internal/http"
	"modemode/internal/repository"
	"modemode/internal/repository/memory"
	"modemode/internal/repository/postgres"
	"modemode/internal/repository/sqlite"
	"modemode/internal/security"
	"modemode/internal/service"
	"modemode/internal/storage"
	"modemode/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeDB, err := buildUserRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup database: %v", err)
	}
	defer closeDB()

	if err := users.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	tokens, err := token.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}
	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers)
	authService := service.NewAuthService(users, hasher, tokens, logger)

	video, err := buildVideoProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup video provider: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		authService,
		buildImageProvider(cfg, logger),
		video,
		cfg.Public.Dir,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildUserRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory user store; accounts are lost on restart")
		return memory.NewUserRepository(), func() {}, nil
	case "postgres":
		db, err = postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres user store")
		return postgres.NewUserRepository(db), func() { db.Close() }, nil
	default:
		db, err = sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite user store at %s", cfg.Database.Path)
		return sqlite.NewUserRepository(db), func() { db.Close() }, nil
	}
}

func buildImageProvider(cfg config.Config, logger *logrus.Logger) generation.ImageProvider {
	if cfg.Gemini.APIKey == "" {
		logger.Info("no gemini api key configured, serving placeholder images")
		return generation.PlaceholderImages{}
	}
	return generation.NewGeminiImages(cfg.Gemini.Endpoint, cfg.Gemini.Model, cfg.Gemini.APIKey)
}

func buildVideoProvider(ctx context.Context, cfg config.Config, logger *logrus.Logger) (generation.VideoProvider, error) {
	if cfg.Storage.Bucket == "" || cfg.Storage.VideoKey == "" {
		return generation.StaticVideo{URL: cfg.Video.URL}, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	svc := storage.NewS3Service(client)

	if ok, err := svc.ObjectExists(ctx, cfg.Storage.Bucket, cfg.Storage.VideoKey); err != nil {
		logger.Warnf("check video object: %v", err)
	} else if !ok {
		logger.Warnf("video object s3://%s/%s does not exist", cfg.Storage.Bucket, cfg.Storage.VideoKey)
	}

	logger.Infof("serving videos from s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return generation.S3Video{
		Storage: svc,
		Bucket:  cfg.Storage.Bucket,
		Key:     cfg.Storage.VideoKey,
		Expires: time.Hour,
	}, nil
}
