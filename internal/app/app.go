package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/folio/internal/config"
	"github.com/MrSnakeDoc/folio/internal/gallery"
	"github.com/MrSnakeDoc/folio/internal/httpserver"
	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/objectstore"
	"github.com/MrSnakeDoc/folio/internal/redis"
	"github.com/MrSnakeDoc/folio/internal/scheduler"
	"github.com/MrSnakeDoc/folio/internal/store/pg"
	redisstore "github.com/MrSnakeDoc/folio/internal/store/redis"
	"github.com/MrSnakeDoc/folio/internal/utils"
	"github.com/MrSnakeDoc/folio/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	storage      *pg.Storage
	redisClient  *goredis.Client
	warmer       *scheduler.CacheWarmer
	orphanGC     *scheduler.OrphanCollector
	seedReloader *scheduler.SeedReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Postgres is the source of truth - fail fast if unavailable
	loggerClient.Infof("Connecting to Postgres at %s:%d", cfg.PgHost, cfg.PgPort)
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storage, err := pg.New(startCtx, cfg.PostgresDSN(), pg.DefaultPoolConfig())
	if err != nil {
		loggerClient.Errorf("Failed to connect to Postgres: %v", err)
		os.Exit(1)
	}
	if err := storage.Migrate(startCtx); err != nil {
		loggerClient.Errorf("Failed to migrate Postgres schema: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Postgres initialized successfully")

	objects, err := objectstore.New(startCtx, objectstore.Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PublicURL:       cfg.S3PublicURL,
	})
	if err != nil {
		loggerClient.Errorf("Failed to configure object storage: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("object storage configured", logger.String("bucket", cfg.S3Bucket))

	// Redis is optional. The interfaces stay nil when disabled so that
	// handlers and services can test for it.
	var (
		redisClient   *goredis.Client
		responseCache gallery.ResponseCache
		redisPinger   deps.Pinger
	)
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		store := redisstore.NewStore(redisClient)
		responseCache = store
		redisPinger = store
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Info("redis address not configured, gallery response cache disabled")
	}

	images := gallery.NewImages(storage, objects, responseCache, cfg.GalleryCacheTTL, loggerClient)
	links := gallery.NewLinks(storage, loggerClient)

	warmer := scheduler.NewCacheWarmer(images, loggerClient)

	orphanGC := scheduler.NewOrphanCollector(
		objects,
		images,
		loggerClient,
		cfg.OrphanGCInterval,
		cfg.OrphanGCGrace,
	)

	// Seed reloader (if a seed file is configured)
	var seedReloader *scheduler.SeedReloader
	var reseedTrigger chan struct{}
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		reseedTrigger = make(chan struct{}, 1)
		seedReloader = scheduler.NewSeedReloader(
			cfg.SeedFile,
			cfg.S3PublicURL,
			images,
			links,
			loggerClient,
			cfg.SeedInterval,
			reseedTrigger,
		)
	} else {
		loggerClient.Info("seed file not configured, seeding disabled")
	}

	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		CORSOrigins:      cfg.CORSOrigins,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		AuthBurst:        cfg.AuthBurst,
		AuthRefillPerMin: cfg.AuthRefillPerMin,
		Images:           images,
		Links:            links,
		Auth:             gallery.NewAuth(cfg.AdminPassword),
		Orphans:          orphanGC,
		Postgres:         storage,
		Redis:            redisPinger,
		ReseedTrigger:    reseedTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		storage:      storage,
		redisClient:  redisClient,
		warmer:       warmer,
		orphanGC:     orphanGC,
		seedReloader: seedReloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Folio v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Folio %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Seed first so that the warmed cache already holds seeded images
	if a.seedReloader != nil {
		if err := a.seedReloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.SeedInterval))
	}

	if err := a.warmer.Warm(ctx); err != nil {
		a.logger.Warn("failed to warm gallery cache, serving from Postgres",
			logger.Error(err))
	}

	if err := a.orphanGC.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orphan collector: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.close()
		return err
	}

	if a.seedReloader != nil {
		a.seedReloader.Stop()
	}
	a.orphanGC.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.close()
	a.logger.Info("✅ Folio stopped cleanly")
	return nil
}

func (a *App) close() {
	utils.CloseLogged(a.storage, "postgres", a.logger)
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
}
