// folioctl administers a folio gallery from the command line. It keeps a
// local snapshot of the gallery and the admin token between runs.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrSnakeDoc/folio/internal/cache"
	"github.com/MrSnakeDoc/folio/internal/client"
	"github.com/MrSnakeDoc/folio/internal/config"
	"github.com/MrSnakeDoc/folio/internal/gallerysync"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/redis"
	redisstore "github.com/MrSnakeDoc/folio/internal/store/redis"
	"github.com/MrSnakeDoc/folio/internal/utils"
)

// redisPrefix keeps CLI entries apart from the server's response cache.
const redisPrefix = "folioctl:"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		return 2
	}

	cfg := config.LoadClient()
	log := logger.New(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openCache(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	if closer != nil {
		defer utils.CloseLogged(closer, "cache", log)
	}

	api := client.New(cfg.APIURL, client.NewKVTokenStore(store),
		client.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		client.WithLogger(log),
	)
	c := &cli{
		api:  api,
		sync: gallerysync.New(api, store, gallerysync.WithLogger(log)),
		out:  os.Stdout,
		err:  os.Stderr,
	}
	return c.run(ctx, os.Args[1:])
}

// openCache picks the snapshot store: Redis when configured, else a file
// under the user cache dir, or memory when FOLIO_CACHE_FILE=memory.
func openCache(cfg *config.ClientConfig, log logger.Logger) (gallerysync.Cache, io.Closer, error) {
	if cfg.CacheRedisAddr != "" {
		rc, err := redis.New(redis.ClientOptions(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB), log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to cache redis: %w", err)
		}
		return redisstore.NewScopedStore(rc, redisPrefix), rc, nil
	}

	if cfg.CacheFile == "memory" {
		return cache.NewMemory(), nil, nil
	}

	path := cfg.CacheFile
	if path == "" {
		var err error
		if path, err = cache.DefaultFilePath(); err != nil {
			return nil, nil, fmt.Errorf("failed to locate cache dir: %w", err)
		}
	}
	log.Debug("using file cache", logger.String("path", path))
	return cache.NewFile(path), nil, nil
}
