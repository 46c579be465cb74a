package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	AdminPassword  string // shared secret, also the bearer token for admin routes
	MaxUploadBytes int64  // multipart upload limit (default 10 MiB)

	// Postgres
	PgHost     string
	PgPort     int
	PgUser     string
	PgPassword string
	PgDBName   string
	PgSSLMode  string

	// S3-compatible object storage (R2, MinIO, AWS)
	S3Endpoint        string // empty => AWS default resolver
	S3Region          string // "auto" for R2
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicURL       string // public base URL of the bucket, ex: https://media.domain.ext

	// Redis (optional: empty address disables the gallery response cache)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts
	GalleryCacheTTL     time.Duration // TTL of the cached GET /gallery payload

	// Background jobs
	SeedFile         string        // optional YAML seed of images and links
	SeedInterval     time.Duration // 0 => seed at start and on POST /api/admin/reseed only
	OrphanGCInterval time.Duration // 0 disables the orphan collector
	OrphanGCGrace    time.Duration // objects younger than this are never collected

	// Access
	CORSOrigins      []string // origins allowed to call the API from a browser
	AllowedHosts     []string // optional, restrict access to specific Host headers
	AllowedCIDRS     []string // optional, restrict ops endpoints (readyz, metrics)
	TrustProxy       bool     // true => trust X-Forwarded-For headers
	AuthBurst        int      // login attempts allowed in a burst per IP
	AuthRefillPerMin int      // login attempts refilled per minute per IP
}

func Load() *Config {
	cfg := &Config{
		ListenPort:      getenv("FOLIO_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("FOLIO_SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getenv("FOLIO_LOG_LEVEL", "info"),
		PrettyLog: mustBool("FOLIO_PRETTY_LOG", false),

		AdminPassword:  requireEnv("FOLIO_ADMIN_PASSWORD"),
		MaxUploadBytes: int64(getenvInt("FOLIO_MAX_UPLOAD_BYTES", 10<<20)),

		PgHost:     getenv("FOLIO_PG_HOST", "localhost"),
		PgPort:     getenvInt("FOLIO_PG_PORT", 5432),
		PgUser:     getenv("FOLIO_PG_USER", "folio"),
		PgPassword: getenv("FOLIO_PG_PASSWORD", ""),
		PgDBName:   getenv("FOLIO_PG_DBNAME", "folio"),
		PgSSLMode:  getenv("FOLIO_PG_SSLMODE", "disable"),

		S3Endpoint:        getenv("FOLIO_S3_ENDPOINT", ""),
		S3Region:          getenv("FOLIO_S3_REGION", "auto"),
		S3Bucket:          requireEnv("FOLIO_S3_BUCKET"),
		S3AccessKeyID:     getenv("FOLIO_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getenv("FOLIO_S3_SECRET_ACCESS_KEY", ""),
		S3PublicURL:       strings.TrimRight(requireEnv("FOLIO_S3_PUBLIC_URL"), "/"),

		RedisAddr:           getenv("FOLIO_REDIS_ADDR", ""),
		RedisUser:           getenv("FOLIO_REDIS_USERNAME", ""),
		RedisPassword:       getenv("FOLIO_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("FOLIO_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		GalleryCacheTTL:     mustDuration("FOLIO_GALLERY_CACHE_TTL", 5*time.Minute),

		SeedFile:         getenv("FOLIO_SEED_FILE", ""),
		SeedInterval:     mustDuration("FOLIO_SEED_INTERVAL", 0),
		OrphanGCInterval: mustDuration("FOLIO_ORPHAN_GC_INTERVAL", 24*time.Hour),
		OrphanGCGrace:    mustDuration("FOLIO_ORPHAN_GC_GRACE", 24*time.Hour),

		CORSOrigins:      splitAndTrim(getenv("FOLIO_CORS_ORIGINS", "*")),
		AllowedHosts:     splitAndTrim(getenv("FOLIO_ALLOWED_HOSTS", "")),
		AllowedCIDRS:     splitAndTrim(getenv("FOLIO_ALLOWED_CIDRS", "")),
		TrustProxy:       mustBool("FOLIO_TRUST_PROXY", false),
		AuthBurst:        getenvInt("FOLIO_AUTH_BURST", 5),
		AuthRefillPerMin: getenvInt("FOLIO_AUTH_REFILL_PER_MIN", 5),
	}

	if cfg.MaxUploadBytes <= 0 {
		panic(fmt.Sprintf("❌ FATAL: FOLIO_MAX_UPLOAD_BYTES must be > 0, got %d", cfg.MaxUploadBytes))
	}

	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	const mask = "***REDACTED***"
	c.AdminPassword = mask
	if c.PgPassword != "" {
		c.PgPassword = mask
	}
	if c.RedisPassword != "" {
		c.RedisPassword = mask
	}
	if c.S3SecretAccessKey != "" {
		c.S3SecretAccessKey = mask
	}
	return c
}

// PostgresDSN builds a lib/pq key=value connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PgHost, c.PgPort, c.PgUser, c.PgPassword, c.PgDBName, c.PgSSLMode)
}

// ClientConfig configures folioctl.
type ClientConfig struct {
	APIURL      string
	HTTPTimeout time.Duration
	LogLevel    string

	// Optional Redis-backed cache shared between machines. Empty => file cache.
	CacheRedisAddr     string
	CacheRedisPassword string
	CacheRedisDB       int
	// File cache location, empty => <user cache dir>/folio/cache.json.
	// "memory" keeps nothing between runs.
	CacheFile string
}

func LoadClient() *ClientConfig {
	return &ClientConfig{
		APIURL:             strings.TrimRight(getenv("FOLIO_API_URL", "http://localhost:8080/api"), "/"),
		HTTPTimeout:        mustDuration("FOLIO_HTTP_TIMEOUT", 15*time.Second),
		LogLevel:           getenv("FOLIO_LOG_LEVEL", "warn"),
		CacheRedisAddr:     getenv("FOLIO_CACHE_REDIS_ADDR", ""),
		CacheRedisPassword: getenv("FOLIO_CACHE_REDIS_PASSWORD", ""),
		CacheRedisDB:       getenvInt("FOLIO_CACHE_REDIS_DB", 0),
		CacheFile:          getenv("FOLIO_CACHE_FILE", ""),
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
