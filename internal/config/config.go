package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Manifest binds a platform id to its YAML library manifest.
type Manifest struct {
	Platform string
	Path     string
}

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// State
	DataDir      string // directory of the JSON state files (default: ~/.unified_launcher)
	StateBackend string // "file" | "sqlite" | "redis"
	SQLitePath   string // default: <DataDir>/gamedeck.db

	// Adapters
	Manifests         []Manifest    // ex: "steam=/etc/gamedeck/steam.yaml,gog=/etc/gamedeck/gog.yaml"
	AuthTimeout       time.Duration // interactive authentication deadline (default: 300s)
	CallbackPortStart int           // first loopback port tried for the OAuth callback
	CallbackPortEnd   int           // exclusive upper bound of the callback ports

	// Scan and refresh cycles
	ScanInterval          time.Duration // interval between scan cycles (default: 1h)
	ScanTimeout           time.Duration // per adapter call (default: 60s)
	MaxConcurrentAdapters int           // adapters scanned at once (default: 4)
	RetryMaxTries         uint          // attempts per adapter call (default: 3)
	RetryInitialInterval  time.Duration // first backoff wait (default: 500ms)
	RetryMaxInterval      time.Duration // backoff cap (default: 10s)
	RefreshInterval       time.Duration // interval between token refresh passes (default: 5m)
	RefreshWindow         time.Duration // refresh sessions expiring within this window (default: 10m)

	// Redis (StateBackend == "redis")
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// Control API
	AllowedCIDRS       []string // optional, restrict access to specific IP (e.g. "127.0.0.1/32, ::1")
	TrustProxy         bool     // true => trust X-Forwarded-For headers
	RateLimitRPS       float64  // requests per second per client IP, 0 disables
	RateLimitBurst     int      // bucket size per client IP
	CORSAllowedOrigins []string // empty => CORS disabled
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when one exists. It panics on invalid
// values.
func Load() *Config {
	loadDotEnv(".env")

	dataDir := getenv("GAMEDECK_DATA_DIR", defaultDataDir())

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GAMEDECK_LISTEN_PORT", "127.0.0.1:8080"),
		ShutdownTimeout: mustDuration("GAMEDECK_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("GAMEDECK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GAMEDECK_PRETTY_LOG", true),

		// State
		DataDir:      dataDir,
		StateBackend: strings.ToLower(getenv("GAMEDECK_STATE_BACKEND", BackendFile)),
		SQLitePath:   getenv("GAMEDECK_SQLITE_PATH", filepath.Join(dataDir, "gamedeck.db")),

		// Adapters
		Manifests:         parseManifests(getenv("GAMEDECK_MANIFESTS", "")),
		AuthTimeout:       mustDuration("GAMEDECK_AUTH_TIMEOUT", 300*time.Second),
		CallbackPortStart: getenvInt("GAMEDECK_CALLBACK_PORT_START", 8919),
		CallbackPortEnd:   getenvInt("GAMEDECK_CALLBACK_PORT_END", 9000),

		// Cycles
		ScanInterval:          mustDuration("GAMEDECK_SCAN_INTERVAL", time.Hour),
		ScanTimeout:           mustDuration("GAMEDECK_SCAN_TIMEOUT", 60*time.Second),
		MaxConcurrentAdapters: getenvInt("GAMEDECK_MAX_CONCURRENT_ADAPTERS", 4),
		RetryMaxTries:         uint(getenvInt("GAMEDECK_RETRY_MAX_TRIES", 3)),
		RetryInitialInterval:  mustDuration("GAMEDECK_RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
		RetryMaxInterval:      mustDuration("GAMEDECK_RETRY_MAX_INTERVAL", 10*time.Second),
		RefreshInterval:       mustDuration("GAMEDECK_REFRESH_INTERVAL", 5*time.Minute),
		RefreshWindow:         mustDuration("GAMEDECK_REFRESH_WINDOW", 10*time.Minute),

		// Redis settings
		RedisAddr:           getenv("GAMEDECK_REDIS_ADDR", ""),
		RedisUser:           getenv("GAMEDECK_REDIS_USERNAME", ""),
		RedisPassword:       getenv("GAMEDECK_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("GAMEDECK_REDIS_DB", 0),
		RedisDT:             mustDuration("GAMEDECK_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("GAMEDECK_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("GAMEDECK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("GAMEDECK_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("GAMEDECK_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("GAMEDECK_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("GAMEDECK_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("GAMEDECK_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("GAMEDECK_REDIS_WARN_THRESHOLD", 3),

		// Control API
		AllowedCIDRS:       splitAndTrim(getenv("GAMEDECK_ALLOWED_CIDRS", "")),
		TrustProxy:         mustBool("GAMEDECK_TRUST_PROXY", false),
		RateLimitRPS:       getenvFloat("GAMEDECK_RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getenvInt("GAMEDECK_RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: splitAndTrim(getenv("GAMEDECK_CORS_ALLOWED_ORIGINS", "")),
	}

	if cfg.StateBackend == BackendRedis {
		cfg.RedisAddr = requireEnv("GAMEDECK_REDIS_ADDR")
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	switch c.StateBackend {
	case BackendFile, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}
	if c.StateBackend == BackendRedis && c.RedisAddr == "" {
		return errors.New("redis address is required by the redis backend")
	}
	if c.CallbackPortStart <= 0 || c.CallbackPortEnd <= c.CallbackPortStart || c.CallbackPortEnd > 65536 {
		return fmt.Errorf("invalid callback port range [%d, %d)", c.CallbackPortStart, c.CallbackPortEnd)
	}
	if c.ScanInterval <= 0 || c.RefreshInterval <= 0 {
		return errors.New("scan and refresh intervals must be > 0")
	}
	seen := make(map[string]bool, len(c.Manifests))
	for _, m := range c.Manifests {
		if seen[m.Platform] {
			return fmt.Errorf("platform %q has more than one manifest", m.Platform)
		}
		seen[m.Platform] = true
	}
	return nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[WARN] failed to load %s: %v\n", path, err)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".unified_launcher"
	}
	return filepath.Join(home, ".unified_launcher")
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

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

// parseManifests reads "platform=path" pairs. Malformed pairs panic.
func parseManifests(raw string) []Manifest {
	pairs := splitAndTrim(raw)
	if len(pairs) == 0 {
		return nil
	}
	out := make([]Manifest, 0, len(pairs))
	for _, pair := range pairs {
		platform, path, ok := strings.Cut(pair, "=")
		platform = strings.ToLower(strings.TrimSpace(platform))
		path = strings.TrimSpace(path)
		if !ok || platform == "" || path == "" {
			panic(fmt.Sprintf("❌ FATAL: Invalid manifest entry %q, expected platform=path", pair))
		}
		out = append(out, Manifest{Platform: platform, Path: path})
	}
	return out
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
