package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/cookie"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "statesync.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STATESYNC_"

	// DefaultBackend is the storage backend used when none is configured.
	DefaultBackend = "memory"

	// DefaultSQLitePath is the database file for the sqlite backend.
	DefaultSQLitePath = "statesync.db"

	// DefaultRedisAddr is the server address for the redis backend.
	DefaultRedisAddr = "localhost:6379"
)

// Backends lists the supported storage backends.
var Backends = []string{"memory", "sqlite", "redis", "s3"}

// Config represents the complete statesync.json configuration.
type Config struct {
	// Storage selects and configures the key-value backend.
	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// Cookie holds the attributes written by cookie commands.
	Cookie CookieConfig `json:"cookie" envPrefix:"COOKIE_"`

	// Log configures the slog handler.
	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// Metrics configures the Prometheus collectors.
	Metrics MetricsConfig `json:"metrics" envPrefix:"METRICS_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is one of memory, sqlite, redis or s3.
	Backend string `json:"backend,omitempty" env:"BACKEND"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `json:"sqlitePath,omitempty" env:"SQLITE_PATH"`

	// RedisAddr is the host:port of the redis backend.
	RedisAddr string `json:"redisAddr,omitempty" env:"REDIS_ADDR"`

	// RedisPrefix overrides the redis key prefix.
	RedisPrefix string `json:"redisPrefix,omitempty" env:"REDIS_PREFIX"`

	// RedisTTL expires redis keys after their last write.
	RedisTTL Duration `json:"redisTTL,omitempty" env:"REDIS_TTL"`

	// S3Bucket is the bucket of the s3 backend.
	S3Bucket string `json:"s3Bucket,omitempty" env:"S3_BUCKET"`

	// S3Prefix overrides the object key prefix.
	S3Prefix string `json:"s3Prefix,omitempty" env:"S3_PREFIX"`

	// S3Endpoint selects an S3-compatible server.
	S3Endpoint string `json:"s3Endpoint,omitempty" env:"S3_ENDPOINT"`
}

// CookieConfig holds default cookie attributes.
type CookieConfig struct {
	Path     string   `json:"path,omitempty" env:"PATH"`
	Domain   string   `json:"domain,omitempty" env:"DOMAIN"`
	Secure   bool     `json:"secure,omitempty" env:"SECURE"`
	HTTPOnly bool     `json:"httpOnly,omitempty" env:"HTTP_ONLY"`
	SameSite string   `json:"sameSite,omitempty" env:"SAME_SITE"`
	MaxAge   Duration `json:"maxAge,omitempty" env:"MAX_AGE"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"FORMAT"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" env:"NAMESPACE"`
}

// Duration is a time.Duration written as a string ("30s") in JSON and in
// the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    DefaultBackend,
			SQLitePath: DefaultSQLitePath,
			RedisAddr:  DefaultRedisAddr,
		},
		Cookie: CookieConfig{
			Path:     "/",
			SameSite: cookie.SameSiteLax,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "statesync",
		},
	}
}

// Load reads statesync.json from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	cfg, err := LoadFile(configPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("H080").
				WithDetail("No " + ConfigFileName + " found at " + path).
				Wrap(err)
		}
		return nil, errors.New("H080").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("H080").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Resolve loads the configuration the CLI runs with: statesync.json from
// dir (defaults when absent), then the optional .env file, then STATESYNC_*
// environment overrides.
func Resolve(dir, envFile string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.New("H081").
				WithDetail("Failed to load " + envFile).
				Wrap(err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from STATESYNC_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.New("H081").Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("H080").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("H080").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = DefaultRedisAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "statesync"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Storage.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return errors.New("H041").
			WithDetail(fmt.Sprintf("Backend %q is not supported", c.Storage.Backend)).
			WithSuggestion("Use one of: " + strings.Join(Backends, ", "))
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		return errors.New("H080").WithDetail("storage.s3Bucket is required for the s3 backend")
	}
	switch c.Cookie.SameSite {
	case "", cookie.SameSiteStrict, cookie.SameSiteLax, cookie.SameSiteNone:
	default:
		return errors.New("H080").
			WithDetail(fmt.Sprintf("cookie.sameSite %q is not one of Strict, Lax, None", c.Cookie.SameSite))
	}
	if c.Cookie.MaxAge < 0 || c.Storage.RedisTTL < 0 {
		return errors.New("H080").WithDetail("durations must not be negative")
	}
	if _, err := c.level(); err != nil {
		return errors.New("H080").Wrap(err)
	}
	return nil
}

// CookieOptions returns the configured cookie attributes.
func (c *Config) CookieOptions() cookie.Options {
	return cookie.Options{
		Path:     c.Cookie.Path,
		Domain:   c.Cookie.Domain,
		Secure:   c.Cookie.Secure,
		HTTPOnly: c.Cookie.HTTPOnly,
		SameSite: c.Cookie.SameSite,
		MaxAge:   time.Duration(c.Cookie.MaxAge),
	}
}

// Logger builds a slog.Logger writing to w with the configured level and
// format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}
