// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package config loads mydex settings from an optional YAML file and
// command-line flags. Flags override the file; the file overrides defaults.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/mydex/mydex/internal/auth"
	"github.com/mydex/mydex/internal/logging"
	"github.com/mydex/mydex/internal/xdg"
)

// DatabaseURLEnv is read when no database URL is configured.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the full mydex configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Compute  ComputeConfig  `koanf:"compute"`
	Auth     AuthConfig     `koanf:"auth"`
}

// DatabaseConfig locates the credential store.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	RetryBase       time.Duration `koanf:"retry_base"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig controls the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// ComputeConfig sizes the password verification pool.
type ComputeConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// AuthConfig tunes password hashing and login behavior.
type AuthConfig struct {
	EqualizeTiming bool          `koanf:"equalize_timing"`
	Argon2         Argon2Config `koanf:"argon2"`
}

// Argon2Config holds the cost used for newly created hashes.
type Argon2Config struct {
	Memory  uint32 `koanf:"memory"`
	Time    uint32 `koanf:"time"`
	Threads uint8  `koanf:"threads"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := auth.DefaultArgon2Params()
	return Config{
		Database: DatabaseConfig{
			ConnectAttempts: 5,
			RetryBase:       250 * time.Millisecond,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Compute: ComputeConfig{
			QueueSize: 64,
		},
		Auth: AuthConfig{
			Argon2: Argon2Config{
				Memory:  params.Memory,
				Time:    params.Time,
				Threads: params.Threads,
			},
		},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":     "database.url",
	"db-max-conns":     "database.max_conns",
	"db-connect-tries": "database.connect_attempts",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "metrics.addr",
	"workers":          "compute.workers",
	"queue-size":       "compute.queue_size",
	"equalize-timing":  "auth.equalize_timing",
	"argon2-memory":    "auth.argon2.memory",
	"argon2-time":      "auth.argon2.time",
	"argon2-threads":   "auth.argon2.threads",
}

// RegisterFlags adds the configuration flags to fs with defaults from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "config file path (YAML); defaults to $XDG_CONFIG_HOME/mydex/config.yaml when present")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.Int32("db-max-conns", d.Database.MaxConns, "maximum pool connections (0 = pgx default)")
	fs.Uint64("db-connect-tries", d.Database.ConnectAttempts, "connection attempts before giving up")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.Int("workers", d.Compute.Workers, "password verification workers (0 = GOMAXPROCS)")
	fs.Int("queue-size", d.Compute.QueueSize, "pending verifications before callers block")
	fs.Bool("equalize-timing", d.Auth.EqualizeTiming, "verify a dummy hash for unknown accounts")
	fs.Uint32("argon2-memory", d.Auth.Argon2.Memory, "argon2id memory cost in KiB for new hashes")
	fs.Uint32("argon2-time", d.Auth.Argon2.Time, "argon2id iterations for new hashes")
	fs.Uint8("argon2-threads", d.Auth.Argon2.Threads, "argon2id parallelism for new hashes")
}

// Load builds the configuration from the file named by the --config flag
// (if any) and then from fs. Only flags registered by RegisterFlags are read.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := configPath(fs)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode configuration").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configPath returns --config when given, otherwise the XDG config file
// if one exists.
func configPath(fs *pflag.FlagSet) (string, error) {
	if path, err := fs.GetString("config"); err == nil && path != "" {
		return path, nil
	}
	path, err := xdg.ExistingConfigFile()
	if err != nil {
		return "", oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	return path, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.Log.Format).
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("log_level", c.Log.Level).Wrap(err)
	}
	if c.Compute.Workers < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("workers cannot be negative, got %d", c.Compute.Workers)
	}
	if c.Compute.QueueSize < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("queue size cannot be negative, got %d", c.Compute.QueueSize)
	}
	if c.Database.MaxConns < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("max connections cannot be negative, got %d", c.Database.MaxConns)
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("section", "auth.argon2").Wrap(err)
	}
	return nil
}

// RequireDatabase returns an error unless a database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database URL is required: set --database-url, database.url or %s", DatabaseURLEnv)
	}
	return nil
}

// Argon2Params returns the hashing parameters for new hashes.
func (c *Config) Argon2Params() auth.Argon2Params {
	params := auth.DefaultArgon2Params()
	params.Memory = c.Auth.Argon2.Memory
	params.Time = c.Auth.Argon2.Time
	params.Threads = c.Auth.Argon2.Threads
	return params
}

// LogLevel returns the parsed log level; Validate has already checked it.
func (c *Config) LogLevel() slog.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogValue implements slog.LogValuer. The database URL is omitted since it
// usually embeds a password.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("database_configured", c.Database.URL != ""),
		slog.String("log_format", c.Log.Format),
		slog.String("log_level", c.Log.Level),
		slog.String("metrics_addr", c.Metrics.Addr),
		slog.Int("workers", c.Compute.Workers),
		slog.Int("queue_size", c.Compute.QueueSize),
		slog.Bool("equalize_timing", c.Auth.EqualizeTiming),
	)
}
