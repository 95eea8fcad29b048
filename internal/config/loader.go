package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "ROOMCHAT"
	envConfigDefaultPath = "ROOMCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so env vars are honoured even when the
// file omits them.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("latency", cfg.Latency)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("room_id_digits", cfg.RoomIDDigits)
	v.SetDefault("create_attempts", cfg.CreateAttempts)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("messages_per_minute", cfg.MessagesPerMinute)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_channel", cfg.Storage.RedisChannel)
	v.SetDefault("storage.watch_interval", cfg.Storage.WatchInterval)
	v.SetDefault("storage.quota_bytes", cfg.Storage.QuotaBytes)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// writeDefaultConfig stores cfg as yaml. Durations are written in their
// string form so the file stays editable.
func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(toFile(cfg))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type fileStorage struct {
	Backend       string `yaml:"backend"`
	Key           string `yaml:"key"`
	Dir           string `yaml:"dir"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisChannel  string `yaml:"redis_channel"`
	WatchInterval string `yaml:"watch_interval"`
	QuotaBytes    int    `yaml:"quota_bytes"`
}

type fileConfig struct {
	Addr              string      `yaml:"addr"`
	ReadHeaderTimeout string      `yaml:"read_header_timeout"`
	ShutdownTimeout   string      `yaml:"shutdown_timeout"`
	LogLevel          string      `yaml:"log_level"`
	Latency           string      `yaml:"latency"`
	PollInterval      string      `yaml:"poll_interval"`
	RoomIDDigits      int         `yaml:"room_id_digits"`
	CreateAttempts    int         `yaml:"create_attempts"`
	MaxMessageBytes   int64       `yaml:"max_message_bytes"`
	MessagesPerMinute int         `yaml:"messages_per_minute"`
	Storage           fileStorage `yaml:"storage"`
}

func toFile(cfg Config) fileConfig {
	return fileConfig{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.String(),
		ShutdownTimeout:   cfg.ShutdownTimeout.String(),
		LogLevel:          cfg.LogLevel,
		Latency:           cfg.Latency.String(),
		PollInterval:      cfg.PollInterval.String(),
		RoomIDDigits:      cfg.RoomIDDigits,
		CreateAttempts:    cfg.CreateAttempts,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerMinute: cfg.MessagesPerMinute,
		Storage: fileStorage{
			Backend:       cfg.Storage.Backend,
			Key:           cfg.Storage.Key,
			Dir:           cfg.Storage.Dir,
			SQLitePath:    cfg.Storage.SQLitePath,
			RedisAddr:     cfg.Storage.RedisAddr,
			RedisDB:       cfg.Storage.RedisDB,
			RedisChannel:  cfg.Storage.RedisChannel,
			WatchInterval: cfg.Storage.WatchInterval.String(),
			QuotaBytes:    cfg.Storage.QuotaBytes,
		},
	}
}
