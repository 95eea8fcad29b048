package config

import "time"

// StorageConfig selects and configures the storage area.
type StorageConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	Key           string        `mapstructure:"key" yaml:"key"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	SQLitePath    string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannel  string        `mapstructure:"redis_channel" yaml:"redis_channel"`
	WatchInterval time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
	QuotaBytes    int           `mapstructure:"quota_bytes" yaml:"quota_bytes"`
}

// Config holds roomchat configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	Latency        time.Duration `mapstructure:"latency" yaml:"latency"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RoomIDDigits   int           `mapstructure:"room_id_digits" yaml:"room_id_digits"`
	CreateAttempts int           `mapstructure:"create_attempts" yaml:"create_attempts"`

	MaxMessageBytes   int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int   `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		Latency:        300 * time.Millisecond,
		PollInterval:   time.Second,
		RoomIDDigits:   6,
		CreateAttempts: 10,

		MaxMessageBytes:   1 << 16,
		MessagesPerMinute: 60,

		Storage: StorageConfig{
			Backend:       "file",
			Key:           "roomchat.rooms",
			Dir:           "roomchat-data",
			SQLitePath:    "roomchat.db",
			RedisAddr:     "localhost:6379",
			RedisChannel:  "roomchat:changes",
			WatchInterval: 250 * time.Millisecond,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Latency != 0 {
		c.Latency = other.Latency
	}
	if other.PollInterval != 0 {
		c.PollInterval = other.PollInterval
	}
	if other.RoomIDDigits != 0 {
		c.RoomIDDigits = other.RoomIDDigits
	}
	if other.CreateAttempts != 0 {
		c.CreateAttempts = other.CreateAttempts
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	c.Storage.updateFrom(other.Storage)
}

func (s *StorageConfig) updateFrom(other StorageConfig) {
	if other.Backend != "" {
		s.Backend = other.Backend
	}
	if other.Key != "" {
		s.Key = other.Key
	}
	if other.Dir != "" {
		s.Dir = other.Dir
	}
	if other.SQLitePath != "" {
		s.SQLitePath = other.SQLitePath
	}
	if other.RedisAddr != "" {
		s.RedisAddr = other.RedisAddr
	}
	if other.RedisDB != 0 {
		s.RedisDB = other.RedisDB
	}
	if other.RedisChannel != "" {
		s.RedisChannel = other.RedisChannel
	}
	if other.WatchInterval != 0 {
		s.WatchInterval = other.WatchInterval
	}
	if other.QuotaBytes != 0 {
		s.QuotaBytes = other.QuotaBytes
	}
}
