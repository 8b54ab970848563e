package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Player  PlayerConfig  `mapstructure:"player"`
	Resume  ResumeConfig  `mapstructure:"resume"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Host API limits
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	SessionIdle    time.Duration `mapstructure:"session_idle"` // idle sessions are reaped after this
	RateLimit      float64       `mapstructure:"rate_limit"`   // requests per second per client, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`

	HTTP3 HTTP3Config `mapstructure:"http3"`
}

type HTTP3Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Port        int           `mapstructure:"port"`
	TLSCertFile string        `mapstructure:"tls_cert_file"`
	TLSKeyFile  string        `mapstructure:"tls_key_file"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type PlayerConfig struct {
	Buffer     BufferConfig  `mapstructure:"buffer"`
	Decoder    DecoderConfig `mapstructure:"decoder"`
	PumpBudget int           `mapstructure:"pump_budget"` // packets demuxed per Pump call
}

type BufferConfig struct {
	VideoCapacity int `mapstructure:"video_capacity"`
	AudioCapacity int `mapstructure:"audio_capacity"`
}

type DecoderConfig struct {
	HardwareAcceleration bool   `mapstructure:"hardware_acceleration"`
	ThreadCount          uint32 `mapstructure:"thread_count"` // 0 = automatic
}

type ResumeConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// Load reads configPath, applies PLAYCORE_ environment overrides and
// validates the result. An empty path loads the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("PLAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 512<<20) // 512MB
	v.SetDefault("server.max_sessions", 64)
	v.SetDefault("server.session_idle", "10m")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.http3.enabled", false)
	v.SetDefault("server.http3.port", 8443)
	v.SetDefault("server.http3.idle_timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Player defaults
	v.SetDefault("player.buffer.video_capacity", 30)
	v.SetDefault("player.buffer.audio_capacity", 50)
	v.SetDefault("player.decoder.hardware_acceleration", true)
	v.SetDefault("player.decoder.thread_count", 0)
	v.SetDefault("player.pump_budget", 32)

	// Resume defaults
	v.SetDefault("resume.enabled", false)
	v.SetDefault("resume.ttl", "720h") // 30 days
	v.SetDefault("resume.key_prefix", "playcore:resume:")
}
