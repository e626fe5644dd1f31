package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Storage   StorageConfig   `mapstructure:"storage"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// UpstreamConfig 问答上游。provider 为 http 时直连自建服务，
// 为 openai 时走 OpenAI 兼容接口
type UpstreamConfig struct {
	Provider string        `mapstructure:"provider"`
	Endpoint string        `mapstructure:"endpoint"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type GraphConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	HistoryWindow int           `mapstructure:"history_window"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
	Key     string `mapstructure:"key"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHAT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，没配 key 时回落到环境变量
	if cfg.Upstream.APIKey == "" {
		if apiKey := os.Getenv("UPSTREAM_API_KEY"); apiKey != "" {
			cfg.Upstream.APIKey = apiKey
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Stream.Interval <= 0 {
		c.Stream.Interval = 30 * time.Millisecond
	}
	if c.Stream.HistoryWindow <= 0 {
		c.Stream.HistoryWindow = 12
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "wm_kg_sessions"
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Graph.Timeout <= 0 {
		c.Graph.Timeout = 10 * time.Second
	}
}

func Get() *Config {
	return cfg
}
