package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chaos-io/rembg-server/pipeline"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Upload UploadConfig `mapstructure:"upload"`
	Rembg  RembgConfig  `mapstructure:"rembg"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout 整条 pipeline 的上限，流水线自身不设超时
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type UploadConfig struct {
	MaxSize         int64    `mapstructure:"max_size"`
	MinDimension    int      `mapstructure:"min_dimension"`
	MaxDimension    int      `mapstructure:"max_dimension"`
	ProcessingBound int      `mapstructure:"processing_bound"`
	AllowedFormats  []string `mapstructure:"allowed_formats"`
}

type RembgConfig struct {
	// BaseURL 为空时不接真实后端，退化为透传（只用于本地开发）
	BaseURL       string        `mapstructure:"base_url"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	ProbeSchedule string        `mapstructure:"probe_schedule"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load 从 YAML 文件加载配置，环境变量（REMBG_ 前缀）可覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("REMBG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败时退回默认值
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 2*time.Minute)

	v.SetDefault("upload.max_size", 16*1024*1024)
	v.SetDefault("upload.min_dimension", 100)
	v.SetDefault("upload.max_dimension", 4000)
	v.SetDefault("upload.processing_bound", 2048)
	v.SetDefault("upload.allowed_formats", []string{"png", "jpg", "jpeg", "webp", "bmp", "tiff"})

	v.SetDefault("rembg.base_url", "")
	v.SetDefault("rembg.max_concurrent", 2)
	v.SetDefault("rembg.queue_timeout", 30*time.Second)
	v.SetDefault("rembg.probe_schedule", "@every 1m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           ":8000",
			Mode:           "debug",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 2 * time.Minute,
		},
		Upload: UploadConfig{
			MaxSize:         16 * 1024 * 1024,
			MinDimension:    100,
			MaxDimension:    4000,
			ProcessingBound: 2048,
			AllowedFormats:  []string{"png", "jpg", "jpeg", "webp", "bmp", "tiff"},
		},
		Rembg: RembgConfig{
			BaseURL:       "",
			MaxConcurrent: 2,
			QueueTimeout:  30 * time.Second,
			ProbeSchedule: "@every 1m",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     24 * time.Hour,
		},
	}
}

// Limits 转成 pipeline 使用的阈值
func (c *UploadConfig) Limits() pipeline.Limits {
	return pipeline.Limits{
		MaxUploadBytes:  c.MaxSize,
		MinDimension:    c.MinDimension,
		MaxDimension:    c.MaxDimension,
		ProcessingBound: c.ProcessingBound,
		AllowedFormats:  c.AllowedFormats,
	}
}
