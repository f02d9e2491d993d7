// Package config 从 config.yml 和环境变量加载配置
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr         string        `mapstructure:"HTTP_ADDR"`
	MySQLDSN         string        `mapstructure:"MYSQL_DSN"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	KafkaBrokers     string        `mapstructure:"KAFKA_BROKERS"` // 逗号分隔，为空时事件只写日志
	KafkaTopic       string        `mapstructure:"KAFKA_TOPIC"`
	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	IdentitySecret   string        `mapstructure:"IDENTITY_SECRET"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	OutboxInterval   time.Duration `mapstructure:"OUTBOX_INTERVAL"`
}

// Load 读取 config.yml（当前目录或上级目录），环境变量优先
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// 配置文件可以不存在，全部走环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("MYSQL_DSN", "")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "community-events")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("IDENTITY_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OUTBOX_INTERVAL", "1s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if c.MySQLDSN == "" {
		return errors.New("MYSQL_DSN is required")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.IdentitySecret == "" {
		return errors.New("IDENTITY_SECRET is required")
	}
	if c.OutboxInterval <= 0 {
		return errors.New("OUTBOX_INTERVAL must be positive")
	}
	return nil
}

// Brokers 拆分 KAFKA_BROKERS
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
