package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config — настройки профиля. Читаются из config.yaml в каталоге профиля,
// поверх накладываются переменные окружения.
type Config struct {
	Mastodon MastodonConfig `yaml:"mastodon"`
	Twitter  TwitterConfig  `yaml:"twitter"`

	// MaxPairs — сколько последних пар зеркалирования хранить.
	// Всё, что старше, считается "не найдено" и не зеркалируется повторно.
	MaxPairs int `yaml:"max_pairs" env:"TWOOT_MAX_PAIRS"`

	// HTTPTimeoutSec — таймаут каждого сетевого вызова.
	HTTPTimeoutSec int `yaml:"http_timeout_sec" env:"TWOOT_HTTP_TIMEOUT"`

	// DatabaseURL — если задан, состояние хранится в PostgreSQL,
	// иначе в SQLite-файле профиля.
	DatabaseURL string `yaml:"database_url,omitempty" env:"DATABASE_URL"`
}

type MastodonConfig struct {
	Instance     string `yaml:"instance" env:"TWOOT_MASTODON_INSTANCE"`
	ClientID     string `yaml:"client_id" env:"TWOOT_MASTODON_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"TWOOT_MASTODON_CLIENT_SECRET"`
	AccessToken  string `yaml:"access_token" env:"TWOOT_MASTODON_ACCESS_TOKEN"`
}

type TwitterConfig struct {
	ConsumerKey       string `yaml:"consumer_key" env:"TWOOT_TWITTER_CONSUMER_KEY"`
	ConsumerSecret    string `yaml:"consumer_secret" env:"TWOOT_TWITTER_CONSUMER_SECRET"`
	AccessToken       string `yaml:"access_token" env:"TWOOT_TWITTER_ACCESS_TOKEN"`
	AccessTokenSecret string `yaml:"access_token_secret" env:"TWOOT_TWITTER_ACCESS_TOKEN_SECRET"`
}

const (
	defaultMaxPairs       = 100
	defaultHTTPTimeoutSec = 30
)

// profileDir возвращает каталог состояния профиля (~/.twoot-bridge/<имя>).
func profileDir(profile string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".twoot-bridge", profile), nil
}

func configPath(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

// loadConfig читает config.yaml и накладывает env-переменные.
func loadConfig(dir string) (Config, error) {
	cfg := Config{
		MaxPairs:       defaultMaxPairs,
		HTTPTimeoutSec: defaultHTTPTimeoutSec,
	}

	data, err := os.ReadFile(configPath(dir))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env override: %w", err)
	}

	if cfg.MaxPairs <= 0 {
		cfg.MaxPairs = defaultMaxPairs
	}
	if cfg.HTTPTimeoutSec <= 0 {
		cfg.HTTPTimeoutSec = defaultHTTPTimeoutSec
	}
	return cfg, nil
}

// saveConfig пишет конфиг с правами 0600 (в нём токены).
func saveConfig(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath(dir), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func configExists(dir string) bool {
	_, err := os.Stat(configPath(dir))
	return err == nil
}
