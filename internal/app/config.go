package app

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultSecretEnv names the environment variable holding the storage secret
// when the config file does not override it.
const defaultSecretEnv = "GUILDVAULT_SECRET"

// Settings is the full runtime configuration, loaded once at startup.
type Settings struct {
	Storage   StorageConfig   `yaml:"storage"`
	Web       WebConfig       `yaml:"web"`
	Security  SecurityConfig  `yaml:"security"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	XP        XPConfig        `yaml:"xp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig locates the encrypted state file, the export target and the
// env var carrying the secret. The secret itself never lives in the file.
type StorageConfig struct {
	Path       string `yaml:"path"`
	ExportPath string `yaml:"export_path"`
	SecretEnv  string `yaml:"secret_env"`
}

// Secret resolves the storage secret from the configured environment
// variable.
func (c StorageConfig) Secret() (string, error) {
	secret := os.Getenv(c.SecretEnv)
	if secret == "" {
		return "", fmt.Errorf("storage secret env %s is empty", c.SecretEnv)
	}
	return secret, nil
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr is the host:port listen address for the admin API.
func (c WebConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// SecurityConfig tunes the per-sender rate limiter. Durations are seconds.
type SecurityConfig struct {
	RateLimitIntervalSeconds float64 `yaml:"rate_limit_interval"`
	RateLimitBurst           int     `yaml:"rate_limit_burst"`
}

func (c SecurityConfig) Interval() time.Duration {
	return time.Duration(c.RateLimitIntervalSeconds * float64(time.Second))
}

// AnalyticsConfig tunes the metrics tracker. Durations are seconds.
type AnalyticsConfig struct {
	FlushIntervalSeconds float64 `yaml:"flush_interval"`
}

func (c AnalyticsConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds * float64(time.Second))
}

type XPConfig struct {
	LeaderboardSize int `yaml:"leaderboard_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// defaults returns the settings applied underneath the config file.
func defaults() Settings {
	return Settings{
		Storage: StorageConfig{
			Path:       "data/storage.enc",
			ExportPath: "data/storage.sqlite",
			SecretEnv:  defaultSecretEnv,
		},
		Web:       WebConfig{Host: "127.0.0.1", Port: 8090},
		Security:  SecurityConfig{RateLimitIntervalSeconds: 10, RateLimitBurst: 5},
		Analytics: AnalyticsConfig{FlushIntervalSeconds: 60},
		XP:        XPConfig{LeaderboardSize: 10},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// LoadSettings reads the YAML config at path over the defaults. A .env file
// in the working directory is loaded first, best-effort, so the secret env
// var can live there during development.
func LoadSettings(path string) (Settings, error) {
	_ = godotenv.Load()

	settings := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if settings.Storage.Path == "" {
		return Settings{}, fmt.Errorf("config %s: storage.path is required", path)
	}
	if settings.Storage.SecretEnv == "" {
		settings.Storage.SecretEnv = defaultSecretEnv
	}
	if settings.Security.RateLimitBurst <= 0 {
		settings.Security.RateLimitBurst = 5
	}
	if settings.XP.LeaderboardSize <= 0 {
		settings.XP.LeaderboardSize = 10
	}
	return settings, nil
}
