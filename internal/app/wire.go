package app

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"guildvault/internal/analytics"
	"guildvault/internal/crypto"
	"guildvault/internal/security"
	"guildvault/internal/storage"
)

// Wire bundles the configured dependency graph for the CLI commands.
type Wire struct {
	Settings  Settings
	Log       zerolog.Logger
	Store     *storage.Service
	Guard     *security.Guard
	Analytics *analytics.Tracker
}

// NewWire loads settings from cfgPath and constructs codec, store, limiter
// and tracker. The store is loaded (or bootstrapped) before returning, so a
// wrong secret fails here rather than at first use.
func NewWire(cfgPath string) (*Wire, error) {
	settings, err := LoadSettings(cfgPath)
	if err != nil {
		return nil, err
	}

	log := newLogger(settings.Logging.Level)

	secret, err := settings.Storage.Secret()
	if err != nil {
		return nil, err
	}

	store := storage.New(settings.Storage.Path, crypto.NewCodec(secret), log)
	if err := store.Load(); err != nil {
		return nil, err
	}

	return &Wire{
		Settings:  settings,
		Log:       log,
		Store:     store,
		Guard:     security.NewGuard(settings.Security.Interval(), settings.Security.RateLimitBurst),
		Analytics: analytics.New(log, settings.Analytics.FlushInterval()),
	}, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
