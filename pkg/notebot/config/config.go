// Package config defines the bot configuration, loaded from YAML with
// environment expansion and OS keyring token resolution.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/news"
	"github.com/jholhewres/notebot/pkg/notebot/scheduler"
)

// Storage backends for daily notes.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the root configuration. It is treated as immutable once the bot
// starts.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Notes   NotesConfig   `yaml:"notes"`
	News    NewsConfig    `yaml:"news"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig configures the chat connection and channel roles.
type DiscordConfig struct {
	// Token is the bot token. Prefer the OS keyring or NOTEBOT_DISCORD_TOKEN.
	Token string `yaml:"token"`

	// GuildID is the only server the bot acts in. Empty allows any server.
	GuildID string `yaml:"guild_id"`

	// NotesChannelIDs are captured into daily notes.
	NotesChannelIDs []string `yaml:"notes_channel_ids"`

	// EchoChannelIDs have every message repeated back.
	EchoChannelIDs []string `yaml:"echo_channel_ids"`

	// NewsChannelID receives scheduled broadcasts.
	NewsChannelID string `yaml:"news_channel_id"`

	// GreetingChannelIDs get GreetingReply for every message.
	GreetingChannelIDs []string `yaml:"greeting_channel_ids"`
	GreetingReply      string   `yaml:"greeting_reply"`

	// ReactionEmoji triggers the reaction acknowledgement.
	ReactionEmoji string `yaml:"reaction_emoji"`
}

// NotesConfig configures the daily note engine.
type NotesConfig struct {
	// Backend is memory, file or sqlite.
	Backend string `yaml:"backend"`

	// VaultPath is the root of the note tree for the file backend.
	VaultPath string `yaml:"vault_path"`

	// DatabasePath is the SQLite file for the sqlite backend.
	DatabasePath string `yaml:"database_path"`

	// Layout is structured or flat.
	Layout string `yaml:"layout"`

	// Numbered prefixes each entry with its sequence number.
	Numbered bool `yaml:"numbered"`

	Extension        string `yaml:"extension"`
	UTCOffset        string `yaml:"utc_offset"`
	MaxContentLength int    `yaml:"max_content_length"`
	MaxExportBytes   int64  `yaml:"max_export_bytes"`

	// AutoExport posts the day's document back to the channel once per
	// date after a captured message.
	AutoExport bool `yaml:"auto_export"`
}

// NewsConfig configures feed broadcasts and keyword replays.
type NewsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Feeds          []news.Feed   `yaml:"feeds"`
	Keywords       []string      `yaml:"keywords"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	MaxItems       int           `yaml:"max_items"`
	ReplayCooldown time.Duration `yaml:"replay_cooldown"`
}

// GatewayConfig configures the read-only HTTP API.
type GatewayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Address       string `yaml:"address"`
	AuthToken     string `yaml:"auth_token"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			GreetingReply: "Hello! 👋",
			ReactionEmoji: "👍",
		},
		Notes: NotesConfig{
			Backend:          BackendMemory,
			VaultPath:        "./vault",
			DatabasePath:     "./data/notebot.db",
			Layout:           string(dailynote.LayoutStructured),
			Extension:        ".md",
			UTCOffset:        "+09:00",
			MaxContentLength: dailynote.DefaultMaxContentLength,
			MaxExportBytes:   dailynote.DefaultMaxExportBytes,
			AutoExport:       true,
		},
		News: NewsConfig{
			Enabled:        true,
			Feeds:          news.DefaultFeeds(),
			Keywords:       []string{"news", "ニュース", "最新"},
			FetchTimeout:   news.DefaultFetchTimeout,
			MaxItems:       news.DefaultMaxItems,
			ReplayCooldown: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			Address:       "127.0.0.1:8085",
			RatePerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Offset parses UTCOffset.
func (n NotesConfig) Offset() (time.Duration, error) {
	return dailynote.ParseOffset(n.UTCOffset)
}

// NotebookConfig converts to the engine's document configuration.
func (n NotesConfig) NotebookConfig() dailynote.Config {
	cfg := dailynote.Config{
		Layout:           dailynote.Layout(n.Layout),
		Style:            dailynote.StylePlain,
		MaxContentLength: n.MaxContentLength,
	}
	if n.Numbered {
		cfg.Style = dailynote.StyleNumbered
	}
	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Notes.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Notes.VaultPath == "" {
			errs = append(errs, fmt.Errorf("notes.vault_path is required for the file backend"))
		}
	case BackendSQLite:
		if c.Notes.DatabasePath == "" {
			errs = append(errs, fmt.Errorf("notes.database_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("notes.backend %q is not one of memory, file, sqlite", c.Notes.Backend))
	}

	switch dailynote.Layout(c.Notes.Layout) {
	case dailynote.LayoutStructured, dailynote.LayoutFlat:
	default:
		errs = append(errs, fmt.Errorf("notes.layout %q is not one of structured, flat", c.Notes.Layout))
	}
	if _, err := c.Notes.Offset(); err != nil {
		errs = append(errs, fmt.Errorf("notes.utc_offset: %w", err))
	}
	if c.Notes.MaxContentLength <= 0 {
		errs = append(errs, fmt.Errorf("notes.max_content_length must be positive"))
	}
	if c.Notes.MaxExportBytes <= 0 {
		errs = append(errs, fmt.Errorf("notes.max_export_bytes must be positive"))
	}

	if c.News.Enabled {
		if c.News.FetchTimeout <= 0 {
			errs = append(errs, fmt.Errorf("news.fetch_timeout must be positive"))
		}
		if c.News.MaxItems <= 0 {
			errs = append(errs, fmt.Errorf("news.max_items must be positive"))
		}
		var seen []string
		for i, f := range c.News.Feeds {
			if f.Name == "" || f.URL == "" {
				errs = append(errs, fmt.Errorf("news.feeds[%d]: name and url are required", i))
			}
			if _, _, err := scheduler.ParseClock(f.At); err != nil {
				errs = append(errs, fmt.Errorf("news.feeds[%d]: %w", i, err))
			}
			if !f.Slot.Valid() {
				errs = append(errs, fmt.Errorf("news.feeds[%d]: slot %q is not one of morning, lunch, evening", i, f.Slot))
			}
			if slices.Contains(seen, f.Name) {
				errs = append(errs, fmt.Errorf("news.feeds[%d]: duplicate name %q", i, f.Name))
			}
			seen = append(seen, f.Name)
		}
	}

	if c.Gateway.Enabled {
		if c.Gateway.Address == "" {
			errs = append(errs, fmt.Errorf("gateway.address is required"))
		}
		if c.Gateway.RatePerMinute < 0 {
			errs = append(errs, fmt.Errorf("gateway.rate_per_minute must not be negative"))
		}
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format))
	}

	return errors.Join(errs...)
}
