// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with only a token.
// For required credentials, use ValidateBotReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the recording engine and presentation.
const (
	DefaultRecordingTimeout   = 120 * time.Second
	DefaultCheckInterval      = 30 * time.Second
	DefaultIDsPerPage         = 200
	DefaultReleaseIDsPerPage  = 150
	DefaultEvolveIDsPerPage   = 50
	DefaultPaginationTimeout  = 180 * time.Second
	DefaultEmbedColor         = 0xfeb1d3
	DefaultReleaseTargetBotID = "716390085896962058"
)

type Config struct {
	// Discord
	DiscordToken  string
	CommandPrefix string
	EmbedColor    int

	// Recording
	RecordingTimeout time.Duration
	CheckInterval    time.Duration
	IDsPerPage       int

	// Pagination / id lists
	ReleaseIDsPerPage  int
	EvolveIDsPerPage   int
	PaginationTimeout  time.Duration
	ReleaseTargetBotID string

	// Database (optional; release and evolve commands are disabled without it)
	DBDsn string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if the Discord token is
// missing; use ValidateBotReady() before connecting. Malformed numeric values are reported.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}

	cfg.EmbedColor = DefaultEmbedColor
	if v := os.Getenv("EMBED_COLOR"); v != "" {
		c, perr := strconv.ParseInt(strings.TrimPrefix(strings.TrimPrefix(v, "#"), "0x"), 16, 32)
		if perr != nil {
			return nil, fmt.Errorf("invalid EMBED_COLOR (hex): %w", perr)
		}
		cfg.EmbedColor = int(c)
	}

	if cfg.RecordingTimeout, err = envDuration("RECORDING_TIMEOUT", DefaultRecordingTimeout); err != nil {
		return nil, err
	}
	if cfg.CheckInterval, err = envDuration("INACTIVITY_CHECK_INTERVAL", DefaultCheckInterval); err != nil {
		return nil, err
	}
	if cfg.IDsPerPage, err = envInt("IDS_PER_PAGE", DefaultIDsPerPage); err != nil {
		return nil, err
	}
	if cfg.ReleaseIDsPerPage, err = envInt("RELEASE_IDS_PER_PAGE", DefaultReleaseIDsPerPage); err != nil {
		return nil, err
	}
	if cfg.EvolveIDsPerPage, err = envInt("EVOLVE_IDS_PER_PAGE", DefaultEvolveIDsPerPage); err != nil {
		return nil, err
	}
	if cfg.PaginationTimeout, err = envDuration("PAGINATION_TIMEOUT", DefaultPaginationTimeout); err != nil {
		return nil, err
	}

	cfg.ReleaseTargetBotID = os.Getenv("RELEASE_TARGET_BOT_ID")
	if cfg.ReleaseTargetBotID == "" {
		cfg.ReleaseTargetBotID = DefaultReleaseTargetBotID
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateBotReady checks the fields required to open a gateway session.
func (c *Config) ValidateBotReady() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing discord env: require DISCORD_TOKEN")
	}
	if strings.ContainsAny(c.CommandPrefix, " \t\n") {
		return fmt.Errorf("COMMAND_PREFIX must not contain whitespace")
	}
	return nil
}

// ListsEnabled reports whether a database is configured for the release and evolve lists.
func (c *Config) ListsEnabled() bool { return c.DBDsn != "" }

// ParseDuration accepts either a bare number of seconds ("120") or a Go duration ("2m").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}
