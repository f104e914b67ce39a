/*
Package config loads the bot configuration.

SOURCES (later wins):
  1. Defaults
  2. The config file (config.json by default; YAML and TOML by extension)
  3. BIRTHDAY_* environment variables, after an optional .env file is loaded

KEYS:
  prefix               command prefix, e.g. "b!"            (required)
  token                bot token                            (required)
  guild_id             community id                         (required)
  birthday_role_id     role granted on the birthday         (required)
  announce_channel_id  channel for announcements            (required)
  owners               ids allowed to use owner commands    (required)
  database             SQLite file                          (storage.db)
  poll_interval        reconciliation interval              (10s)
  confirm_timeout      wait per registration step           (30s)
  source_url           link shown by the source command
  http_addr            admin HTTP listen address            (disabled)
  debug                debug logging

  Ids are Discord snowflakes and must be quoted strings in JSON; numbers
  that large do not survive float decoding.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BIRTHDAY"

var (
	// ErrNotFound is returned when the config file does not exist.
	ErrNotFound = errors.New("config file not found")

	// ErrMalformed is returned when the config file cannot be parsed.
	ErrMalformed = errors.New("config file is malformed")

	// ErrInvalid is returned when a value fails validation.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the complete bot configuration.
type Config struct {
	Prefix            string        `mapstructure:"prefix"`
	Token             string        `mapstructure:"token"`
	GuildID           string        `mapstructure:"guild_id"`
	BirthdayRoleID    string        `mapstructure:"birthday_role_id"`
	AnnounceChannelID string        `mapstructure:"announce_channel_id"`
	Owners            []string      `mapstructure:"owners"`
	Database          string        `mapstructure:"database"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ConfirmTimeout    time.Duration `mapstructure:"confirm_timeout"`
	SourceURL         string        `mapstructure:"source_url"`
	HTTPAddr          string        `mapstructure:"http_addr"`
	Debug             bool          `mapstructure:"debug"`
}

var defaults = map[string]any{
	"prefix":              "",
	"token":               "",
	"guild_id":            "",
	"birthday_role_id":    "",
	"announce_channel_id": "",
	"owners":              []string{},
	"database":            "storage.db",
	"poll_interval":       "10s",
	"confirm_timeout":     "30s",
	"source_url":          "https://github.com/AlexFlipnote/birthday.py",
	"http_addr":           "",
	"debug":               false,
}

// Load reads the config file at path, applies environment overrides and
// validates the result. envFile is loaded first if it exists; pass "" to
// skip it.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	cfg.Owners = splitOwners(cfg.Owners)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitOwners accepts both a list and a comma separated env value.
func splitOwners(owners []string) []string {
	out := make([]string, 0, len(owners))
	for _, o := range owners {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks required keys and id formats.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		key, value string
	}{
		{"prefix", c.Prefix},
		{"token", c.Token},
		{"guild_id", c.GuildID},
		{"birthday_role_id", c.BirthdayRoleID},
		{"announce_channel_id", c.AnnounceChannelID},
		{"database", c.Database},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s is required", ErrInvalid, r.key))
		}
	}

	for _, r := range required[2:5] {
		if r.value != "" && !isSnowflake(r.value) {
			errs = append(errs, fmt.Errorf("%w: %s %q is not a numeric id", ErrInvalid, r.key, r.value))
		}
	}

	if len(c.Owners) == 0 {
		errs = append(errs, fmt.Errorf("%w: owners is required", ErrInvalid))
	}
	for _, owner := range c.Owners {
		if !isSnowflake(owner) {
			errs = append(errs, fmt.Errorf("%w: owner %q is not a numeric id", ErrInvalid, owner))
		}
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: poll_interval must be positive", ErrInvalid))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: confirm_timeout must be positive", ErrInvalid))
	}

	return errors.Join(errs...)
}

func isSnowflake(id string) bool {
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil && !strings.HasPrefix(id, "-") && !strings.HasPrefix(id, "+")
}
