package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	DatabaseURL   string `yaml:"database_url"`

	// Timezone is the IANA zone used for all local-date logic; empty means
	// the system zone.
	Timezone string `yaml:"timezone"`

	// HorizonDays is the forward window routines are materialized over.
	HorizonDays int `yaml:"horizon_days"`

	// WidgetDebounce is how long after the last mutation the widget refresh
	// fires, as a Go duration string.
	WidgetDebounce string `yaml:"widget_debounce"`

	// ResetTime is the HH:MM local time of the daily routine-completion
	// reset.
	ResetTime string `yaml:"reset_time"`

	// BirthdayYearsAhead is how many years beyond the current one birthdays
	// are projected into.
	BirthdayYearsAhead int `yaml:"birthday_years_ahead"`

	Debounce time.Duration `yaml:"-"`
}

// Load reads the optional YAML file named by TIMETRACE_CONFIG, then applies
// environment overrides and defaults.
func Load() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv("TIMETRACE_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.TelegramToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}

	cfg.Normalize()

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return cfg, nil
}

// Normalize fills in missing or invalid values with defaults so partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "timetrace.db"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.ResetTime == "" {
		c.ResetTime = "04:00"
	}
	if c.BirthdayYearsAhead < 0 {
		c.BirthdayYearsAhead = 0
	}
	if c.BirthdayYearsAhead == 0 {
		c.BirthdayYearsAhead = 1
	}

	c.Debounce = time.Second
	if c.WidgetDebounce != "" {
		if d, err := time.ParseDuration(c.WidgetDebounce); err == nil && d > 0 {
			c.Debounce = d
		}
	}
}

// Location resolves the configured timezone, falling back to the system one.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
