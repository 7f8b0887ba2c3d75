package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
telegram_token: from-file
database_url: /tmp/file.db
timezone: Europe/Moscow
horizon_days: 14
widget_debounce: 2s
reset_time: "05:30"
birthday_years_ahead: 3
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TIMETRACE_CONFIG", path)
	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "from-env" {
		t.Errorf("token = %q, env must override the file", cfg.TelegramToken)
	}
	if cfg.DatabaseURL != "/tmp/file.db" {
		t.Errorf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.HorizonDays != 14 {
		t.Errorf("horizon = %d", cfg.HorizonDays)
	}
	if cfg.Debounce != 2*time.Second {
		t.Errorf("debounce = %s", cfg.Debounce)
	}
	if cfg.ResetTime != "05:30" {
		t.Errorf("reset time = %q", cfg.ResetTime)
	}
	if cfg.BirthdayYearsAhead != 3 {
		t.Errorf("years ahead = %d", cfg.BirthdayYearsAhead)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Errorf("location = %s", loc)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TIMETRACE_CONFIG", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without a token")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	if cfg.DatabaseURL != "timetrace.db" {
		t.Errorf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.HorizonDays != 30 {
		t.Errorf("horizon = %d", cfg.HorizonDays)
	}
	if cfg.ResetTime != "04:00" {
		t.Errorf("reset time = %q", cfg.ResetTime)
	}
	if cfg.BirthdayYearsAhead != 1 {
		t.Errorf("years ahead = %d", cfg.BirthdayYearsAhead)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("debounce = %s", cfg.Debounce)
	}
}

func TestNormalizeBadDebounce(t *testing.T) {
	cfg := Config{WidgetDebounce: "not-a-duration"}
	cfg.Normalize()
	if cfg.Debounce != time.Second {
		t.Errorf("debounce = %s, want the 1s fallback", cfg.Debounce)
	}

	cfg = Config{WidgetDebounce: "-5s"}
	cfg.Normalize()
	if cfg.Debounce != time.Second {
		t.Errorf("negative debounce = %s, want the 1s fallback", cfg.Debounce)
	}
}

func TestLocationBadZone(t *testing.T) {
	cfg := Config{Timezone: "Nowhere/Nople"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected an error for an unknown zone")
	}
}
