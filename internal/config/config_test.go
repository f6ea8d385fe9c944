package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dateutil/internal/dateutil"
	"dateutil/internal/locale"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.Locale, "pt-br"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fi.Mode().Perm(), os.FileMode(0o600); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := again.Format, locale.DefaultOptions(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `locale: en-US
timezone: America/Sao_Paulo
month_policy: OVERFLOW
format:
  month: long
  weekday: long
log_level: sideways
ics:
  - id: work
    url: https://example.com/work.ics
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := locale.Options{Weekday: locale.Long, Day: locale.Numeric, Month: locale.Long, Year: locale.Numeric}
	if got := cfg.Format; got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got, want := cfg.Policy(), dateutil.Overflow; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.MonthPolicy, "overflow"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.LogLevel, "INFO"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.Listen, "127.0.0.1:8080"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.HorizonDays, 7; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if len(cfg.ICS) != 1 || cfg.ICS[0].ID != "work" {
		t.Errorf("unexpected ics sources: %+v", cfg.ICS)
	}
}

func TestNormalizeBadPolicy(t *testing.T) {
	cfg := &Config{MonthPolicy: "wrap"}
	cfg.Normalize()
	if got, want := cfg.Policy(), dateutil.Clamp; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.MonthPolicy, "clamp"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("got %v, %v, want Local", loc, err)
	}
	cfg.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Errorf("got %v, %v, want UTC", loc, err)
	}
	cfg.Timezone = "Nowhere/Special"
	if _, err := cfg.Location(); err == nil {
		t.Errorf("expected an error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Locale = "de-DE"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Locale != "de-DE" || got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Errorf("unexpected config: %+v", got)
	}
	if err := Save("", cfg); err == nil {
		t.Errorf("expected an error for an empty path")
	}
	if err := Save(path, nil); err == nil {
		t.Errorf("expected an error for a nil config")
	}
}
