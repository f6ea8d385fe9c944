package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dateutil/internal/dateutil"
	"dateutil/internal/locale"
	appLog "dateutil/internal/log"
)

// ICSConfig describes a single ICS source shown by the agenda.
type ICSConfig struct {
	// URL is an http(s) endpoint, a file:// URL or a plain path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Locale is the BCP 47 identifier used when a request does not name one.
	Locale string `yaml:"locale" json:"locale"`

	// Timezone is the IANA zone used to interpret dates without an offset.
	// "Local" or empty means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// MonthPolicy is "clamp" or "overflow"; see dateutil.MonthPolicy.
	MonthPolicy string `yaml:"month_policy" json:"month_policy"`

	// Format holds the default format options. Request options are merged
	// over these field by field.
	Format locale.Options `yaml:"format" json:"format"`

	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Watch is a cron-style schedule (e.g. "* * * * *") for the watch command.
	Watch string `yaml:"watch" json:"watch"`

	// LogLevel is DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFile, if set, also writes logs to a rotated file.
	LogFile string `yaml:"log_file,omitempty" json:"log_file,omitempty"`

	// HorizonDays is the number of future days the agenda covers.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// CacheDir holds the ICS fetch cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of agenda sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultWatch    = "* * * * *"
	defaultCacheDir = "./var/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Locale:      dateutil.DefaultLocale,
		Timezone:    "Local",
		MonthPolicy: dateutil.Clamp.String(),
		Format:      locale.DefaultOptions(),
		Listen:      defaultListen,
		Watch:       defaultWatch,
		LogLevel:    string(appLog.LevelInfo),
		HorizonDays: 7,
		CacheDir:    defaultCacheDir,
		ICS:         []ICSConfig{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with defaults and replaces values
// that cannot be used with the default, logging each replacement.
func (c *Config) Normalize() {
	if c.Locale == "" {
		c.Locale = dateutil.DefaultLocale
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	policy, err := dateutil.ParseMonthPolicy(c.MonthPolicy)
	if err != nil {
		appLog.Warn("config: unknown month_policy; using clamp", "month_policy", c.MonthPolicy)
	}
	c.MonthPolicy = policy.String()
	// Explicit fields win; the rest comes from the defaults.
	c.Format = locale.DefaultOptions().Merge(c.Format)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Watch == "" {
		c.Watch = defaultWatch
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = string(appLog.LevelInfo)
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Policy returns the configured month policy.
func (c *Config) Policy() dateutil.MonthPolicy {
	p, _ := dateutil.ParseMonthPolicy(c.MonthPolicy)
	return p
}

// Location resolves Timezone; "Local" or empty is the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("config: wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, creating the
// parent directory (0700) and leaving the file with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dateutil-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
