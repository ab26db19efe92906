package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"readcal/internal/ics"
)

const (
	DefaultDatabase  = "statistics.sqlite3"
	DefaultOutput    = "reading_schedule.ics"
	DefaultTimezone  = "Asia/Shanghai"
	DefaultProductID = ics.DefaultProductID
	DefaultMergeGap  = 600

	StrategySequential = "sequential"
	StrategyPerTitle   = "per_title"
)

// defaultOffset is the UTC offset of DefaultTimezone. It is used when the
// host has no tzdata to resolve the zone name.
const defaultOffset = 8 * 60 * 60

// Config is the top-level application configuration.
type Config struct {
	// Database is the path to the reader's statistics SQLite file.
	Database string `yaml:"database" json:"database"`

	// Output is where the generated .ics file is written.
	Output string `yaml:"output" json:"output"`

	// Timezone is the IANA timezone used for all calendar timestamps (e.g. "Asia/Shanghai").
	Timezone string `yaml:"timezone" json:"timezone"`

	// MergeGapSeconds is the largest pause between two page records that
	// still counts as the same reading session.
	MergeGapSeconds int `yaml:"merge_gap_seconds" json:"merge_gap_seconds"`

	// MergeStrategy selects how interleaved titles are handled:
	//   - "sequential" (default): any title change closes the open session
	//   - "per_title": each title keeps its own open session
	MergeStrategy string `yaml:"merge_strategy" json:"merge_strategy"`

	// ProductID is written as the calendar's PRODID.
	ProductID string `yaml:"product_id" json:"product_id"`

	// CalendarName, if set, is written as X-WR-CALNAME.
	CalendarName string `yaml:"calendar_name,omitempty" json:"calendar_name,omitempty"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database:        DefaultDatabase,
		Output:          DefaultOutput,
		Timezone:        DefaultTimezone,
		MergeGapSeconds: DefaultMergeGap,
		MergeStrategy:   StrategySequential,
		ProductID:       DefaultProductID,
		LogLevel:        "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.MergeGapSeconds <= 0 {
		c.MergeGapSeconds = DefaultMergeGap
	}
	switch c.MergeStrategy {
	case StrategySequential, StrategyPerTitle:
		// ok
	default:
		c.MergeStrategy = StrategySequential
	}
	if c.ProductID == "" {
		c.ProductID = DefaultProductID
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// MergeGap returns MergeGapSeconds as a duration.
func (c *Config) MergeGap() time.Duration {
	return time.Duration(c.MergeGapSeconds) * time.Second
}

// Location resolves Timezone. When the name is the default zone and tzdata
// is unavailable, a fixed UTC+8 zone is returned instead. The readcal binary
// embeds time/tzdata, so this only applies to other importers of this package
// running on hosts without a zoneinfo database. Any other unknown name is an
// error.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Timezone == DefaultTimezone {
		return time.FixedZone("UTC+08:00", defaultOffset), nil
	}
	return nil, fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If path is empty, the defaults are returned.
//   - If the file does not exist, a default config is written there (0600)
//     and returned.
//   - Otherwise the YAML is read, unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path as YAML via a temp file + rename, leaving the
// final file with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".readcal-config-*.tmp")
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
