// Package config loads commentsheet settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/surprisetalk/commentsheet/internal/comments"
	"github.com/surprisetalk/commentsheet/internal/listview"
)

// Config is the complete program configuration.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Fetch    FetchConfig   `yaml:"fetch"`
	View     ViewConfig    `yaml:"view"`
	Search   SearchConfig  `yaml:"search"`
	Reload   ReloadConfig  `yaml:"reload"`
	Logging  LoggingConfig `yaml:"logging"`
}

// FetchConfig configures the HTTP transport.
type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	SafeClient bool          `yaml:"safe_client"`
	UserAgent  string        `yaml:"user_agent"`
}

// ViewConfig holds the initial view parameters.
type ViewConfig struct {
	PageSize        string   `yaml:"page_size"`         // positive integer or "all"
	PageSizeOptions []string `yaml:"page_size_options"` // cycled by the page size key
	SortColumn      string   `yaml:"sort_column"`
	SortOrder       string   `yaml:"sort_order"`
}

// SearchConfig configures the search box. A zero Debounce re-filters on every keystroke.
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// ReloadConfig throttles manual reloads.
type ReloadConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
}

// LoggingConfig selects the log file and level. An empty File disables logging.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: comments.DefaultEndpoint,
		Fetch: FetchConfig{
			Timeout:    30 * time.Second,
			SafeClient: true,
			UserAgent:  "commentsheet/1.0",
		},
		View: ViewConfig{
			PageSize:        "10",
			PageSizeOptions: []string{"10", "15", "20", "all"},
			SortColumn:      string(listview.ColumnID),
			SortOrder:       string(listview.Asc),
		},
		Search: SearchConfig{Debounce: 0},
		Reload: ReloadConfig{MinInterval: 2 * time.Second},
		Logging: LoggingConfig{
			File:  DefaultLogPath(),
			Level: "info",
		},
	}
}

// DefaultPath is config.yaml under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "commentsheet.yaml"
	}
	return filepath.Join(dir, "commentsheet", "config.yaml")
}

// DefaultLogPath is commentsheet.log under the user cache directory.
func DefaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "commentsheet", "commentsheet.log")
}

// Load reads path over the defaults and applies environment overrides. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COMMENTSHEET_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v, ok := os.LookupEnv("COMMENTSHEET_LOG_FILE"); ok {
		c.Logging.File = v
	}
	if v := os.Getenv("COMMENTSHEET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", c.Endpoint)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	if c.Reload.MinInterval < 0 {
		return fmt.Errorf("reload.min_interval must not be negative")
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.PageSizeOptions(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	return nil
}

// Params converts the view section into initial list parameters.
func (c *Config) Params() (listview.Params, error) {
	p := listview.DefaultParams()

	size, err := listview.ParsePageSize(c.View.PageSize)
	if err != nil {
		return p, fmt.Errorf("view.page_size: %w", err)
	}
	col, err := listview.ParseColumn(c.View.SortColumn)
	if err != nil {
		return p, fmt.Errorf("view.sort_column: %w", err)
	}
	ord, err := listview.ParseOrder(c.View.SortOrder)
	if err != nil {
		return p, fmt.Errorf("view.sort_order: %w", err)
	}

	p.PageSize = size
	p.Column = col
	p.Order = ord
	return p, nil
}

// PageSizeOptions parses view.page_size_options, falling back to the default options
// when the list is empty.
func (c *Config) PageSizeOptions() ([]listview.PageSize, error) {
	if len(c.View.PageSizeOptions) == 0 {
		return listview.PageSizeOptions, nil
	}
	out := make([]listview.PageSize, 0, len(c.View.PageSizeOptions))
	for _, s := range c.View.PageSizeOptions {
		size, err := listview.ParsePageSize(s)
		if err != nil {
			return nil, fmt.Errorf("view.page_size_options: %w", err)
		}
		out = append(out, size)
	}
	return out, nil
}

// String renders the endpoint and key settings for status output.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "endpoint=%s", c.Endpoint)
	fmt.Fprintf(&sb, " page_size=%s sort=%s/%s", c.View.PageSize, c.View.SortColumn, c.View.SortOrder)
	fmt.Fprintf(&sb, " debounce=%s", c.Search.Debounce)
	return sb.String()
}
