package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "openair.yaml"

// Config is the on-disk configuration.
type Config struct {
	Host         string        `yaml:"host"`
	TimesheetURL string        `yaml:"timesheet_url"`
	Cookie       string        `yaml:"cookie"` // raw Cookie header of a signed in session
	HistoryDB    string        `yaml:"history_db"`
	Browser      BrowserConfig `yaml:"browser"`
	Allocations  []Allocation  `yaml:"allocations"`
}

// BrowserConfig controls the live browser mode.
type BrowserConfig struct {
	DebuggerURL       string `yaml:"debugger_url"`
	Bin               string `yaml:"bin"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// DefaultConfig books a training day on internal operations.
func DefaultConfig() *Config {
	return &Config{
		Host:      DefaultHost,
		HistoryDB: "openair.db",
		Browser: BrowserConfig{
			NavigationTimeout: "30s",
		},
		Allocations: []Allocation{
			{
				ProjectID: "88:223", // Internal US Operations
				TaskID:    737,      // Training
				Hours:     8,
				Comment:   "Training for next project",
			},
		},
	}
}

// LoadConfig reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAIR_COOKIE"); v != "" {
		c.Cookie = v
	}
	if v := os.Getenv("OPENAIR_TIMESHEET_URL"); v != "" {
		c.TimesheetURL = v
	}
	if v := os.Getenv("OPENAIR_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: host is empty")
	}
	if len(c.Allocations) == 0 {
		return errors.New("config: no allocations")
	}
	if _, err := c.Browser.Timeout(); err != nil {
		return fmt.Errorf("config: browser.navigation_timeout: %w", err)
	}
	return nil
}

// BaseURL is the origin session cookies are scoped to.
func (c *Config) BaseURL() string {
	return "https://" + c.Host + "/"
}

// Cookies parses the configured Cookie header.
func (c *Config) Cookies() ([]*http.Cookie, error) {
	if c.Cookie == "" {
		return nil, nil
	}
	cookies, err := http.ParseCookie(c.Cookie)
	if err != nil {
		return nil, fmt.Errorf("config: cookie: %w", err)
	}
	return cookies, nil
}

// Timeout returns the navigation timeout, 30s when unset.
func (b BrowserConfig) Timeout() (time.Duration, error) {
	if b.NavigationTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(b.NavigationTimeout)
}
