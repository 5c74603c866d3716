// Package config provides configuration management for bkp-drive.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/jneless/bkp-drive/internal/constants"
)

// Environment variables consulted after flags and before the config file.
const (
	EnvBaseURL       = "BKP_DRIVE_URL"
	EnvToken         = "BKP_DRIVE_TOKEN"
	EnvProxyPassword = "BKP_DRIVE_PROXY_PASSWORD"
)

// Config is the client configuration.
//
// INI format:
//
//	[server]
//	base_url = http://localhost:18666/api/v1
//	requests_per_second = 10
//	burst = 20
//	max_retries = 0
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[client]
//	default_view = list
//	state_dir = ~/.config/bkp-drive/state
//	thumbnail_workers = 8
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int

	// Token comes from --token or BKP_DRIVE_TOKEN. It is never written
	// to the config file; logins are persisted by the session stores.
	Token string

	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // BKP_DRIVE_PROXY_PASSWORD or prompt, not persisted
	NoProxy       string // comma-separated hosts/CIDRs bypassing the proxy
	ProxyWarmup   bool

	DefaultView      string // "list" or "grid"
	StateDir         string
	ThumbnailWorkers int
}

// Validation errors
var (
	ErrMissingBaseURL    = errors.New("base_url is required")
	ErrInvalidBaseURL    = errors.New("base_url must be an absolute http or https URL")
	ErrInvalidProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidRate       = errors.New("requests_per_second and burst must not be negative")
	ErrInvalidRetries    = errors.New("max_retries must not be negative")
	ErrInvalidView       = errors.New("default_view must be list or grid")
	ErrInvalidThumbLimit = errors.New("thumbnail_workers must be at least 1")
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:           constants.DefaultBaseURL,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		Burst:             constants.DefaultBurst,
		MaxRetries:        constants.DefaultMaxRetries,
		ProxyMode:         "no-proxy",
		DefaultView:       "list",
		StateDir:          DefaultStateDir(),
		ThumbnailWorkers:  constants.DefaultThumbnailWorkers,
	}
}

// LoadConfig loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.BaseURL = server.Key("base_url").MustString(cfg.BaseURL)
	cfg.RequestsPerSecond = server.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)
	cfg.Burst = server.Key("burst").MustInt(cfg.Burst)
	cfg.MaxRetries = server.Key("max_retries").MustInt(cfg.MaxRetries)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	client := iniFile.Section("client")
	cfg.DefaultView = client.Key("default_view").MustString(cfg.DefaultView)
	cfg.StateDir = client.Key("state_dir").MustString(cfg.StateDir)
	cfg.ThumbnailWorkers = client.Key("thumbnail_workers").MustInt(cfg.ThumbnailWorkers)

	return cfg, nil
}

// SaveConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. Secrets (token, proxy
// password) are never written.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("base_url").SetValue(cfg.BaseURL)
	server.Key("requests_per_second").SetValue(strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
	server.Key("burst").SetValue(strconv.Itoa(cfg.Burst))
	server.Key("max_retries").SetValue(strconv.Itoa(cfg.MaxRetries))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	client, err := iniFile.NewSection("client")
	if err != nil {
		return fmt.Errorf("failed to create client section: %w", err)
	}
	client.Key("default_view").SetValue(cfg.DefaultView)
	client.Key("state_dir").SetValue(cfg.StateDir)
	client.Key("thumbnail_workers").SetValue(strconv.Itoa(cfg.ThumbnailWorkers))

	// temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	if c.RequestsPerSecond < 0 || c.Burst < 0 {
		return ErrInvalidRate
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.DefaultView != "list" && c.DefaultView != "grid" {
		return ErrInvalidView
	}
	if c.ThumbnailWorkers < 1 {
		return ErrInvalidThumbLimit
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvProxyPassword); v != "" {
		c.ProxyPassword = v
	}
}

// MergeWithFlags overlays non-empty command-line values. Flags win over
// environment and file values.
func (c *Config) MergeWithFlags(baseURL, token string) {
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if token != "" {
		c.Token = token
	}
}

// Keys lists the settings accepted by Set, in display order.
var Keys = []string{
	"base_url", "requests_per_second", "burst", "max_retries",
	"proxy.mode", "proxy.host", "proxy.port", "proxy.user", "proxy.no_proxy", "proxy.warmup",
	"default_view", "state_dir", "thumbnail_workers",
}

// Set assigns one setting by key, parsing the value for its type.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "base_url":
		c.BaseURL = value
	case "requests_per_second":
		c.RequestsPerSecond, err = strconv.ParseFloat(value, 64)
	case "burst":
		c.Burst, err = strconv.Atoi(value)
	case "max_retries":
		c.MaxRetries, err = strconv.Atoi(value)
	case "proxy.mode":
		c.ProxyMode = value
	case "proxy.host":
		c.ProxyHost = value
	case "proxy.port":
		c.ProxyPort, err = strconv.Atoi(value)
	case "proxy.user":
		c.ProxyUser = value
	case "proxy.no_proxy":
		c.NoProxy = value
	case "proxy.warmup":
		c.ProxyWarmup, err = strconv.ParseBool(value)
	case "default_view":
		c.DefaultView = value
	case "state_dir":
		c.StateDir = value
	case "thumbnail_workers":
		c.ThumbnailWorkers, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// Get returns the string form of one setting.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "base_url":
		return c.BaseURL, nil
	case "requests_per_second":
		return strconv.FormatFloat(c.RequestsPerSecond, 'f', -1, 64), nil
	case "burst":
		return strconv.Itoa(c.Burst), nil
	case "max_retries":
		return strconv.Itoa(c.MaxRetries), nil
	case "proxy.mode":
		return c.ProxyMode, nil
	case "proxy.host":
		return c.ProxyHost, nil
	case "proxy.port":
		return strconv.Itoa(c.ProxyPort), nil
	case "proxy.user":
		return c.ProxyUser, nil
	case "proxy.no_proxy":
		return c.NoProxy, nil
	case "proxy.warmup":
		return strconv.FormatBool(c.ProxyWarmup), nil
	case "default_view":
		return c.DefaultView, nil
	case "state_dir":
		return c.StateDir, nil
	case "thumbnail_workers":
		return strconv.Itoa(c.ThumbnailWorkers), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}
