// Package config holds the connection and runtime settings of specdl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the file backed part of the settings. Selection flags such as
// --document or --latest are not part of it.
type Config struct {
	Host               string `toml:"host" yaml:"host"`
	Port               string `toml:"port" yaml:"port"`
	User               string `toml:"user" yaml:"user"`
	Pass               string `toml:"pass" yaml:"pass"`
	BasePath           string `toml:"base_path" yaml:"base_path"`
	TLS                string `toml:"tls" yaml:"tls"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	TimeoutSeconds     int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	DebugFTP           bool   `toml:"debug_ftp" yaml:"debug_ftp"`
	OutputDir          string `toml:"output_dir" yaml:"output_dir"`
	LogDir             string `toml:"log_dir" yaml:"log_dir"`
	Converter          string `toml:"converter" yaml:"converter"`
	DocMarker          string `toml:"doc_marker" yaml:"doc_marker"`
	ListEncoding       string `toml:"list_encoding" yaml:"list_encoding"`
	Progress           bool   `toml:"progress" yaml:"progress"`
}

// Default returns the settings for the public 3GPP archive.
func Default() *Config {
	return &Config{
		Host:           "www.3gpp.org",
		Port:           "21",
		BasePath:       "/Specs/archive",
		TLS:            "none",
		TimeoutSeconds: 30,
		OutputDir:      ".",
		Converter:      "soffice",
		DocMarker:      ".doc",
		Progress:       true,
	}
}

// Load reads path over the defaults. TOML and YAML are told apart by the
// file extension; an empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml", "":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported config format %s", ErrInvalid, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Timeout returns the dial timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate trims the string settings and checks them.
func (c *Config) Validate() error {
	c.Host = strings.TrimSpace(c.Host)
	c.Port = strings.TrimSpace(c.Port)
	c.TLS = strings.ToLower(strings.TrimSpace(c.TLS))
	if c.Host == "" {
		return fmt.Errorf("%w: host is not specified", ErrInvalid)
	}
	if c.Port == "" {
		c.Port = "21"
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: port %q", ErrInvalid, c.Port)
	}
	switch c.TLS {
	case "", "none", "explicit", "implicit":
	default:
		return fmt.Errorf("%w: tls must be none, explicit or implicit, got %q", ErrInvalid, c.TLS)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	return nil
}
