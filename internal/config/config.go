package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/diskclean/internal/hints"
)

type Config struct {
	// Node is the name recorded with each cleaning run; defaults to the hostname
	Node string `yaml:"node,omitempty"`

	// RootDevice holds the root device hints, e.g. {serial: S3Z9, size: ">= 200GB"}
	RootDevice map[string]any `yaml:"root_device,omitempty"`

	// Devices is an optional YAML/JSON device list used instead of lsblk
	Devices string `yaml:"devices,omitempty"`

	Database string `yaml:"database"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`
	DryRun   bool   `yaml:"dry_run"`

	Erase Erase                   `yaml:"erase"`
	Steps map[string]StepOverride `yaml:"steps,omitempty"`
}

// Erase holds argv templates; {device} and {serial} are substituted
type Erase struct {
	Command         []string `yaml:"command,omitempty"`
	MetadataCommand []string `yaml:"metadata_command,omitempty"`
}

type StepOverride struct {
	Priority *int `yaml:"priority,omitempty"`
	Disabled bool `yaml:"disabled,omitempty"`
}

const (
	DefaultDatabase = "/var/lib/diskclean/history.db"
	DefaultLogLevel = "info"
)

var defaultConfig = Config{
	Database: DefaultDatabase,
	LogLevel: DefaultLogLevel,
}

// Candidates lists the locations searched when no path is given
func Candidates() []string {
	return []string{
		"/etc/diskclean/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/diskclean/config.yaml"),
		"config.yaml",
	}
}

// Load reads the config at path, or the first existing candidate. With no
// file at all the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if cfg.Node == "" {
		cfg.Node, _ = os.Hostname()
	}
	return &cfg, nil
}

// Parse decodes and validates config YAML, applying defaults
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Database == "" {
		cfg.Database = defaultConfig.Database
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultConfig.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects root device hints that could never be evaluated
func (c *Config) Validate() error {
	if _, err := hints.ParseHints(c.RootDevice); err != nil {
		return fmt.Errorf("invalid root_device: %w", err)
	}
	for name, o := range c.Steps {
		if o.Priority != nil && *o.Priority < 0 {
			return fmt.Errorf("step %s: priority must not be negative", name)
		}
	}
	return nil
}
