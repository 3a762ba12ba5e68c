package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Instance  string          `yaml:"instance"`
	Retention RetentionConfig `yaml:"retention"`
	Remote    RemoteConfig    `yaml:"remote"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Staging   StagingConfig   `yaml:"staging"`
	Transfer  TransferConfig  `yaml:"transfer"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// RetentionConfig holds the expiry policy
type RetentionConfig struct {
	Keep int `yaml:"keep"`
}

// RemoteConfig identifies the DR host and the snapshot root on it
type RemoteConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Path    string `yaml:"path"`
	SSHBin  string `yaml:"ssh_binary"`
	SyncBin string `yaml:"rsync_binary"`
}

// PostgresConfig holds connection and backup-tool settings for the source
// database
type PostgresConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	BackupBin     string `yaml:"backup_binary"`
	CompressLevel int    `yaml:"compress_level"`
}

// StagingConfig holds the local scratch directory settings
type StagingConfig struct {
	Dir              string `yaml:"dir"`
	CleanupAfterPush bool   `yaml:"cleanup_after_push"`
}

// TransferConfig holds retry settings for the push to the DR host
type TransferConfig struct {
	Attempts       int `yaml:"attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// CatalogConfig holds the local run-history database settings
type CatalogConfig struct {
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instance:  "main",
		Retention: RetentionConfig{Keep: 3},
		Remote: RemoteConfig{
			Port:    22,
			SSHBin:  "ssh",
			SyncBin: "rsync",
		},
		Postgres: PostgresConfig{
			Host:          "127.0.0.1",
			Port:          5432,
			User:          "postgres",
			BackupBin:     "pg_basebackup",
			CompressLevel: 6,
		},
		Staging: StagingConfig{
			Dir: "/var/lib/drbase/staging",
		},
		Transfer: TransferConfig{
			Attempts:       3,
			BackoffSeconds: 60,
		},
		Catalog: CatalogConfig{
			DBPath: "/var/lib/drbase/drbase.db",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"drbase.yaml",
		"/etc/drbase/drbase.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "drbase", "drbase.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// Validate rejects configurations the pipeline cannot operate with. The
// retention count is deliberately not checked here: the expiry policy
// clamps keep-1 to a minimum of 1 at evaluation time.
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}
	if c.Remote.Host == "" {
		return fmt.Errorf("remote.host is required")
	}
	if c.Remote.User == "" {
		return fmt.Errorf("remote.user is required")
	}
	if c.Remote.Path == "" {
		return fmt.Errorf("remote.path is required")
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port %d is out of range", c.Remote.Port)
	}
	if c.Staging.Dir == "" {
		return fmt.Errorf("staging.dir is required")
	}
	if c.Postgres.CompressLevel < 0 || c.Postgres.CompressLevel > 9 {
		return fmt.Errorf("postgres.compress_level %d is out of range (0-9)", c.Postgres.CompressLevel)
	}
	if c.Transfer.Attempts < 1 {
		return fmt.Errorf("transfer.attempts must be at least 1")
	}
	if c.Transfer.BackoffSeconds < 0 {
		return fmt.Errorf("transfer.backoff_seconds must not be negative")
	}
	return nil
}

// InstanceRoot returns the DR-side directory holding this instance's
// snapshots.
func (c *Config) InstanceRoot() string {
	return c.Remote.Path + "/" + c.Instance
}
