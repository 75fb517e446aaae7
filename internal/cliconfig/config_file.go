package cliconfig

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML friendly.
type fileConfig struct {
	SourceDir  string   `toml:"source_dir"`
	DestDir    string   `toml:"dest_dir"`
	LedgerPath string   `toml:"ledger_path"`
	Extensions []string `toml:"extensions"`

	StabilityPollInterval    string `toml:"stability_poll_interval"`
	StabilityRequiredSamples int    `toml:"stability_samples"`
	StabilityTimeout         string `toml:"stability_timeout"`
	ScanInterval             string `toml:"scan_interval"`

	Workers        int    `toml:"workers"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBaseDelay string `toml:"retry_base_delay"`
	QueueCapacity  int    `toml:"queue_capacity"`

	OverwriteExisting *bool `toml:"overwrite_existing"`
	Once              *bool `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.upshift/config.toml if the user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".upshift", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.SourceDir, &cfg.SourceDir)
	s.setString("dest", fc.DestDir, &cfg.DestDir)
	s.setString("ledger", fc.LedgerPath, &cfg.LedgerPath)
	s.setStrings("extensions", normalizeExtensions(fc.Extensions), &cfg.Extensions)

	if err := s.setDuration("stability-poll", fc.StabilityPollInterval, &cfg.StabilityPollInterval); err != nil {
		return err
	}
	if err := s.setDuration("stability-timeout", fc.StabilityTimeout, &cfg.StabilityTimeout); err != nil {
		return err
	}
	if err := s.setDuration("scan-interval", fc.ScanInterval, &cfg.ScanInterval); err != nil {
		return err
	}
	if err := s.setDuration("retry-base-delay", fc.RetryBaseDelay, &cfg.RetryBaseDelay); err != nil {
		return err
	}

	s.setInt("stability-samples", fc.StabilityRequiredSamples, &cfg.StabilityRequiredSamples)
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)

	s.setBool("overwrite", fc.OverwriteExisting, &cfg.OverwriteExisting)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// normalizeExtensions lowercases extensions and ensures a leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
