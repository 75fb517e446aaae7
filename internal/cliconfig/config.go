package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultLedgerName is the ledger file created inside the destination
// directory when no explicit ledger path is configured.
const DefaultLedgerName = ".upshift-ledger.jsonl"

// DefaultExtensions is the accepted extension set when none is configured.
// The pipeline moves camera and edit masters, so the defaults cover the
// common video container formats.
var DefaultExtensions = []string{
	".mxf", ".mov", ".mp4", ".avi", ".mkv",
	".m4v", ".mpg", ".mpeg", ".wmv",
	".mts", ".m2ts", ".webm",
}

// Config holds CLI configuration for upshift.
type Config struct {
	SourceDir  string
	DestDir    string
	LedgerPath string

	Extensions []string

	StabilityPollInterval    time.Duration
	StabilityRequiredSamples int
	StabilityTimeout         time.Duration
	ScanInterval             time.Duration

	Workers        int
	MaxRetries     int
	RetryBaseDelay time.Duration
	QueueCapacity  int

	OverwriteExisting bool
	Once              bool
}

// DefaultConfig returns a Config with default values.
// SourceDir and DestDir have no defaults and must be set.
func DefaultConfig() Config {
	return Config{
		Extensions:               append([]string(nil), DefaultExtensions...),
		StabilityPollInterval:    500 * time.Millisecond,
		StabilityRequiredSamples: 2,
		StabilityTimeout:         60 * time.Second,
		ScanInterval:             5 * time.Second,
		Workers:                  2,
		MaxRetries:               5,
		RetryBaseDelay:           time.Second,
		QueueCapacity:            256,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source dir is required")
	}
	if c.DestDir == "" {
		return fmt.Errorf("dest dir is required")
	}

	srcAbs, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return fmt.Errorf("source dir: %w", err)
	}
	dstAbs, err := filepath.Abs(c.DestDir)
	if err != nil {
		return fmt.Errorf("dest dir: %w", err)
	}
	if srcAbs == dstAbs {
		return fmt.Errorf("source and dest dirs must differ")
	}
	c.SourceDir = srcAbs
	c.DestDir = dstAbs

	// A permission failure here is permanent; a missing directory is not,
	// the watcher retries until it appears.
	if _, err := os.Stat(c.SourceDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("source dir inaccessible: %w", err)
	}

	if c.LedgerPath == "" {
		c.LedgerPath = filepath.Join(c.DestDir, DefaultLedgerName)
	}

	if c.StabilityPollInterval <= 0 {
		return fmt.Errorf("stability poll interval must be positive")
	}
	if c.StabilityRequiredSamples < 2 {
		c.StabilityRequiredSamples = 2
	}
	if c.StabilityTimeout <= 0 {
		return fmt.Errorf("stability timeout must be positive")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
