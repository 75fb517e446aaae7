package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies configuration from environment variables (UPSHIFT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", os.Getenv("UPSHIFT_SOURCE_DIR"), &cfg.SourceDir)
	s.setString("dest", os.Getenv("UPSHIFT_DEST_DIR"), &cfg.DestDir)
	s.setString("ledger", os.Getenv("UPSHIFT_LEDGER_PATH"), &cfg.LedgerPath)

	if raw := os.Getenv("UPSHIFT_EXTENSIONS"); raw != "" {
		s.setStrings("extensions", normalizeExtensions(strings.Split(raw, ",")), &cfg.Extensions)
	}

	if err := s.setDuration("stability-poll", os.Getenv("UPSHIFT_STABILITY_POLL_INTERVAL"), &cfg.StabilityPollInterval); err != nil {
		return err
	}
	if err := s.setDuration("stability-timeout", os.Getenv("UPSHIFT_STABILITY_TIMEOUT"), &cfg.StabilityTimeout); err != nil {
		return err
	}
	if err := s.setDuration("scan-interval", os.Getenv("UPSHIFT_SCAN_INTERVAL"), &cfg.ScanInterval); err != nil {
		return err
	}
	if err := s.setDuration("retry-base-delay", os.Getenv("UPSHIFT_RETRY_BASE_DELAY"), &cfg.RetryBaseDelay); err != nil {
		return err
	}

	if err := s.setIntFromString("stability-samples", os.Getenv("UPSHIFT_STABILITY_SAMPLES"), &cfg.StabilityRequiredSamples); err != nil {
		return err
	}
	if err := s.setIntFromString("workers", os.Getenv("UPSHIFT_WORKERS"), &cfg.Workers); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("UPSHIFT_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-capacity", os.Getenv("UPSHIFT_QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}

	s.setBoolFromString("overwrite", os.Getenv("UPSHIFT_OVERWRITE_EXISTING"), &cfg.OverwriteExisting)
	s.setBoolFromString("once", os.Getenv("UPSHIFT_ONCE"), &cfg.Once)

	return nil
}
