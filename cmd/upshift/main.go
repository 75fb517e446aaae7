package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	upshift "github.com/hiresflow/upshift"
	"github.com/hiresflow/upshift/internal/cliconfig"
)

const helpDescription = `
Watch a source folder for arriving masters and promote them into high-tier
storage with crash-safe, at-most-once delivery.

Highlights:
  - Waits until each file has finished writing before touching it.
  - Delivers atomically: the destination never shows a partial file.
  - Keeps an append-only ledger so restarts never reprocess delivered files.
  - Configure via file, environment, or flags.
`

var exampleUsage = strings.TrimSpace(`
  upshift --source /mnt/tier12/incoming --dest /mnt/tier70/masters
  upshift --config $HOME/.upshift/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var extensions []string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "upshift",
		Short:   "Promote watch-folder masters into high-tier storage",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.upshift/config.toml),
			// then apply env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["extensions"] {
				cfg.Extensions = extensions
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Info().
				Str("source", cfg.SourceDir).
				Str("dest", cfg.DestDir).
				Str("ledger", cfg.LedgerPath).
				Int("workers", cfg.Workers).
				Bool("once", cfg.Once).
				Msg("configuration")

			u, err := upshift.New(cfg, upshift.WithLogger(log))
			if err != nil {
				return fmt.Errorf("create pipeline: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := u.Start(ctx); err != nil {
				return fmt.Errorf("start pipeline: %w", err)
			}

			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
				if err := u.Stop(); err != nil {
					return fmt.Errorf("stop pipeline: %w", err)
				}
			case <-u.Done():
				// Completed (once mode) or crashed.
			}

			if err := u.Err(); err != nil {
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.upshift/config.toml)")
	root.Flags().StringVar(&cfg.SourceDir, "source", cfg.SourceDir, "watched source directory")
	root.Flags().StringVar(&cfg.DestDir, "dest", cfg.DestDir, "destination directory for delivered output")
	root.Flags().StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "ledger file path (defaults to <dest>/"+cliconfig.DefaultLedgerName+")")
	root.Flags().StringSliceVar(&extensions, "extensions", cfg.Extensions, "accepted file extensions")

	root.Flags().DurationVar(&cfg.StabilityPollInterval, "stability-poll", cfg.StabilityPollInterval, "interval between stability samples")
	root.Flags().IntVar(&cfg.StabilityRequiredSamples, "stability-samples", cfg.StabilityRequiredSamples, "consecutive unchanged samples required")
	root.Flags().DurationVar(&cfg.StabilityTimeout, "stability-timeout", cfg.StabilityTimeout, "give up on files still changing after this long")
	root.Flags().DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "periodic rescan interval")

	root.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent processing workers")
	root.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "transform attempts before a transient failure becomes permanent")
	root.Flags().DurationVar(&cfg.RetryBaseDelay, "retry-base-delay", cfg.RetryBaseDelay, "initial retry backoff delay")
	root.Flags().IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "pending job queue capacity")

	root.Flags().BoolVar(&cfg.OverwriteExisting, "overwrite", cfg.OverwriteExisting, "overwrite existing destination files instead of skipping")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "process files present now and exit")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("upshift")
		os.Exit(1)
	}
}
