package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reel/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(newConfigInitCommand(ctx))
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rate := "unlimited"
			if cfg.Downloader.RateLimit > 0 {
				rate = humanize.Bytes(uint64(cfg.Downloader.RateLimit)) + "/s"
			}

			rows := [][]string{
				{"paths.library_dir", cfg.Paths.LibraryDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.cookie_file", cfg.Paths.CookieFile},
				{"downloader.binary", cfg.Downloader.Binary},
				{"downloader.merge_format", cfg.Downloader.MergeFormat},
				{"downloader.rate_limit", rate},
				{"downloader.retries", fmt.Sprintf("%d", cfg.Downloader.Retries)},
				{"transcoder.ffmpeg_binary", cfg.Transcoder.FFmpegBinary},
				{"transcoder.ffprobe_binary", cfg.Transcoder.FFprobeBinary},
				{"sync.rss_enabled", yesNo(cfg.Sync.RSSEnabled)},
				{"sync.request_timeout", fmt.Sprintf("%ds", cfg.Sync.RequestTimeout)},
				{"policy.failure_skip", yesNo(cfg.Policy.FailureSkip)},
				{"policy.abort_on_failure", yesNo(cfg.Policy.AbortOnFailure)},
				{"policy.auto_sleep", yesNo(cfg.Policy.AutoSleep)},
				{"hooks.disabled", yesNo(cfg.Hooks.Disabled)},
				{"hooks.extensions", fmt.Sprintf("%d configured", len(cfg.Hooks.Extensions))},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
