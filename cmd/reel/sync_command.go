package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/catalog"
	"reel/internal/feed"
	"reel/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var noRSS bool
	var ignoreOld bool

	cmd := &cobra.Command{
		Use:   "sync [channel...]",
		Short: "Reconcile the catalog with remote listings",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			return runSync(cmd, ctx, args, noRSS, ignoreOld)
		},
	}

	cmd.Flags().BoolVar(&noRSS, "no-rss", false, "Force full listings instead of the RSS feed")
	cmd.Flags().BoolVar(&ignoreOld, "ignore-old", false, "Only sync channels never synced before")
	return cmd
}

// runSync builds the sync engine from config and reconciles the named
// channels, or all of them. Shared with `download --sync`.
func runSync(cmd *cobra.Command, ctx *commandContext, refs []string, noRSS, ignoreOld bool) error {
	cfg := ctx.config
	var rss syncer.Enumerator
	if cfg.Sync.RSSEnabled && !noRSS {
		rss = feed.NewRSSEnumerator(time.Duration(cfg.Sync.RequestTimeout) * time.Second)
	}
	full := feed.NewFullEnumerator(cfg.Downloader.Binary, cfg.Paths.CookieFile)
	engine := syncer.New(ctx.store, rss, full, ctx.dispatcher, ctx.logger)

	channels, err := resolveChannels(cmd, ctx, refs)
	if err != nil {
		return err
	}
	if ignoreOld {
		fresh := channels[:0]
		for _, ch := range channels {
			if ch.LastSyncedAt == nil {
				fresh = append(fresh, ch)
			}
		}
		channels = fresh
	}
	if len(channels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync.")
		return nil
	}

	results, err := engine.SyncChannels(cmd.Context(), channels)
	printSyncResults(cmd, results)
	return err
}

func resolveChannels(cmd *cobra.Command, ctx *commandContext, refs []string) ([]*catalog.Channel, error) {
	if len(refs) == 0 {
		return ctx.store.Channels(cmd.Context())
	}
	channels := make([]*catalog.Channel, 0, len(refs))
	for _, ref := range refs {
		ch, err := requireChannel(cmd, ctx, ref)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func printSyncResults(cmd *cobra.Command, results []*syncer.Result) {
	if len(results) == 0 {
		return
	}
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{
			result.Channel,
			fmt.Sprintf("%d", result.Added),
			fmt.Sprintf("%d", result.Updated),
			yesNo(result.Complete),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Channel", "Added", "Updated", "Full"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
