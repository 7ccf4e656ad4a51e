package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/download"
	"reel/internal/fetch"
	"reel/internal/transcode"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var syncFirst bool

	cmd := &cobra.Command{
		Use:   "download [channel...]",
		Short: "Download every eligible video",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if err := ctx.acquireLock(); err != nil {
				return err
			}

			var channelIDs []int64
			for _, ref := range args {
				ch, err := requireChannel(cmd, ctx, ref)
				if err != nil {
					return err
				}
				channelIDs = append(channelIDs, ch.ID)
			}
			if len(channelIDs) == 0 {
				channelIDs = []int64{0}
			}

			if syncFirst {
				if err := runSync(cmd, ctx, args, false, false); err != nil {
					return err
				}
			}

			cfg := ctx.config
			client := fetch.NewClient(cfg, ctx.logger)
			audio := transcode.NewTranscoder(cfg.Transcoder.FFmpegBinary, ctx.logger)
			orchestrator := download.New(ctx.store, cfg, client, audio, ctx.dispatcher, ctx.logger)

			for _, channelID := range channelIDs {
				result, err := orchestrator.Run(cmd.Context(), channelID)
				if result != nil {
					printBatchResult(cmd, result)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&syncFirst, "sync", false, "Sync before downloading")
	return cmd
}

func printBatchResult(cmd *cobra.Command, result *download.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: attempted %d\n", result.RunID, result.Attempted)
	fmt.Fprintf(out, "  downloaded %d, reused %d, slept %d, skipped %d, failed %d\n",
		result.Downloaded, result.Reused, result.Slept, result.Skipped, result.Failed)
	if result.Woken > 0 {
		fmt.Fprintf(out, "  woke %d sleeping videos\n", result.Woken)
	}
}
