package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reel/internal/catalog"
	"reel/internal/fileutil"
	"reel/internal/hooks"
	"reel/internal/naming"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show a video's catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			video, err := requireVideo(cmd, ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", video.ID)
			fmt.Fprintf(out, "Title:     %s\n", video.Title)
			fmt.Fprintf(out, "Name:      %s\n", naming.Resolve(video.Title, video.OverrideName, video.ID))
			if video.OverrideName != "" {
				fmt.Fprintf(out, "Override:  %s\n", video.OverrideName)
			}
			fmt.Fprintf(out, "State:     %s\n", video.State)
			if video.SleepUntil != nil {
				fmt.Fprintf(out, "Wakes:     %s (%s)\n", video.SleepUntil.Local().Format(time.RFC1123), humanize.Time(*video.SleepUntil))
			}
			if video.FailureReason != "" {
				fmt.Fprintf(out, "Failure:   %s\n", video.FailureReason)
			}
			if video.ChannelID != 0 {
				if ch, err := ctx.store.ChannelByID(cmd.Context(), video.ChannelID); err == nil && ch != nil {
					fmt.Fprintf(out, "Channel:   %s\n", ch.DisplayName())
				}
				fmt.Fprintf(out, "Position:  %d\n", video.Position)
			}
			if video.Duration > 0 {
				fmt.Fprintf(out, "Duration:  %s\n", (time.Duration(video.Duration) * time.Second).String())
			}
			if video.Uploader != "" {
				fmt.Fprintf(out, "Uploader:  %s\n", video.Uploader)
			}
			if video.PublishedAt != nil {
				fmt.Fprintf(out, "Published: %s\n", video.PublishedAt.Format("2006-01-02"))
			}
			if video.DownloadPath != "" {
				marker := ""
				if !fileutil.PathExists(video.DownloadPath) {
					marker = " (missing)"
				}
				fmt.Fprintf(out, "File:      %s%s\n", video.DownloadPath, marker)
			}
			if !video.Tags.Empty() {
				fmt.Fprintf(out, "Tags:      artist=%s album=%s year=%s genre=%s\n",
					video.Tags.Artist, video.Tags.Album, video.Tags.Year, video.Tags.Genre)
			}
			fmt.Fprintf(out, "Added:     %s\n", humanize.Time(video.CreatedAt))
			return nil
		},
	}
}

func newNameCommand(ctx *commandContext) *cobra.Command {
	var clearFlag bool

	cmd := &cobra.Command{
		Use:   "name <video-id> [name]",
		Short: "Set or clear a video's preferred name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			video, err := requireVideo(cmd, ctx, args[0])
			if err != nil {
				return err
			}

			override := optionalArg(args, 1)
			if clearFlag {
				override = ""
			} else if override == "" {
				return fmt.Errorf("a name is required unless --clear is given")
			}
			if err := ctx.store.SetVideoOverride(cmd.Context(), video.ID, override); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video %s resolves to %s\n",
				video.ID, naming.Resolve(video.Title, override, video.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearFlag, "clear", false, "Remove the preferred name")
	return cmd
}

func newUpdateNamesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-names [channel]",
		Short: "Recompute names and rename downloaded files to match",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}

			videos, err := scopedVideos(cmd, ctx, optionalArg(args, 0))
			if err != nil {
				return err
			}

			renamed := 0
			for _, video := range videos {
				resolved := naming.Sanitize(pickTitle(video))
				if resolved != video.Name {
					if err := ctx.store.UpdateVideoName(cmd.Context(), video.ID, resolved); err != nil {
						return err
					}
				}
				if video.DownloadPath == "" {
					continue
				}
				base := naming.Resolve(video.Title, video.OverrideName, video.ID)
				dir := filepath.Dir(video.DownloadPath)
				moved, err := naming.RenameArtifacts(dir, video.ID, base)
				if err != nil {
					return err
				}
				if len(moved) == 0 {
					continue
				}
				renamed++
				for _, path := range moved {
					if filepath.Ext(path) == filepath.Ext(video.DownloadPath) {
						if err := ctx.store.SetVideoDownloadPath(cmd.Context(), video.ID, path); err != nil {
							return err
						}
					}
				}
				ctx.dispatcher.Dispatch(cmd.Context(), hooks.Event{
					Name:  hooks.EventRename,
					Video: video,
					Path:  filepath.Join(dir, base),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed files for %d of %d videos\n", renamed, len(videos))
			return nil
		},
	}
}

func newSkipCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "skip [video-id...]",
		Short: "Exclude videos from download; without ids, list the skipped set",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if len(args) == 0 {
				return printSkippedSet(cmd, ctx, jsonOut)
			}
			if jsonOut {
				return fmt.Errorf("--json only applies when listing the skipped set")
			}
			for _, id := range args {
				video, err := ctx.store.Skip(cmd.Context(), id)
				if err != nil {
					return err
				}
				ctx.dispatcher.Dispatch(cmd.Context(), hooks.Event{Name: hooks.EventSkipVideo, Video: video})
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s is now %s\n", video.ID, video.State)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the skipped set as JSON")
	return cmd
}

func newUnskipCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "unskip [video-id...]",
		Short: "Return skipped videos to the download queue; without ids, list the skipped set",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if len(args) == 0 {
				return printSkippedSet(cmd, ctx, jsonOut)
			}
			if jsonOut {
				return fmt.Errorf("--json only applies when listing the skipped set")
			}
			for _, id := range args {
				video, err := ctx.store.Unskip(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s is now %s\n", video.ID, video.State)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the skipped set as JSON")
	return cmd
}

func printSkippedSet(cmd *cobra.Command, ctx *commandContext, jsonOut bool) error {
	videos, err := ctx.store.VideosByState(cmd.Context(), catalog.StateSkipped)
	if err != nil {
		return err
	}
	if jsonOut {
		ids := make([]string, 0, len(videos))
		for _, video := range videos {
			ids = append(ids, video.ID)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
	}
	if len(videos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No skipped videos.")
		return nil
	}
	rows := make([][]string, 0, len(videos))
	for _, video := range videos {
		rows = append(rows, []string{video.ID, video.Title})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Title"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))
	return nil
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return transitionCommand(ctx, "retry <video-id>...", "Re-queue failed videos",
		func(cmd *cobra.Command, id string) (*catalog.Video, error) {
			return ctx.store.RetryFailed(cmd.Context(), id)
		})
}

func newUnsleepCommand(ctx *commandContext) *cobra.Command {
	return transitionCommand(ctx, "unsleep <video-id>...", "Wake sleeping videos immediately",
		func(cmd *cobra.Command, id string) (*catalog.Video, error) {
			return ctx.store.Unsleep(cmd.Context(), id)
		})
}

func newSleepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sleep <video-id> <until>",
		Short: "Defer a video until a wake time (d+N, h+N, m+N, s+N, or an absolute time)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			wake, err := catalog.ParseWakeTime(args[1], time.Now())
			if err != nil {
				return err
			}
			video, err := ctx.store.Sleep(cmd.Context(), args[0], wake)
			if err != nil {
				return err
			}
			ctx.dispatcher.Dispatch(cmd.Context(), hooks.Event{Name: hooks.EventSleep, Video: video})
			fmt.Fprintf(cmd.OutOrStdout(), "Video %s sleeps until %s\n", video.ID, wake.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var artist, album, year, genre string

	cmd := &cobra.Command{
		Use:   "tag <video-id>",
		Short: "Store audio tags applied when extracting audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			video, err := requireVideo(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			tags := catalog.AudioTags{Artist: artist, Album: album, Year: year, Genre: genre}
			if err := ctx.store.SetAudioTags(cmd.Context(), video.ID, tags); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s\n", video.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "Artist tag")
	cmd.Flags().StringVar(&album, "album", "", "Album tag")
	cmd.Flags().StringVar(&year, "year", "", "Year tag")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre tag")
	return cmd
}

func transitionCommand(ctx *commandContext, use, short string, apply func(cmd *cobra.Command, id string) (*catalog.Video, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			for _, id := range args {
				video, err := apply(cmd, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s is now %s\n", video.ID, video.State)
			}
			return nil
		},
	}
}

func requireVideo(cmd *cobra.Command, ctx *commandContext, id string) (*catalog.Video, error) {
	video, err := ctx.store.VideoByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("no video with id %q", id)
	}
	return video, nil
}

func scopedVideos(cmd *cobra.Command, ctx *commandContext, channelRef string) ([]*catalog.Video, error) {
	if channelRef == "" {
		return ctx.store.Videos(cmd.Context())
	}
	ch, err := requireChannel(cmd, ctx, channelRef)
	if err != nil {
		return nil, err
	}
	return ctx.store.VideosForChannel(cmd.Context(), ch.ID)
}

func pickTitle(video *catalog.Video) string {
	if video.OverrideName != "" {
		return video.OverrideName
	}
	return video.Title
}
