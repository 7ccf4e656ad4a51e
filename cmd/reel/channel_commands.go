package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reel/internal/catalog"
	"reel/internal/feed"
	"reel/internal/naming"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var aliasFlag string

	cmd := &cobra.Command{
		Use:   "add <url> | add <user|channel|playlist|video> <id> [title]",
		Short: "Track a channel, playlist, or standalone video",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}

			var kind catalog.ChannelKind
			var ref string
			switch {
			case strings.Contains(args[0], "://"):
				target, err := feed.ParseTarget(args[0])
				if err != nil {
					return err
				}
				if target.Video {
					return addStandaloneVideo(cmd, ctx, target.ID, optionalArg(args, 1))
				}
				kind, ref = target.Kind, target.ID
			case len(args) >= 2:
				kindArg := args[0]
				ref = args[1]
				if kindArg == "video" {
					return addStandaloneVideo(cmd, ctx, ref, optionalArg(args, 2))
				}
				var ok bool
				kind, ok = catalog.ParseChannelKind(kindArg)
				if !ok {
					return fmt.Errorf("unknown kind %q (want user, channel, playlist, or video)", kindArg)
				}
			default:
				return fmt.Errorf("want a url or a <kind> <id> pair")
			}

			alias := aliasFlag
			if alias != "" {
				coerced, err := naming.CoerceAlias(alias)
				if err != nil {
					return err
				}
				alias = coerced
			}
			// Channel ids are opaque; without an alias the on-disk directory
			// would be unreadable.
			if kind == catalog.KindChannel && alias == "" {
				return fmt.Errorf("kind channel requires --alias so the directory name stays readable")
			}

			ch, err := ctx.store.AddChannel(cmd.Context(), ref, kind, alias)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s %s as %s\n", ch.Kind, ch.Name, ch.DirName())
			return nil
		},
	}

	cmd.Flags().StringVar(&aliasFlag, "alias", "", "Directory name for the channel (required for opaque channel ids)")
	return cmd
}

func addStandaloneVideo(cmd *cobra.Command, ctx *commandContext, id, title string) error {
	name := naming.Sanitize(title)
	if title == "" {
		name = ""
	}
	video, err := ctx.store.AddVideo(cmd.Context(), id, 0, title, name, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added video %s\n", video.ID)
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string

	cmd := &cobra.Command{
		Use:   "list [channel]",
		Short: "List tracked channels, or the videos of one channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if len(args) == 0 && stateFlag == "" {
				return listChannels(cmd, ctx)
			}
			return listVideos(cmd, ctx, optionalArg(args, 0), stateFlag)
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Filter videos by state")
	return cmd
}

func listChannels(cmd *cobra.Command, ctx *commandContext) error {
	channels, err := ctx.store.Channels(cmd.Context())
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No channels tracked. Add one with `reel add`.")
		return nil
	}

	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		videos, err := ctx.store.VideosForChannel(cmd.Context(), ch.ID)
		if err != nil {
			return err
		}
		synced := "never"
		if ch.LastSyncedAt != nil {
			synced = humanize.Time(*ch.LastSyncedAt)
		}
		rows = append(rows, []string{
			string(ch.Kind),
			ch.Name,
			ch.Alias,
			ch.Title,
			strconv.Itoa(len(videos)),
			synced,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Kind", "Name", "Alias", "Title", "Videos", "Synced"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func listVideos(cmd *cobra.Command, ctx *commandContext, channelRef, stateFilter string) error {
	var videos []*catalog.Video
	var err error

	switch {
	case channelRef != "":
		ch, err := requireChannel(cmd, ctx, channelRef)
		if err != nil {
			return err
		}
		videos, err = ctx.store.VideosForChannel(cmd.Context(), ch.ID)
		if err != nil {
			return err
		}
	default:
		videos, err = ctx.store.Videos(cmd.Context())
		if err != nil {
			return err
		}
	}

	if stateFilter != "" {
		state, ok := catalog.ParseState(stateFilter)
		if !ok {
			return fmt.Errorf("unknown state %q", stateFilter)
		}
		filtered := videos[:0]
		for _, video := range videos {
			if video.State == state {
				filtered = append(filtered, video)
			}
		}
		videos = filtered
	}

	if len(videos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No videos match.")
		return nil
	}

	rows := make([][]string, 0, len(videos))
	for _, video := range videos {
		detail := ""
		switch {
		case video.State == catalog.StateSleeping && video.SleepUntil != nil:
			detail = "wakes " + humanize.Time(*video.SleepUntil)
		case video.State == catalog.StateFailed:
			detail = video.FailureReason
		}
		rows = append(rows, []string{
			strconv.Itoa(video.Position),
			video.ID,
			string(video.State),
			video.Title,
			detail,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Pos", "ID", "State", "Title", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func newAliasCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "alias <channel> <alias>",
		Short: "Assign a directory alias to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			ch, err := requireChannel(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			alias, err := naming.CoerceAlias(args[1])
			if err != nil {
				return err
			}
			if err := ctx.store.SetChannelAlias(cmd.Context(), ch.ID, alias); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s now aliased %s\n", ch.Name, alias)
			return nil
		},
	}
}

func requireChannel(cmd *cobra.Command, ctx *commandContext, ref string) (*catalog.Channel, error) {
	ch, err := ctx.store.ChannelByRef(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("no channel matches %q", ref)
	}
	return ch, nil
}

func optionalArg(args []string, index int) string {
	if index < len(args) {
		return args[index]
	}
	return ""
}
