package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/catalog"
	"reel/internal/chapters"
	"reel/internal/config"
	"reel/internal/fileutil"
	"reel/internal/naming"
	"reel/internal/transcode"
)

func newChapterCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Inspect and restructure chapter metadata",
	}

	cmd.AddCommand(newChapterShowCommand(ctx))
	cmd.AddCommand(newChapterSetCommand(ctx))
	cmd.AddCommand(newChapterClearCommand(ctx))
	cmd.AddCommand(newChapterRenameCommand(ctx))
	cmd.AddCommand(newChapterMergeCommand(ctx))
	cmd.AddCommand(newChapterSplitCommand(ctx))
	cmd.AddCommand(newChapterEditCommand(ctx))
	return cmd
}

func chapterEngine(ctx *commandContext) *chapters.Engine {
	cfg := ctx.config
	prober := transcode.NewProber(cfg.Transcoder.FFprobeBinary)
	ffmpeg := transcode.NewTranscoder(cfg.Transcoder.FFmpegBinary, ctx.logger)
	return chapters.NewEngine(prober, ffmpeg, ctx.logger)
}

func newChapterShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print the chapter list of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			list, err := chapterEngine(ctx).Read(cmd.Context(), path)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No chapters.")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for i, ch := range list {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					chapters.FormatTimestamp(ch.Start),
					ch.Title,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Start", "Title"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newChapterSetCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "set <file> <timestamp[=title]>...",
		Short: "Replace the chapter list (timestamps as HH:MM:SS, MM:SS, or seconds)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			list, err := chapters.ParseSpec(args[1:])
			if err != nil {
				return err
			}

			target := path
			if output != "" {
				target, err = config.ExpandPath(output)
				if err != nil {
					return err
				}
				if err := fileutil.CopyFile(path, target); err != nil {
					return err
				}
			}
			if err := chapterEngine(ctx).Set(cmd.Context(), target, list); err != nil {
				if target != path {
					_ = os.Remove(target)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d chapters to %s\n", len(list), filepath.Base(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write chapters to a copy at this path, leaving the source untouched")
	return cmd
}

func newChapterClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <file>",
		Short: "Remove every chapter from a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if err := chapterEngine(ctx).Clear(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared chapters from %s\n", filepath.Base(path))
			return nil
		},
	}
}

func newChapterRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <file> <index> <title>",
		Short: "Retitle one chapter, keeping its offset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chapter index must be a number: %q", args[1])
			}
			if err := chapterEngine(ctx).Rename(cmd.Context(), path, index, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d of %s is now %q\n", index, filepath.Base(path), args[2])
			return nil
		},
	}
}

func newChapterMergeCommand(ctx *commandContext) *cobra.Command {
	var output string
	var titles []string
	var keepBackup bool
	var playlistRef string

	cmd := &cobra.Command{
		Use:   "merge --playlist <channel> | merge <file>...",
		Short: "Concatenate files into one, a chapter per input",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			dst, err := config.ExpandPath(output)
			if err != nil {
				return err
			}

			var parts []string
			switch {
			case playlistRef != "":
				if len(args) > 0 {
					return fmt.Errorf("--playlist takes no file arguments")
				}
				if len(titles) > 0 {
					return fmt.Errorf("--playlist derives chapter titles from video titles; --title only applies to file inputs")
				}
				ch, err := requireChannel(cmd, ctx, playlistRef)
				if err != nil {
					return err
				}
				videos, err := ctx.store.VideosForChannel(cmd.Context(), ch.ID)
				if err != nil {
					return err
				}
				parts, titles, err = playlistParts(videos)
				if err != nil {
					return err
				}
			case len(args) >= 2:
				parts = make([]string, 0, len(args))
				for _, arg := range args {
					part, err := config.ExpandPath(arg)
					if err != nil {
						return err
					}
					parts = append(parts, part)
				}
			default:
				return fmt.Errorf("merge needs --playlist or at least two files")
			}

			if keepBackup && fileutil.PathExists(dst) {
				if err := fileutil.CopyFile(dst, dst+".bak"); err != nil {
					return err
				}
			}

			if err := chapterEngine(ctx).Merge(cmd.Context(), parts, titles, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d files into %s\n", len(parts), filepath.Base(dst))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	cmd.Flags().StringVar(&playlistRef, "playlist", "", "Merge a channel's downloaded videos in playlist order")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "Chapter title per input, in order")
	cmd.Flags().BoolVar(&keepBackup, "backup", false, "Keep a .bak copy of an existing destination")
	return cmd
}

// playlistParts resolves merge inputs from a channel's videos, already in
// playlist order. Delisted members (position -1) are no longer part of the
// playlist and drop out; every remaining member must be downloaded, each
// contributing its file and its title as the chapter title.
func playlistParts(videos []*catalog.Video) ([]string, []string, error) {
	var parts, titles []string
	for _, video := range videos {
		if video.Position < 0 {
			continue
		}
		if video.State != catalog.StateDownloaded || video.DownloadPath == "" {
			return nil, nil, fmt.Errorf("video %s (%s) is not downloaded", video.ID, video.State)
		}
		parts = append(parts, video.DownloadPath)
		titles = append(titles, video.Title)
	}
	if len(parts) < 2 {
		return nil, nil, fmt.Errorf("playlist has %d downloaded videos; merge needs at least two", len(parts))
	}
	return parts, titles, nil
}

func newChapterEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <file>",
		Short: "Rework a file's chapter list interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			engine := chapterEngine(ctx)
			list, err := engine.Read(cmd.Context(), path)
			if err != nil {
				return err
			}

			edited, save, err := editChapters(cmd, list)
			if err != nil {
				return err
			}
			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), "Discarded changes.")
				return nil
			}
			if err := engine.Set(cmd.Context(), path, edited); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d chapters to %s\n", len(edited), filepath.Base(path))
			return nil
		},
	}
}

// editChapters runs a line-oriented editing loop on stdin. Nothing touches
// the file until the user saves.
func editChapters(cmd *cobra.Command, list []chapters.Chapter) ([]chapters.Chapter, bool, error) {
	out := cmd.OutOrStdout()
	printEditList(out, list)
	fmt.Fprintln(out, `Commands: add <ts> [title], rm <n>, title <n> <text>, time <n> <ts>, list, save, quit`)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return nil, false, scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "list", "p":
			printEditList(out, list)
		case "add":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: add <timestamp> [title]")
				continue
			}
			start, err := chapters.ParseTimestamp(fields[1])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			list = append(list, chapters.Chapter{Start: start, Title: strings.Join(fields[2:], " ")})
			sortChapterList(list)
			printEditList(out, list)
		case "rm":
			index, ok := chapterIndex(out, fields, 2, len(list))
			if !ok {
				continue
			}
			list = append(list[:index-1], list[index:]...)
			printEditList(out, list)
		case "title":
			index, ok := chapterIndex(out, fields, 3, len(list))
			if !ok {
				continue
			}
			list[index-1].Title = strings.Join(fields[2:], " ")
			printEditList(out, list)
		case "time":
			index, ok := chapterIndex(out, fields, 3, len(list))
			if !ok {
				continue
			}
			start, err := chapters.ParseTimestamp(fields[2])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			list[index-1].Start = start
			sortChapterList(list)
			printEditList(out, list)
		case "save", "w":
			return list, true, nil
		case "quit", "q":
			return nil, false, nil
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func printEditList(out io.Writer, list []chapters.Chapter) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No chapters.")
		return
	}
	for i, ch := range list {
		fmt.Fprintf(out, "%2d  %s  %s\n", i+1, chapters.FormatTimestamp(ch.Start), ch.Title)
	}
}

func chapterIndex(out io.Writer, fields []string, minFields, length int) (int, bool) {
	if len(fields) < minFields {
		fmt.Fprintf(out, "usage: %s <n> ...\n", fields[0])
		return 0, false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil || index < 1 || index > length {
		fmt.Fprintf(out, "no chapter %q\n", fields[1])
		return 0, false
	}
	return index, true
}

func sortChapterList(list []chapters.Chapter) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
}

func newChapterSplitCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Cut a file into one part per chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Dir(src)
			}
			dir, err = config.ExpandPath(dir)
			if err != nil {
				return err
			}

			written, err := chapterEngine(ctx).Split(cmd.Context(), src, dir, naming.Sanitize)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "d", "", "Directory for the parts (defaults beside the source)")
	return cmd
}
