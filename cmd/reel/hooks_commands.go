package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/catalog"
	"reel/internal/hooks"
)

func newHooksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Inspect and exercise configured hooks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show which hooks listen on each event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.dispatcher.Disabled() {
				fmt.Fprintln(out, "Hook dispatch is disabled.")
			}
			rows := make([][]string, 0)
			for _, event := range hooks.KnownEvents() {
				names := ctx.dispatcher.Registered(event)
				rows = append(rows, []string{event, strings.Join(names, ", ")})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Event", "Hooks"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test [event]",
		Short: "Fire a test dispatch of an event (default: error)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			event := hooks.EventError
			if len(args) == 1 {
				event = args[0]
				known := false
				for _, name := range hooks.KnownEvents() {
					if name == event {
						known = true
						break
					}
				}
				if !known {
					return fmt.Errorf("unknown event %q (known: %s)", event, strings.Join(hooks.KnownEvents(), ", "))
				}
			}
			ctx.dispatcher.Dispatch(cmd.Context(), hooks.Event{
				Name:    event,
				Channel: "test",
				Extra:   map[string]string{"test": "true"},
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatched test %s event to %d hooks\n",
				event, len(ctx.dispatcher.Registered(event)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Suppress hook dispatch until re-enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if err := ctx.store.SetSetting(cmd.Context(), catalog.SettingHooksDisabled, "true"); err != nil {
				return err
			}
			ctx.dispatcher.SetDisabled(true)
			fmt.Fprintln(cmd.OutOrStdout(), "Hook dispatch disabled.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Resume hook dispatch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureRuntime(); err != nil {
				return err
			}
			if err := ctx.store.SetSetting(cmd.Context(), catalog.SettingHooksDisabled, ""); err != nil {
				return err
			}
			ctx.dispatcher.SetDisabled(ctx.config.Hooks.Disabled)
			if ctx.config.Hooks.Disabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Hooks remain disabled by configuration.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Hook dispatch enabled.")
			return nil
		},
	})

	return cmd
}
