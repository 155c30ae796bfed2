package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reviewharvest/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var online bool
	var format string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories and API credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Online: online})
			failed := preflight.Failed(results)

			if handled, err := writeStructured(cmd, outFormat, results); handled {
				if err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
				if ctx.configPath != "" {
					fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "Also authenticate against the YouTube and Spotify APIs")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	return cmd
}
