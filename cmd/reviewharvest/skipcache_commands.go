package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reviewharvest/internal/skipcache"
)

func newSkipCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "skipcache",
		Short: "Manage the transcript skip cache",
		Long: "The skip cache remembers videos whose transcripts are disabled or missing\n" +
			"so later runs do not ask again. Remove an entry to retry that video.",
	}
	cacheCmd.AddCommand(newSkipCacheListCommand(ctx))
	cacheCmd.AddCommand(newSkipCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newSkipCacheClearCommand(ctx))
	return cacheCmd
}

func openSkipCache(ctx *commandContext) (*skipcache.Cache, error) {
	layout, err := ctx.layout()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	return skipcache.Open(layout.TranscriptSkipCache(), logger)
}

func newSkipCacheListCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached negative transcript outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cache, err := openSkipCache(ctx)
			if err != nil {
				return err
			}
			entries := cache.List()
			if handled, err := writeStructured(cmd, outFormat, entries); handled {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.Reason, e.CachedAt.Local().Format(time.DateTime)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				fmt.Sprintf("Skip cache (%d)", len(entries)),
				[]string{"Video", "Reason", "Cached"},
				rows,
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	return cmd
}

func newSkipCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <video-id>...",
		Short: "Forget cached outcomes so the videos are retried",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openSkipCache(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				id := strings.TrimSpace(arg)
				if err := cache.Remove(id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %s\n", id)
			}
			return nil
		},
	}
}

func newSkipCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openSkipCache(ctx)
			if err != nil {
				return err
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", count)
			return nil
		},
	}
}
