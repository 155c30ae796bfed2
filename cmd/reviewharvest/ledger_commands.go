package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reviewharvest/internal/ledger"
	"reviewharvest/internal/stages"
)

type ledgerInfo struct {
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path" yaml:"path"`
	Entries int    `json:"entries" yaml:"entries"`
}

type ledgerMembership struct {
	VideoID     string `json:"video_id" yaml:"video_id"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Acquired    bool   `json:"acquired" yaml:"acquired"`
	Extracted   bool   `json:"extracted" yaml:"extracted"`
}

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the dedup ledgers",
	}
	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	ledgerCmd.AddCommand(newLedgerCheckCommand(ctx))
	return ledgerCmd
}

func ledgerPaths(layout stages.Layout) []ledgerInfo {
	return []ledgerInfo{
		{Name: stages.NameAcquire, Path: layout.AcquireLedger()},
		{Name: stages.NameExtract, Path: layout.ExtractLedger()},
	}
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many fingerprints each ledger holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			infos := ledgerPaths(layout)
			for i := range infos {
				led, err := ledger.Load(infos[i].Path)
				if err != nil {
					return err
				}
				infos[i].Entries = led.Len()
			}
			if handled, err := writeStructured(cmd, outFormat, infos); handled {
				return err
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Name, strconv.Itoa(info.Entries), info.Path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("", []string{"Ledger", "Entries", "Path"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	return cmd
}

func newLedgerCheckCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "check <video-id>",
		Short: "Report whether a video has been acquired and extracted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("video id is required")
			}
			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			acquire, err := ledger.Load(layout.AcquireLedger())
			if err != nil {
				return err
			}
			extract, err := ledger.Load(layout.ExtractLedger())
			if err != nil {
				return err
			}
			result := ledgerMembership{
				VideoID:     id,
				Fingerprint: ledger.Fingerprint(id),
				Acquired:    !acquire.IsNew(id),
				Extracted:   !extract.IsNew(id),
			}
			if handled, err := writeStructured(cmd, outFormat, result); handled {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Video:       %s\n", result.VideoID)
			fmt.Fprintf(out, "Fingerprint: %s\n", result.Fingerprint)
			fmt.Fprintf(out, "Acquired:    %s\n", yesNo(result.Acquired))
			fmt.Fprintf(out, "Extracted:   %s\n", yesNo(result.Extracted))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, or yaml")
	return cmd
}
