package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/gt2plink/internal/duckdb"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List conversions recorded in the manifest",
		Example: `  gt2plink history --manifest ~/gt2plink.duckdb
  gt2plink history --limit 5`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("manifest.path")
			if path == "" {
				return usageErrorf("no manifest configured (use --manifest or set manifest.path)")
			}
			return runHistory(cmd.OutOrStdout(), path, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func runHistory(w io.Writer, path string, limit int) error {
	store, err := duckdb.Open(path)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONVERTED\tSAMPLE\tVARIANTS\tDROPPED\tDURATION\tINPUT\tPREFIX")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.ConvertedAt.Local().Format(time.DateTime),
			r.SampleID,
			r.Variants,
			r.Dropped,
			r.Duration.Round(time.Millisecond),
			r.Input.Path,
			r.Prefix)
	}
	return tw.Flush()
}
