package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/masahif/orgscrape/internal/storage"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print per-organization totals from the event index",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabasePath == "" && cfg.OutputDir == "" {
		return errors.New("either --database or --out is required")
	}

	path := cfg.IndexPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no index at %s: %w", path, err)
	}

	index, err := storage.OpenIndex(path)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	sums, err := index.Summaries(cmd.Context())
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORGANIZATION\tRUNS\tLAST RUN\tPAGES\tPDFS\tPDF BYTES\tERRORS\tBLOCKED")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\t%d\t%d\n",
			s.Organization, s.Runs, s.LastRun.Format(time.RFC3339), s.Pages, s.PDFs,
			humanize.IBytes(uint64(s.PDFBytes)), s.Errors, s.Blocked)
	}
	return tw.Flush()
}
