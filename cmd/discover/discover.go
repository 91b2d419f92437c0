// Package discover implements the discover command: tiered navigation
// from county homepages toward maternal health program candidates.
package discover

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/countyscan/cmd/common"
	"github.com/jonesrussell/countyscan/internal/pipeline"
	"github.com/jonesrussell/countyscan/internal/store"
)

// Command returns the discover command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var (
		countyNames []string
		maxCounties int
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover program page candidates for each county",
		Long: `Discover fetches each county homepage and follows the highest-scoring
department, section, and program links, writing candidates with their
navigation paths to the discovery results file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := common.NewApp(*cfgFile, *debug)
			if err != nil {
				return err
			}

			if maxCounties > 0 {
				app.Config.Pipeline.MaxCounties = maxCounties
			}
			if workers > 0 {
				app.Config.Pipeline.Workers = workers
			}

			counties := app.Registry.Subset(countyNames)
			if len(counties) == 0 {
				return fmt.Errorf("no counties matched %v", countyNames)
			}

			file, summary, err := app.NewPipeline().Discover(cmd.Context(), counties)
			if err != nil {
				if file == nil {
					return fmt.Errorf("discovery failed: %w", err)
				}

				// Interrupted mid-run: partial results are on disk.
				renderSummary(file, summary)

				return fmt.Errorf("discovery interrupted: %w", err)
			}

			renderSummary(file, summary)

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&countyNames, "county", nil,
		"county names to process (repeatable; default all)")
	cmd.Flags().IntVar(&maxCounties, "max-counties", 0,
		"cap the number of counties processed this run")
	cmd.Flags().IntVar(&workers, "workers", 0,
		"override the worker pool size")

	return cmd
}

// renderSummary prints a per-county table followed by run totals.
func renderSummary(file *store.DiscoveryFile, summary *pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"County", "Health Dept", "Maternal Section", "Programs", "Skip Reason"})

	for _, result := range file.Results {
		t.AppendRow(table.Row{
			result.CountyName,
			yesNo(result.HealthDeptURL != nil),
			yesNo(result.MaternalSectionURL != nil),
			len(result.Programs),
			result.SkipReason,
		})
	}

	t.Render()

	fmt.Printf("\nRun %s: %d counties processed, %d skipped in %s\n",
		summary.RunID, summary.Processed, summary.Skipped, summary.Duration.Round(time.Millisecond))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
