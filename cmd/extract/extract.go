// Package extract implements the extract command: deep content
// extraction for every program candidate in the discovery results.
package extract

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/countyscan/cmd/common"
	"github.com/jonesrussell/countyscan/internal/store"
	"github.com/jonesrussell/countyscan/internal/structuring"
)

// Command returns the extract command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var (
		maxPages  int
		workers   int
		structure bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract page content for discovered program candidates",
		Long: `Extract reads the discovery results file, fetches each program
candidate page, and stores cleaned text, contacts, and document links as
one JSON record per page under the data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := common.NewApp(*cfgFile, *debug)
			if err != nil {
				return err
			}

			if maxPages > 0 {
				app.Config.Pipeline.MaxPages = maxPages
			}
			if workers > 0 {
				app.Config.Pipeline.Workers = workers
			}
			if structure {
				app.Config.Structuring.Enabled = true
			}

			disc, err := app.Store.LoadDiscovery()
			if err != nil {
				if errors.Is(err, store.ErrNoDiscovery) {
					return errors.New("no discovery results found; run 'countyscan discover' first")
				}

				return err
			}

			summary, err := app.NewPipeline().Extract(cmd.Context(), disc)
			if err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}

			fmt.Printf("Run %s: %d pages stored, %d skipped in %s\n",
				summary.RunID, summary.Processed, summary.Skipped,
				summary.Duration.Round(time.Millisecond))

			for _, skip := range summary.Skips {
				fmt.Printf("  skipped %s (%s)\n", skip.Unit, skip.Reason)
			}

			if app.Config.Structuring.Enabled {
				if err := runStructuring(cmd, app, disc); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0,
		"cap the number of pages extracted this run")
	cmd.Flags().IntVar(&workers, "workers", 0,
		"override the worker pool size")
	cmd.Flags().BoolVar(&structure, "structure", false,
		"run the structuring model over stored records after extraction")

	return cmd
}

// runStructuring feeds every stored record for the discovered counties
// through the structuring client and prints the results.
func runStructuring(cmd *cobra.Command, app *common.App, disc *store.DiscoveryFile) error {
	cfg := app.Config.Structuring
	client := structuring.NewClient(app.Logger,
		structuring.WithBaseURL(cfg.BaseURL),
		structuring.WithModel(cfg.Model),
		structuring.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		structuring.WithRateLimit(cfg.RequestsPerSecond),
	)

	for _, result := range disc.Results {
		pages, err := app.Store.List(result.CountyName)
		if err != nil {
			return err
		}

		for i := range pages {
			program, err := client.Structure(cmd.Context(), &pages[i])
			if err != nil {
				app.Logger.Warn("structuring failed",
					"url", pages[i].PageURL,
					"error", err)

				continue
			}

			fmt.Printf("%s: %s (%s)\n", program.County, program.ProgramName, program.SourceURL)
		}
	}

	return nil
}
