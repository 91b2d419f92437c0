// Package counties implements the counties command for inspecting the
// configured county registry.
package counties

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/countyscan/cmd/common"
)

// Command returns the counties command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "counties",
		Short: "List the configured counties",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := common.NewApp(*cfgFile, *debug)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"#", "County", "URL"})

			for i, county := range app.Registry.Counties {
				t.AppendRow(table.Row{i + 1, county.Name, county.URL})
			}

			t.Render()

			return nil
		},
	}
}
